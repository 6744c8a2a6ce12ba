package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/batchengine/internal/batch"
)

func TestPaginationParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  PaginationParams
		wantErr bool
		errMsg  string
	}{
		{name: "valid default", params: *NewPaginationParams()},
		{name: "valid offset mode", params: PaginationParams{Limit: 10, Offset: 20}},
		{name: "valid page mode", params: PaginationParams{Page: 2, PageSize: 10}},
		{name: "valid sort", params: PaginationParams{Sort: []string{"id:desc", "tenantId"}}},
		{name: "negative limit", params: PaginationParams{Limit: -1}, wantErr: true, errMsg: "limit cannot be negative"},
		{name: "negative offset", params: PaginationParams{Offset: -1}, wantErr: true, errMsg: "offset cannot be negative"},
		{name: "negative page", params: PaginationParams{Page: -1}, wantErr: true, errMsg: "page cannot be negative"},
		{
			name:    "negative page size",
			params:  PaginationParams{PageSize: -1},
			wantErr: true,
			errMsg:  "page-size cannot be negative",
		},
		{
			name:    "page and offset",
			params:  PaginationParams{Page: 1, PageSize: 10, Offset: 5},
			wantErr: true,
			errMsg:  "mutually exclusive",
		},
		{
			name:    "page size without page",
			params:  PaginationParams{PageSize: 10},
			wantErr: true,
			errMsg:  "page must be specified",
		},
		{
			name:    "page without page size",
			params:  PaginationParams{Page: 2},
			wantErr: true,
			errMsg:  "page-size must be specified",
		},
		{
			name:    "bad sort order",
			params:  PaginationParams{Sort: []string{"id:up"}},
			wantErr: true,
			errMsg:  "sort order must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		input     string
		wantField string
		wantOrder string
		wantErr   error
	}{
		{input: "id", wantField: "id", wantOrder: "asc"},
		{input: "id:desc", wantField: "id", wantOrder: "desc"},
		{input: " tenantId : DESC ", wantField: "tenantId", wantOrder: "desc"},
		{input: "", wantErr: ErrEmptySortField},
		{input: ":asc", wantErr: ErrEmptySortField},
		{input: "id:asc:desc", wantErr: ErrInvalidSortFormat},
		{input: "id:sideways", wantErr: ErrInvalidSortOrder},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			field, order, err := ParseSort(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantField, field)
			assert.Equal(t, tt.wantOrder, order)
		})
	}
}

func TestPaginationParams_CalculateOffsetLimit(t *testing.T) {
	tests := []struct {
		name       string
		params     PaginationParams
		wantOffset int
		wantLimit  int
		wantOn     bool
	}{
		{name: "defaults", params: *NewPaginationParams()},
		{name: "offset mode", params: PaginationParams{Limit: 10, Offset: 20}, wantOffset: 20, wantLimit: 10, wantOn: true},
		{name: "first page", params: PaginationParams{Page: 1, PageSize: 25}, wantLimit: 25, wantOn: true},
		{name: "third page", params: PaginationParams{Page: 3, PageSize: 25}, wantOffset: 50, wantLimit: 25, wantOn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit := tt.params.CalculateOffsetLimit()
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOn, tt.params.IsEnabled())
		})
	}
}

func TestNewPaginationMeta(t *testing.T) {
	tests := []struct {
		name   string
		params PaginationParams
		total  int
		want   PaginationMeta
	}{
		{
			name:   "first of three pages",
			params: PaginationParams{Page: 1, PageSize: 10},
			total:  25,
			want:   PaginationMeta{CurrentPage: 1, PageSize: 10, TotalPages: 3, TotalItems: 25, HasNext: true},
		},
		{
			name:   "last page",
			params: PaginationParams{Page: 3, PageSize: 10},
			total:  25,
			want:   PaginationMeta{CurrentPage: 3, PageSize: 10, TotalPages: 3, TotalItems: 25, HasPrevious: true},
		},
		{
			name:   "offset mode",
			params: PaginationParams{Limit: 5, Offset: 5},
			total:  12,
			want: PaginationMeta{
				CurrentPage: 2, PageSize: 5, TotalPages: 3, TotalItems: 12, HasPrevious: true, HasNext: true,
			},
		},
		{
			name:   "unlimited",
			params: PaginationParams{},
			total:  7,
			want:   PaginationMeta{CurrentPage: 1, PageSize: 7, TotalPages: 1, TotalItems: 7},
		},
		{
			name:   "empty",
			params: PaginationParams{},
			total:  0,
			want:   PaginationMeta{CurrentPage: 1, PageSize: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPaginationMeta(tt.params, tt.total))
		})
	}

	assert.Equal(t, "Page 1 of 3 (25 batches)", NewPaginationMeta(PaginationParams{Page: 1, PageSize: 10}, 25).String())
}

func TestBatchSorter(t *testing.T) {
	s := NewBatchSorter()

	assert.True(t, s.IsValidField("id"))
	assert.True(t, s.IsValidField("tenantId"))
	assert.False(t, s.IsValidField("type"))
	assert.Equal(t, []string{"id", "tenantId"}, s.GetValidFields())

	q, err := s.Apply(batch.NewQuery(nil), []string{"tenantId:desc", "id"})
	require.NoError(t, err)
	spec, err := q.Spec()
	require.NoError(t, err)
	assert.Equal(t, []batch.Ordering{
		{Property: batch.PropertyTenantID, Direction: batch.Desc},
		{Property: batch.PropertyID, Direction: batch.Asc},
	}, spec.Orderings)

	_, err = s.Apply(batch.NewQuery(nil), []string{"type"})
	require.ErrorIs(t, err, ErrInvalidSortField)

	_, err = s.Apply(batch.NewQuery(nil), []string{"id:up"})
	require.ErrorIs(t, err, ErrInvalidSortOrder)
}
