package batch

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceReader evaluates specs over a fixed slice.
type sliceReader struct {
	batches []Batch
	specs   []QuerySpec
}

func (r *sliceReader) QueryBatches(_ context.Context, spec QuerySpec) ([]Batch, error) {
	r.specs = append(r.specs, spec)
	return spec.Apply(r.batches), nil
}

func (r *sliceReader) CountBatches(_ context.Context, spec QuerySpec) (int, error) {
	r.specs = append(r.specs, spec)
	spec.FirstResult, spec.MaxResults = 0, 0
	return len(spec.Apply(r.batches)), nil
}

func newTestReader() *sliceReader {
	return &sliceReader{batches: []Batch{
		{ID: "02", Type: "instance-migration", TenantID: "b"},
		{ID: "01", Type: "instance-migration", TenantID: "a"},
		{ID: "03", Type: "set-retries", Suspended: true},
		{ID: "04", Type: "set-retries", TenantID: "a", Completed: true},
	}}
}

func ids(batches []Batch) []string {
	out := make([]string, len(batches))
	for i, b := range batches {
		out[i] = b.ID
	}
	return out
}

func TestQuery_ListUnfiltered(t *testing.T) {
	list, err := NewQuery(newTestReader()).List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"01", "02", "03", "04"}, ids(list))
}

func TestQuery_ByID(t *testing.T) {
	result, err := NewQuery(newTestReader()).BatchID("03").SingleResult(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "03", result.ID)
}

func TestQuery_ByIDNull(t *testing.T) {
	_, err := NewQuery(newTestReader()).BatchID("").SingleResult(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNullValue)
	assert.Contains(t, err.Error(), "Batch id is null")
}

func TestQuery_ByType(t *testing.T) {
	ctx := context.Background()
	r := newTestReader()

	count, err := NewQuery(r).Type("instance-migration").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = NewQuery(r).Type("foo").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQuery_ByTypeNull(t *testing.T) {
	_, err := NewQuery(newTestReader()).Type("").SingleResult(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNullValue)
	assert.Contains(t, err.Error(), "Type is null")
}

func TestQuery_TenantFilters(t *testing.T) {
	ctx := context.Background()
	r := newTestReader()

	list, err := NewQuery(r).TenantIDIn("a").OrderByID().Asc().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "04"}, ids(list))

	list, err = NewQuery(r).WithoutTenantID().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"03"}, ids(list))

	_, err = NewQuery(r).TenantIDIn().List(ctx)
	assert.ErrorIs(t, err, ErrNullValue)
}

func TestQuery_StateFilters(t *testing.T) {
	ctx := context.Background()
	r := newTestReader()

	count, err := NewQuery(r).Suspended().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = NewQuery(r).Active().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = NewQuery(r).Completed().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQuery_OrderByID(t *testing.T) {
	ctx := context.Background()
	r := newTestReader()

	asc, err := NewQuery(r).OrderByID().Asc().List(ctx)
	require.NoError(t, err)
	assert.True(t, sort.SliceIsSorted(asc, func(i, j int) bool { return asc[i].ID < asc[j].ID }))

	desc, err := NewQuery(r).OrderByID().Desc().List(ctx)
	require.NoError(t, err)

	require.Len(t, desc, len(asc))
	for i := range asc {
		assert.Equal(t, asc[i].ID, desc[len(desc)-1-i].ID)
	}
}

func TestQuery_MultipleOrderings(t *testing.T) {
	list, err := NewQuery(newTestReader()).
		OrderByTenantID().Desc().
		OrderByID().Asc().
		List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"02", "01", "04", "03"}, ids(list))
}

func TestQuery_OrderingPropertyWithoutDirection(t *testing.T) {
	r := newTestReader()
	_, err := NewQuery(r).OrderByID().SingleResult(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Contains(t, err.Error(), "Invalid query: call asc() or desc() after using orderByXX()")
	assert.Empty(t, r.specs, "invalid queries must not reach the store")
}

func TestQuery_DirectionWithoutOrderingProperty(t *testing.T) {
	_, err := NewQuery(newTestReader()).Asc().SingleResult(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Contains(t, err.Error(),
		"You should call any of the orderBy methods first before specifying a direction")
}

func TestQuery_FirstErrorWins(t *testing.T) {
	_, err := NewQuery(newTestReader()).BatchID("").Type("").Desc().Count(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Batch id is null")
}

func TestQuery_SingleResult(t *testing.T) {
	ctx := context.Background()
	r := newTestReader()

	none, err := NewQuery(r).BatchID("missing").SingleResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = NewQuery(r).Type("set-retries").SingleResult(ctx)
	assert.ErrorIs(t, err, ErrNonUnique)
}

func TestQuery_ListPage(t *testing.T) {
	ctx := context.Background()
	r := newTestReader()

	page, err := NewQuery(r).OrderByID().Asc().ListPage(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"02", "03"}, ids(page))

	page, err = NewQuery(r).ListPage(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = NewQuery(r).ListPage(ctx, -1, 2)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestQuery_IsValue(t *testing.T) {
	ctx := context.Background()
	base := NewQuery(newTestReader()).OrderByID()

	asc, err := base.Asc().List(ctx)
	require.NoError(t, err)
	desc, err := base.Desc().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "01", asc[0].ID)
	assert.Equal(t, "04", desc[0].ID)

	// The shared base still lacks a direction.
	_, err = base.List(ctx)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestQuery_NoReader(t *testing.T) {
	_, err := Query{}.List(context.Background())
	require.Error(t, err)
}
