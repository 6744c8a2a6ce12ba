package pagination

import (
	"fmt"
	"slices"

	"github.com/rshade/batchengine/internal/batch"
)

// BatchSorter maps sort expressions onto batch query orderings.
type BatchSorter struct {
	fields map[string]func(batch.Query) batch.Query
}

// NewBatchSorter creates a sorter for the sortable batch properties.
func NewBatchSorter() *BatchSorter {
	return &BatchSorter{
		fields: map[string]func(batch.Query) batch.Query{
			string(batch.PropertyID):       batch.Query.OrderByID,
			string(batch.PropertyTenantID): batch.Query.OrderByTenantID,
		},
	}
}

// IsValidField checks if the field is valid for sorting.
func (s *BatchSorter) IsValidField(field string) bool {
	_, ok := s.fields[field]
	return ok
}

// GetValidFields returns all valid sort fields in a consistent order.
func (s *BatchSorter) GetValidFields() []string {
	fields := make([]string, 0, len(s.fields))
	for field := range s.fields {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	return fields
}

// Apply adds one ordering per expression to q, in the given order.
func (s *BatchSorter) Apply(q batch.Query, exprs []string) (batch.Query, error) {
	for _, expr := range exprs {
		field, order, err := ParseSort(expr)
		if err != nil {
			return q, err
		}

		orderBy, ok := s.fields[field]
		if !ok {
			return q, fmt.Errorf("%w: %q (valid: %v)", ErrInvalidSortField, field, s.GetValidFields())
		}

		q = orderBy(q)
		if order == SortOrderDesc {
			q = q.Desc()
		} else {
			q = q.Asc()
		}
	}
	return q, nil
}
