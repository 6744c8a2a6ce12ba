package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Property is a batch field a query can be ordered by.
type Property string

// Sortable batch properties.
const (
	PropertyID       Property = "id"
	PropertyTenantID Property = "tenantId"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Ordering pairs a property with a direction.
type Ordering struct {
	Property  Property  `json:"property"`
	Direction Direction `json:"direction"`
}

// Query error messages.
const (
	msgBatchIDNull       = "Batch id is null"
	msgTypeNull          = "Type is null"
	msgTenantIDsNull     = "Tenant ids is null"
	msgDirectionMissing  = "call asc() or desc() after using orderByXX()"
	msgOrderByMissing    = "You should call any of the orderBy methods first before specifying a direction"
	msgPaginationInvalid = "firstResult and maxResults must be >= 0"
)

// QuerySpec is the validated, immutable description of a batch query.
// Stores evaluate it; the zero value matches every batch.
type QuerySpec struct {
	BatchID         string
	Type            string
	TenantIDs       []string
	WithoutTenantID bool
	Suspended       *bool
	Completed       *bool
	Orderings       []Ordering

	// FirstResult skips that many matches after ordering.
	FirstResult int

	// MaxResults limits the number of returned batches; 0 means unlimited.
	MaxResults int
}

// Matches reports whether b satisfies every filter of the spec.
func (s QuerySpec) Matches(b Batch) bool {
	if s.BatchID != "" && b.ID != s.BatchID {
		return false
	}
	if s.Type != "" && b.Type != s.Type {
		return false
	}
	if len(s.TenantIDs) > 0 && !slices.Contains(s.TenantIDs, b.TenantID) {
		return false
	}
	if s.WithoutTenantID && b.TenantID != "" {
		return false
	}
	if s.Suspended != nil && b.Suspended != *s.Suspended {
		return false
	}
	if s.Completed != nil && b.Completed != *s.Completed {
		return false
	}
	return true
}

// Less compares two batches by the orderings of s.
// Without orderings nothing is less, which keeps a stable sort unchanged.
func (s QuerySpec) Less(a, b Batch) bool {
	for _, o := range s.Orderings {
		av, bv := sortValue(a, o.Property), sortValue(b, o.Property)
		if av == bv {
			continue
		}
		if o.Direction == Desc {
			return av > bv
		}
		return av < bv
	}
	return false
}

// Apply filters, orders and pages batches in memory. The input is not modified.
func (s QuerySpec) Apply(batches []Batch) []Batch {
	matched := make([]Batch, 0, len(batches))
	for _, b := range batches {
		if s.Matches(b) {
			matched = append(matched, b)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return s.Less(matched[i], matched[j])
	})

	return s.page(matched)
}

func (s QuerySpec) page(batches []Batch) []Batch {
	if s.FirstResult >= len(batches) {
		return []Batch{}
	}
	batches = batches[s.FirstResult:]
	if s.MaxResults > 0 && s.MaxResults < len(batches) {
		batches = batches[:s.MaxResults]
	}
	return batches
}

func sortValue(b Batch, p Property) string {
	switch p {
	case PropertyTenantID:
		return b.TenantID
	default:
		return b.ID
	}
}

// Reader executes query specs against a store.
type Reader interface {
	QueryBatches(ctx context.Context, spec QuerySpec) ([]Batch, error)
	CountBatches(ctx context.Context, spec QuerySpec) (int, error)
}

// Query is a fluent batch query. Every method returns a new Query, so a
// partially built query can be shared and extended safely. Construction
// errors are recorded and reported by the terminal call.
type Query struct {
	reader  Reader
	spec    QuerySpec
	pending Property
	err     error
}

// NewQuery returns an unfiltered query executed by r.
func NewQuery(r Reader) Query {
	return Query{reader: r}
}

// BatchID restricts the query to the batch with the given id.
func (q Query) BatchID(id string) Query {
	if id == "" {
		return q.fail(NullValue(msgBatchIDNull))
	}
	q.spec.BatchID = id
	return q
}

// Type restricts the query to batches of the given type.
func (q Query) Type(batchType string) Query {
	if batchType == "" {
		return q.fail(NullValue(msgTypeNull))
	}
	q.spec.Type = batchType
	return q
}

// TenantIDIn restricts the query to batches owned by one of the tenants.
func (q Query) TenantIDIn(tenantIDs ...string) Query {
	if len(tenantIDs) == 0 || slices.Contains(tenantIDs, "") {
		return q.fail(NullValue(msgTenantIDsNull))
	}
	q.spec.TenantIDs = slices.Clone(tenantIDs)
	return q
}

// WithoutTenantID restricts the query to batches without a tenant.
func (q Query) WithoutTenantID() Query {
	q.spec.WithoutTenantID = true
	return q
}

// Suspended restricts the query to suspended batches.
func (q Query) Suspended() Query {
	v := true
	q.spec.Suspended = &v
	return q
}

// Active restricts the query to batches that are not suspended.
func (q Query) Active() Query {
	v := false
	q.spec.Suspended = &v
	return q
}

// Completed restricts the query to batches the monitor job has finished.
func (q Query) Completed() Query {
	v := true
	q.spec.Completed = &v
	return q
}

// OrderByID orders by batch id. Asc or Desc must follow.
func (q Query) OrderByID() Query {
	q.pending = PropertyID
	return q
}

// OrderByTenantID orders by tenant id. Asc or Desc must follow.
func (q Query) OrderByTenantID() Query {
	q.pending = PropertyTenantID
	return q
}

// Asc applies ascending direction to the pending order-by.
func (q Query) Asc() Query {
	return q.direction(Asc)
}

// Desc applies descending direction to the pending order-by.
func (q Query) Desc() Query {
	return q.direction(Desc)
}

func (q Query) direction(d Direction) Query {
	if q.pending == "" {
		return q.fail(InvalidQuery(msgOrderByMissing))
	}
	orderings := slices.Clone(q.spec.Orderings)
	q.spec.Orderings = append(orderings, Ordering{Property: q.pending, Direction: d})
	q.pending = ""
	return q
}

// fail records the first construction error.
func (q Query) fail(err error) Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

// Spec validates the query and returns its spec.
func (q Query) Spec() (QuerySpec, error) {
	if q.err != nil {
		return QuerySpec{}, q.err
	}
	if q.pending != "" {
		return QuerySpec{}, InvalidQuery(msgDirectionMissing)
	}
	spec := q.spec
	spec.TenantIDs = slices.Clone(q.spec.TenantIDs)
	spec.Orderings = slices.Clone(q.spec.Orderings)
	return spec, nil
}

func (q Query) validSpec() (QuerySpec, error) {
	spec, err := q.Spec()
	if err != nil {
		return QuerySpec{}, err
	}
	if q.reader == nil {
		return QuerySpec{}, errors.New("batch query has no reader")
	}
	return spec, nil
}

// List returns every matching batch.
func (q Query) List(ctx context.Context) ([]Batch, error) {
	spec, err := q.validSpec()
	if err != nil {
		return nil, err
	}
	return q.reader.QueryBatches(ctx, spec)
}

// ListPage returns at most maxResults matches after skipping firstResult.
func (q Query) ListPage(ctx context.Context, firstResult, maxResults int) ([]Batch, error) {
	spec, err := q.validSpec()
	if err != nil {
		return nil, err
	}
	if firstResult < 0 || maxResults < 0 {
		return nil, InvalidArgument(msgPaginationInvalid)
	}
	spec.FirstResult = firstResult
	spec.MaxResults = maxResults
	if maxResults == 0 {
		return []Batch{}, nil
	}
	return q.reader.QueryBatches(ctx, spec)
}

// Count returns the number of matching batches.
func (q Query) Count(ctx context.Context) (int, error) {
	spec, err := q.validSpec()
	if err != nil {
		return 0, err
	}
	return q.reader.CountBatches(ctx, spec)
}

// SingleResult returns the only matching batch. It returns nil and no error
// when nothing matches and ErrNonUnique when more than one batch matches.
func (q Query) SingleResult(ctx context.Context) (*Batch, error) {
	spec, err := q.validSpec()
	if err != nil {
		return nil, err
	}
	spec.FirstResult = 0
	spec.MaxResults = 2

	batches, err := q.reader.QueryBatches(ctx, spec)
	if err != nil {
		return nil, err
	}

	switch len(batches) {
	case 0:
		return nil, nil //nolint:nilnil // no match is not an error for SingleResult
	case 1:
		return &batches[0], nil
	default:
		return nil, fmt.Errorf("%w: expected one batch", ErrNonUnique)
	}
}
