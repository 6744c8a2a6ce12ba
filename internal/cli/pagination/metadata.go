package pagination

import "fmt"

// PaginationMeta describes the window of a paginated batch listing.
//
//nolint:revive // PaginationMeta is the canonical name for this exported type.
type PaginationMeta struct {
	CurrentPage int  `json:"currentPage" yaml:"currentPage"`
	PageSize    int  `json:"pageSize"    yaml:"pageSize"`
	TotalPages  int  `json:"totalPages"  yaml:"totalPages"`
	TotalItems  int  `json:"totalItems"  yaml:"totalItems"`
	HasPrevious bool `json:"hasPrevious" yaml:"hasPrevious"`
	HasNext     bool `json:"hasNext"     yaml:"hasNext"`
}

// NewPaginationMeta derives page metadata from the flags and the number of
// batches matching the query without a window.
func NewPaginationMeta(params PaginationParams, totalCount int) PaginationMeta {
	offset, pageSize := params.CalculateOffsetLimit()
	if pageSize == 0 {
		pageSize = max(totalCount-offset, 1)
	}

	currentPage := offset/pageSize + 1
	totalPages := (totalCount + pageSize - 1) / pageSize

	return PaginationMeta{
		CurrentPage: currentPage,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		TotalItems:  totalCount,
		HasPrevious: offset > 0,
		HasNext:     offset+pageSize < totalCount,
	}
}

// String renders the footer printed below table output.
func (m PaginationMeta) String() string {
	return fmt.Sprintf("Page %d of %d (%d batches)", m.CurrentPage, m.TotalPages, m.TotalItems)
}
