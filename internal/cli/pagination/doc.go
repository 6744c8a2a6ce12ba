// Package pagination turns the list flags of the batch commands into batch
// query orderings and result windows.
//
//   - PaginationParams: --limit/--offset or --page/--page-size flags and their validation
//   - BatchSorter: --sort "field[:order]" expressions applied to a batch.Query
//   - PaginationMeta: page metadata printed below list output
package pagination
