package cli

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/cli/pagination"
)

// batchFilters holds the query flags shared by list and count.
type batchFilters struct {
	id            string
	batchType     string
	tenants       []string
	withoutTenant bool
	suspended     bool
	active        bool
	completed     bool
}

func (f *batchFilters) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "only the batch with this id")
	cmd.Flags().StringVar(&f.batchType, "type", "", "only batches of this type")
	cmd.Flags().StringSliceVar(&f.tenants, "tenant", nil, "only batches of these tenants (repeatable)")
	cmd.Flags().BoolVar(&f.withoutTenant, "without-tenant", false, "only batches without a tenant")
	cmd.Flags().BoolVar(&f.suspended, "suspended", false, "only suspended batches")
	cmd.Flags().BoolVar(&f.active, "active", false, "only batches that are not suspended")
	cmd.Flags().BoolVar(&f.completed, "completed", false, "only completed batches")
	cmd.MarkFlagsMutuallyExclusive("suspended", "active")
}

// apply adds the flags the user set to q. Empty values are passed through so
// the query reports them.
func (f *batchFilters) apply(cmd *cobra.Command, q batch.Query) batch.Query {
	flags := cmd.Flags()
	if flags.Changed("id") {
		q = q.BatchID(f.id)
	}
	if flags.Changed("type") {
		q = q.Type(f.batchType)
	}
	if flags.Changed("tenant") {
		q = q.TenantIDIn(f.tenants...)
	}
	if f.withoutTenant {
		q = q.WithoutTenantID()
	}
	if f.suspended {
		q = q.Suspended()
	}
	if f.active {
		q = q.Active()
	}
	if f.completed {
		q = q.Completed()
	}
	return q
}

func newBatchListCmd() *cobra.Command {
	var (
		filters batchFilters
		output  string
	)
	params := pagination.NewPaginationParams()

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches",
		Example: `  # All batches of tenant acme, newest id first
  batchengine batch list --tenant acme --sort id:desc

  # Second page of 20 suspended batches
  batchengine batch list --suspended --page 2 --page-size 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			if err := params.Validate(); err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(r *runtime) error {
				return runBatchList(cmd, r, filters, *params, output)
			})
		},
	}

	filters.register(cmd)
	cmd.Flags().IntVar(&params.Limit, "limit", pagination.DefaultLimit, "maximum number of batches (0 = all)")
	cmd.Flags().IntVar(&params.Offset, "offset", pagination.DefaultOffset, "number of batches to skip")
	cmd.Flags().IntVar(&params.Page, "page", 0, "1-based page number (requires --page-size)")
	cmd.Flags().IntVar(&params.PageSize, "page-size", 0, "batches per page")
	cmd.Flags().StringSliceVar(&params.Sort, "sort", nil, "sort by field[:asc|desc]; fields: id, tenantId (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func runBatchList(
	cmd *cobra.Command,
	r *runtime,
	filters batchFilters,
	params pagination.PaginationParams,
	output string,
) error {
	ctx := cmd.Context()

	q := filters.apply(cmd, r.engine.CreateBatchQuery())
	q, err := pagination.NewBatchSorter().Apply(q, params.Sort)
	if err != nil {
		return err
	}

	if !params.IsEnabled() {
		batches, listErr := q.List(ctx)
		if listErr != nil {
			return listErr
		}
		return renderBatches(cmd.OutOrStdout(), output, batches, nil)
	}

	offset, limit := params.CalculateOffsetLimit()
	if limit == 0 {
		limit = math.MaxInt
	}
	batches, err := q.ListPage(ctx, offset, limit)
	if err != nil {
		return err
	}
	total, err := q.Count(ctx)
	if err != nil {
		return err
	}

	meta := pagination.NewPaginationMeta(params, total)
	return renderBatches(cmd.OutOrStdout(), output, batches, &meta)
}

func newBatchCountCmd() *cobra.Command {
	var filters batchFilters

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count batches matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(r *runtime) error {
				n, err := filters.apply(cmd, r.engine.CreateBatchQuery()).Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}

	filters.register(cmd)
	return cmd
}
