package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/batchengine/internal/batch"
)

// errDeleteDeclined is returned when a cascading delete is not confirmed.
var errDeleteDeclined = errors.New("cascading delete not confirmed; pass --yes to skip the prompt")

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Batch management commands",
		Long: `Create, query and manage batches in the configured store.

Batches created here are executed by a "batchengine serve" process sharing
the same store.`,
	}
	cmd.AddCommand(
		newBatchCreateCmd(), newBatchListCmd(), newBatchCountCmd(),
		newBatchGetCmd(), newBatchStatsCmd(), newBatchJobsCmd(),
		newBatchDeleteCmd(), newBatchSuspendCmd(), newBatchActivateCmd(),
		newBatchWatchCmd(),
	)
	return cmd
}

// batchParamFlags holds the flags describing a new batch.
type batchParamFlags struct {
	batchType   string
	items       int
	jobsPerSeed int
	invocations int
	tenant      string
}

func (f *batchParamFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.batchType, "type", "", "batch type; selects the operation run by batch jobs (required)")
	cmd.Flags().IntVar(&f.items, "items", 0, "total number of work items")
	cmd.Flags().IntVar(&f.jobsPerSeed, "jobs-per-seed", 0, "batch jobs created per seed activation (default from config)")
	cmd.Flags().IntVar(&f.invocations, "invocations", 0, "work items per batch job (default from config)")
	cmd.Flags().StringVar(&f.tenant, "tenant", "", "tenant owning the batch")
	_ = cmd.MarkFlagRequired("type")
}

func (f *batchParamFlags) params() batch.Params {
	return batch.Params{
		Type:                   f.batchType,
		TotalWorkItems:         f.items,
		BatchJobsPerSeed:       f.jobsPerSeed,
		InvocationsPerBatchJob: f.invocations,
		TenantID:               f.tenant,
	}
}

func newBatchCreateCmd() *cobra.Command {
	var (
		flags  batchParamFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a batch",
		Example: `  # 10,000 items in jobs of 20 items, 50 jobs per seed activation
  batchengine batch create --type sleep --items 10000 --invocations 20 --jobs-per-seed 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(r *runtime) error {
				b, err := r.engine.CreateBatch(cmd.Context(), flags.params())
				if err != nil {
					return err
				}
				return renderBatch(cmd.OutOrStdout(), output, b)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func newBatchGetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get BATCH_ID",
		Short: "Show one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(r *runtime) error {
				b, err := r.engine.GetBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderBatch(cmd.OutOrStdout(), output, b)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func newBatchStatsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "stats BATCH_ID",
		Short: "Show execution statistics of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(r *runtime) error {
				p, err := r.engine.Statistics(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderProgress(cmd.OutOrStdout(), output, p)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func newBatchJobsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "jobs BATCH_ID",
		Short: "List the batch jobs of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			return withRuntime(cmd.Context(), func(r *runtime) error {
				if _, err := r.engine.GetBatch(cmd.Context(), args[0]); err != nil {
					return err
				}
				jobs, err := r.engine.ListJobs(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderJobs(cmd.OutOrStdout(), output, jobs)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func newBatchDeleteCmd() *cobra.Command {
	var cascade, yes bool

	cmd := &cobra.Command{
		Use:   "delete BATCH_ID",
		Short: "Delete a batch",
		Long: `Deletes a batch and its job definitions.

Without --cascade the command fails while the batch still has uncompleted
batch jobs. With --cascade on a terminal it asks before discarding them
unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(r *runtime) error {
				if cascade && !yes {
					pending, err := r.store.CountJobs(cmd.Context(), args[0], true)
					if err != nil {
						return err
					}
					if pending > 0 {
						res := ConfirmCascadeDelete(cmd.OutOrStdout(), cmd.InOrStdin(), stdinIsTerminal(cmd), args[0], pending)
						if !res.Accepted {
							return errDeleteDeclined
						}
					}
				}

				if err := r.engine.DeleteBatch(cmd.Context(), args[0], cascade); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted batch %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete uncompleted batch jobs")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask before a cascading delete")
	return cmd
}

func newBatchSuspendCmd() *cobra.Command {
	return newSuspensionCmd("suspend", "Suspend a batch", true)
}

func newBatchActivateCmd() *cobra.Command {
	return newSuspensionCmd("activate", "Resume a suspended batch", false)
}

func newSuspensionCmd(use, short string, suspend bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " BATCH_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(r *runtime) error {
				var err error
				if suspend {
					err = r.engine.SuspendBatch(cmd.Context(), args[0])
				} else {
					err = r.engine.ActivateBatch(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				state := "active"
				if suspend {
					state = "suspended"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch %s is %s\n", args[0], state)
				return nil
			})
		},
	}
}

// stdinIsTerminal reports whether the command reads from an interactive terminal.
func stdinIsTerminal(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && isTerminal(f)
}
