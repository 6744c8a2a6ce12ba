package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/cli/pagination"
	"github.com/rshade/batchengine/internal/tui"
)

// Output formats accepted by --output.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// tabPadding is the minimum column padding for tabwriter output.
const tabPadding = 2

func validateOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format %q: must be table, json or yaml", format)
	}
}

// encode writes v as JSON or YAML. It reports false for table output.
func encode(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case outputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(v)
	case outputYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return true, encoder.Encode(v)
	default:
		return false, nil
	}
}

// batchList is the structured form of a batch listing.
type batchList struct {
	Batches    []batch.Batch              `json:"batches" yaml:"batches"`
	Pagination *pagination.PaginationMeta `json:"pagination,omitempty" yaml:"pagination,omitempty"`
}

func renderBatches(w io.Writer, format string, batches []batch.Batch, meta *pagination.PaginationMeta) error {
	if done, err := encode(w, format, batchList{Batches: batches, Pagination: meta}); done {
		return err
	}

	if len(batches) == 0 {
		_, err := fmt.Fprintln(w, "No batches found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTENANT\tSIZE\tJOBS\tSTATE\tSUSPENDED\tCREATED")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			b.ID, b.Type, dash(b.TenantID),
			tui.FormatNumber(b.Size), jobsColumn(b), b.State, b.Suspended,
			b.CreatedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if meta != nil {
		_, err := fmt.Fprintln(w, meta.String())
		return err
	}
	return nil
}

func renderBatch(w io.Writer, format string, b batch.Batch) error {
	if done, err := encode(w, format, b); done {
		return err
	}

	completedAt := "-"
	if b.Completed {
		completedAt = b.CompletedAt.Format(time.RFC3339)
	}

	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	rows := [][2]string{
		{"ID", b.ID},
		{"Type", b.Type},
		{"Tenant", dash(b.TenantID)},
		{"Size", tui.FormatNumber(b.Size)},
		{"Batch jobs per seed", strconv.Itoa(b.BatchJobsPerSeed)},
		{"Invocations per job", strconv.Itoa(b.InvocationsPerBatchJob)},
		{"Seeded items", tui.FormatNumber(b.SeededItems)},
		{"Jobs created", jobsColumn(b)},
		{"State", string(b.State)},
		{"Suspended", strconv.FormatBool(b.Suspended)},
		{"Seed definition", b.SeedJobDefinitionID},
		{"Monitor definition", b.MonitorJobDefinitionID},
		{"Batch job definition", b.BatchJobDefinitionID},
		{"Created", b.CreatedAt.Format(time.RFC3339)},
		{"Completed", completedAt},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

func renderProgress(w io.Writer, format string, p batch.Progress) error {
	if done, err := encode(w, format, p); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintf(tw, "Batch:\t%s\n", p.BatchID)
	fmt.Fprintf(tw, "State:\t%s\n", p.State)
	fmt.Fprintf(tw, "Progress:\t%.1f%%\n", p.PercentComplete())
	fmt.Fprintf(tw, "Work items:\t%s / %s\n", tui.FormatNumber(p.CompletedItems), tui.FormatNumber(p.TotalItems))
	fmt.Fprintf(tw, "Batch jobs:\t%s created, %s completed, %s failing, %s remaining\n",
		tui.FormatNumber(p.CreatedJobs), tui.FormatNumber(p.CompletedJobs),
		tui.FormatNumber(p.FailedJobs), tui.FormatNumber(p.RemainingJobs))
	fmt.Fprintf(tw, "Elapsed:\t%s\n", tui.FormatDuration(p.ElapsedTime))
	fmt.Fprintf(tw, "Rate:\t%s\n", tui.FormatRate(p.ItemsPerSecond()))
	return tw.Flush()
}

func renderJobs(w io.Writer, format string, jobs []batch.Job) error {
	if done, err := encode(w, format, jobs); done {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "ID\tRANGE\tCOMPLETED\tATTEMPTS\tLAST ERROR")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t[%d,%d)\t%t\t%d\t%s\n", j.ID, j.Start, j.End, j.Completed, j.Attempts, dash(j.LastError))
	}
	return tw.Flush()
}

func jobsColumn(b batch.Batch) string {
	return fmt.Sprintf("%d/%d", b.JobsCreated, b.TotalJobs())
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
