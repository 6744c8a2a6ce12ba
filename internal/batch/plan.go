package batch

import "time"

// Range is a contiguous span of work items [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of work items in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// PlanSeed returns the work item ranges the next seed activation claims for b.
// It creates at most BatchJobsPerSeed ranges, each at most InvocationsPerBatchJob wide,
// starting at the first unclaimed item. An empty result means seeding is finished.
func PlanSeed(b Batch) []Range {
	remaining := b.RemainingItems()
	if remaining <= 0 || b.InvocationsPerBatchJob <= 0 {
		return nil
	}

	count := min(b.BatchJobsPerSeed, ceilDiv(remaining, b.InvocationsPerBatchJob))
	ranges := make([]Range, count)

	for i := range count {
		// Calculate range boundaries
		start := b.SeededItems + i*b.InvocationsPerBatchJob
		end := min(start+b.InvocationsPerBatchJob, b.Size)
		ranges[i] = Range{Start: start, End: end}
	}

	return ranges
}

// JobsForRanges builds the batch jobs for ranges planned by PlanSeed.
// Ordinals continue from b.JobsCreated so ids stay deterministic across retries.
func JobsForRanges(b Batch, ranges []Range, now time.Time) []Job {
	jobs := make([]Job, len(ranges))
	for i, r := range ranges {
		ordinal := b.JobsCreated + i
		jobs[i] = Job{
			ID:        JobID(b.ID, ordinal),
			BatchID:   b.ID,
			Ordinal:   ordinal,
			Start:     r.Start,
			End:       r.End,
			CreatedAt: now,
		}
	}
	return jobs
}

// ceilDiv divides a by b rounding up. b must be positive.
func ceilDiv(a, b int) int {
	n := a / b
	if a%b > 0 {
		n++
	}
	return n
}
