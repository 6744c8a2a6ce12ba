package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rshade/batchengine/internal/batch"
)

// MemoryStore keeps batches and jobs in process memory.
// Unordered queries return batches in insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	batches map[string]batch.Batch
	jobs    map[string]batch.Job
	byBatch map[string][]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		batches: make(map[string]batch.Batch),
		jobs:    make(map[string]batch.Job),
		byBatch: make(map[string][]string),
	}
}

// CreateBatch implements Store.
func (m *MemoryStore) CreateBatch(_ context.Context, b batch.Batch) error {
	if b.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[b.ID]; ok {
		return ErrBatchExists
	}
	m.batches[b.ID] = b
	m.order = append(m.order, b.ID)
	return nil
}

// GetBatch implements Store.
func (m *MemoryStore) GetBatch(_ context.Context, id string) (batch.Batch, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	return b, ok, nil
}

// UpdateBatch implements Store.
func (m *MemoryStore) UpdateBatch(_ context.Context, id string, mutate MutateFunc) (batch.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return batch.Batch{}, notFound("batch", id)
	}
	if err := mutate(&b); err != nil {
		return batch.Batch{}, err
	}
	b.ID = id
	m.batches[id] = b
	return b, nil
}

// DeleteBatch implements Store.
func (m *MemoryStore) DeleteBatch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[id]; !ok {
		return nil
	}
	delete(m.batches, id)
	for _, jobID := range m.byBatch[id] {
		delete(m.jobs, jobID)
	}
	delete(m.byBatch, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// QueryBatches implements Store.
func (m *MemoryStore) QueryBatches(_ context.Context, spec batch.QuerySpec) ([]batch.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return spec.Apply(m.orderedLocked()), nil
}

// CountBatches implements Store.
func (m *MemoryStore) CountBatches(_ context.Context, spec batch.QuerySpec) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, b := range m.batches {
		if spec.Matches(b) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) orderedLocked() []batch.Batch {
	out := make([]batch.Batch, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.batches[id])
	}
	return out
}

// CreateJobs implements Store.
func (m *MemoryStore) CreateJobs(_ context.Context, jobs []batch.Job) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, j := range jobs {
		if j.ID == "" {
			return created, ErrInvalidID
		}
		if _, ok := m.batches[j.BatchID]; !ok {
			return created, notFound("batch", j.BatchID)
		}
		if _, ok := m.jobs[j.ID]; ok {
			continue
		}
		m.jobs[j.ID] = j
		m.byBatch[j.BatchID] = append(m.byBatch[j.BatchID], j.ID)
		created++
	}
	return created, nil
}

// GetJob implements Store.
func (m *MemoryStore) GetJob(_ context.Context, id string) (batch.Job, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	return j, ok, nil
}

// ListJobs implements Store.
func (m *MemoryStore) ListJobs(_ context.Context, batchID string) ([]batch.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]batch.Job, 0, len(m.byBatch[batchID]))
	for _, id := range m.byBatch[batchID] {
		out = append(out, m.jobs[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out, nil
}

// CountJobs implements Store.
func (m *MemoryStore) CountJobs(_ context.Context, batchID string, pendingOnly bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, id := range m.byBatch[batchID] {
		if !pendingOnly || !m.jobs[id].Completed {
			n++
		}
	}
	return n, nil
}

// CompleteJob implements Store.
func (m *MemoryStore) CompleteJob(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Completed {
		return false, nil
	}
	j.Completed = true
	j.CompletedAt = at
	m.jobs[id] = j
	return true, nil
}

// RecordJobFailure implements Store.
func (m *MemoryStore) RecordJobFailure(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return notFound("batch job", id)
	}
	j.Attempts++
	j.LastError = message
	m.jobs[id] = j
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
