package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rshade/batchengine/internal/batch"
)

// recordFileExtension is the file extension used for stored records.
const recordFileExtension = ".json"

const (
	batchesDir = "batches"
	jobsDir    = "jobs"
	lockFile   = ".lock"
)

// FileStore stores every batch and batch job as a JSON file:
//
//	<directory>/batches/<batchID>.json
//	<directory>/jobs/<batchID>/<jobID>.json
//
// Writes go to a temporary file first and are renamed into place.
// Every read-modify-write holds an advisory lock on <directory>/.lock, so
// several processes (a serve process and CLI commands) can share one
// directory.
type FileStore struct {
	// directory is the data directory path.
	directory string

	// mu protects concurrent access to file operations.
	mu sync.RWMutex

	// lock is the open lock file; nil after Close.
	lock *os.File
}

// NewFileStore creates a file store rooted at directory.
// The directory will be created if it doesn't exist.
func NewFileStore(directory string) (*FileStore, error) {
	if directory == "" {
		return nil, errors.New("store directory cannot be empty")
	}

	for _, sub := range []string{batchesDir, jobsDir} {
		if err := os.MkdirAll(filepath.Join(directory, sub), 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	lock, err := os.OpenFile(filepath.Join(directory, lockFile), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open store lock file: %w", err)
	}

	return &FileStore{directory: directory, lock: lock}, nil
}

// writeLock takes the in-process write lock and the cross-process file lock.
// The returned func releases both.
func (s *FileStore) writeLock() (func(), error) {
	s.mu.Lock()
	if s.lock == nil {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	if err := lockFileExclusive(s.lock); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to lock store: %w", err)
	}
	return func() {
		_ = unlockFile(s.lock)
		s.mu.Unlock()
	}, nil
}

// GetDirectory returns the data directory path.
func (s *FileStore) GetDirectory() string {
	return s.directory
}

// CreateBatch implements Store.
func (s *FileStore) CreateBatch(_ context.Context, b batch.Batch) error {
	if b.ID == "" {
		return ErrInvalidID
	}

	unlock, err := s.writeLock()
	if err != nil {
		return err
	}
	defer unlock()

	path := s.batchPath(b.ID)
	if _, err := os.Stat(path); err == nil {
		return ErrBatchExists
	}
	return writeJSON(path, b)
}

// GetBatch implements Store.
func (s *FileStore) GetBatch(_ context.Context, id string) (batch.Batch, bool, error) {
	if id == "" {
		return batch.Batch{}, false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var b batch.Batch
	found, err := readJSON(s.batchPath(id), &b)
	return b, found, err
}

// UpdateBatch implements Store.
func (s *FileStore) UpdateBatch(_ context.Context, id string, mutate MutateFunc) (batch.Batch, error) {
	unlock, err := s.writeLock()
	if err != nil {
		return batch.Batch{}, err
	}
	defer unlock()

	var b batch.Batch
	found, err := readJSON(s.batchPath(id), &b)
	if err != nil {
		return batch.Batch{}, err
	}
	if !found {
		return batch.Batch{}, notFound("batch", id)
	}

	if err = mutate(&b); err != nil {
		return batch.Batch{}, err
	}
	b.ID = id

	if err = writeJSON(s.batchPath(id), b); err != nil {
		return batch.Batch{}, err
	}
	return b, nil
}

// DeleteBatch implements Store.
func (s *FileStore) DeleteBatch(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	unlock, err := s.writeLock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.RemoveAll(s.jobDir(id)); err != nil {
		return fmt.Errorf("failed to delete batch jobs: %w", err)
	}
	if err := os.Remove(s.batchPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete batch file: %w", err)
	}
	return nil
}

// QueryBatches implements Store.
func (s *FileStore) QueryBatches(_ context.Context, spec batch.QuerySpec) ([]batch.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadBatchesLocked()
	if err != nil {
		return nil, err
	}
	return spec.Apply(all), nil
}

// CountBatches implements Store.
func (s *FileStore) CountBatches(_ context.Context, spec batch.QuerySpec) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.loadBatchesLocked()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, b := range all {
		if spec.Matches(b) {
			n++
		}
	}
	return n, nil
}

// loadBatchesLocked reads every batch file in directory order.
func (s *FileStore) loadBatchesLocked() ([]batch.Batch, error) {
	entries, err := os.ReadDir(filepath.Join(s.directory, batchesDir))
	if err != nil {
		return nil, fmt.Errorf("failed to read batch directory: %w", err)
	}

	out := make([]batch.Batch, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordFileExtension {
			continue
		}

		var b batch.Batch
		found, readErr := readJSON(filepath.Join(s.directory, batchesDir, entry.Name()), &b)
		if readErr != nil {
			return nil, readErr
		}
		if found {
			out = append(out, b)
		}
	}
	return out, nil
}

// CreateJobs implements Store.
func (s *FileStore) CreateJobs(_ context.Context, jobs []batch.Job) (int, error) {
	unlock, err := s.writeLock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	created := 0
	for _, j := range jobs {
		if j.ID == "" {
			return created, ErrInvalidID
		}
		if _, err := os.Stat(s.batchPath(j.BatchID)); err != nil {
			return created, notFound("batch", j.BatchID)
		}
		if err := os.MkdirAll(s.jobDir(j.BatchID), 0750); err != nil {
			return created, fmt.Errorf("failed to create job directory: %w", err)
		}

		path := s.jobPath(j.BatchID, j.ID)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := writeJSON(path, j); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// GetJob implements Store.
func (s *FileStore) GetJob(_ context.Context, id string) (batch.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var j batch.Job
	found, err := readJSON(s.jobPathFromID(id), &j)
	return j, found, err
}

// ListJobs implements Store.
func (s *FileStore) ListJobs(_ context.Context, batchID string) ([]batch.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listJobsLocked(batchID)
}

func (s *FileStore) listJobsLocked(batchID string) ([]batch.Job, error) {
	entries, err := os.ReadDir(s.jobDir(batchID))
	if err != nil {
		if os.IsNotExist(err) {
			return []batch.Job{}, nil
		}
		return nil, fmt.Errorf("failed to read job directory: %w", err)
	}

	out := make([]batch.Job, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordFileExtension {
			continue
		}

		var j batch.Job
		found, readErr := readJSON(filepath.Join(s.jobDir(batchID), entry.Name()), &j)
		if readErr != nil {
			return nil, readErr
		}
		if found {
			out = append(out, j)
		}
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Ordinal < out[b].Ordinal })
	return out, nil
}

// CountJobs implements Store.
func (s *FileStore) CountJobs(_ context.Context, batchID string, pendingOnly bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs, err := s.listJobsLocked(batchID)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, j := range jobs {
		if !pendingOnly || !j.Completed {
			n++
		}
	}
	return n, nil
}

// CompleteJob implements Store.
func (s *FileStore) CompleteJob(_ context.Context, id string, at time.Time) (bool, error) {
	unlock, err := s.writeLock()
	if err != nil {
		return false, err
	}
	defer unlock()

	path := s.jobPathFromID(id)
	var j batch.Job
	found, err := readJSON(path, &j)
	if err != nil || !found || j.Completed {
		return false, err
	}

	j.Completed = true
	j.CompletedAt = at
	if err = writeJSON(path, j); err != nil {
		return false, err
	}
	return true, nil
}

// RecordJobFailure implements Store.
func (s *FileStore) RecordJobFailure(_ context.Context, id, message string) error {
	unlock, err := s.writeLock()
	if err != nil {
		return err
	}
	defer unlock()

	path := s.jobPathFromID(id)
	var j batch.Job
	found, err := readJSON(path, &j)
	if err != nil {
		return err
	}
	if !found {
		return notFound("batch job", id)
	}

	j.Attempts++
	j.LastError = message
	return writeJSON(path, j)
}

// Close releases the lock file. Mutations fail with ErrStoreClosed afterwards.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock == nil {
		return nil
	}
	err := s.lock.Close()
	s.lock = nil
	return err
}

func (s *FileStore) batchPath(id string) string {
	return filepath.Join(s.directory, batchesDir, sanitize(id)+recordFileExtension)
}

func (s *FileStore) jobDir(batchID string) string {
	return filepath.Join(s.directory, jobsDir, sanitize(batchID))
}

func (s *FileStore) jobPath(batchID, jobID string) string {
	return filepath.Join(s.jobDir(batchID), sanitize(jobID)+recordFileExtension)
}

// jobPathFromID derives the owning batch from the job id (<batchID>-<ordinal>).
func (s *FileStore) jobPathFromID(id string) string {
	batchID := id
	if i := strings.LastIndex(id, "-"); i > 0 {
		batchID = id[:i]
	}
	return s.jobPath(batchID, id)
}

// sanitize makes an id safe to use as a file name.
func sanitize(id string) string {
	safe := strings.ReplaceAll(id, "/", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	safe = strings.ReplaceAll(safe, ":", "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	return safe
}

// readJSON decodes path into v and reports whether the file exists.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read record file: %w", err)
	}

	if unmarshalErr := json.Unmarshal(data, v); unmarshalErr != nil {
		return false, fmt.Errorf("failed to unmarshal record %s: %w", filepath.Base(path), unmarshalErr)
	}
	return true, nil
}

// writeJSON writes v to path atomically.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	// Write to temporary file first, then rename for atomicity
	tempPath := path + ".tmp"
	if writeErr := os.WriteFile(tempPath, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write record file: %w", writeErr)
	}

	if renameErr := os.Rename(tempPath, path); renameErr != nil {
		_ = os.Remove(tempPath) // Clean up temp file on error
		return fmt.Errorf("failed to rename record file: %w", renameErr)
	}

	return nil
}
