package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/store/migrations"
)

// pgForeignKeyViolation is the SQLSTATE raised when a job references a missing batch.
const pgForeignKeyViolation = "23503"

const batchColumns = `id, type, size, batch_jobs_per_seed, invocations_per_batch_job,
	seed_job_definition_id, monitor_job_definition_id, batch_job_definition_id, tenant_id,
	seeded_items, jobs_created, state, suspended, completed, created_at, completed_at`

const jobColumns = `id, batch_id, ordinal, start_item, end_item, completed, attempts, last_error,
	created_at, completed_at`

// sortColumns maps query properties to columns.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var sortColumns = map[batch.Property]string{
	batch.PropertyID:       "id",
	batch.PropertyTenantID: "tenant_id",
}

// PostgresStore persists batches in PostgreSQL through lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn and applies pending migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn cannot be empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err = store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`,
	); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	files, err := listMigrationFiles(migrations.Files)
	if err != nil {
		return err
	}

	for _, file := range files {
		var applied bool
		if err = p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, file,
		).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %s: %w", file, err)
		}
		if applied {
			continue
		}
		if err = p.applyMigration(ctx, file); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) applyMigration(ctx context.Context, file string) error {
	body, err := fs.ReadFile(migrations.Files, file)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", file, err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("applying migration %s: %w", file, err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`, file, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("recording migration %s: %w", file, err)
	}
	return tx.Commit()
}

// listMigrationFiles returns the .sql files of migFS in name order.
func listMigrationFiles(migFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migFS, ".")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// CreateBatch implements Store.
func (p *PostgresStore) CreateBatch(ctx context.Context, b batch.Batch) error {
	if b.ID == "" {
		return ErrInvalidID
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO batches (`+batchColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		b.ID, b.Type, b.Size, b.BatchJobsPerSeed, b.InvocationsPerBatchJob,
		b.SeedJobDefinitionID, b.MonitorJobDefinitionID, b.BatchJobDefinitionID, b.TenantID,
		b.SeededItems, b.JobsCreated, string(b.State), b.Suspended, b.Completed,
		b.CreatedAt.UTC(), nullTime(b.CompletedAt),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return ErrBatchExists
	}
	return err
}

// GetBatch implements Store.
func (p *PostgresStore) GetBatch(ctx context.Context, id string) (batch.Batch, bool, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return batch.Batch{}, false, nil
	}
	if err != nil {
		return batch.Batch{}, false, err
	}
	return b, true, nil
}

// UpdateBatch implements Store.
func (p *PostgresStore) UpdateBatch(ctx context.Context, id string, mutate MutateFunc) (batch.Batch, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return batch.Batch{}, err
	}
	defer func() { _ = tx.Rollback() }()

	b, err := scanBatch(tx.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return batch.Batch{}, notFound("batch", id)
	}
	if err != nil {
		return batch.Batch{}, err
	}

	if err = mutate(&b); err != nil {
		return batch.Batch{}, err
	}
	b.ID = id

	if _, err = tx.ExecContext(ctx,
		`UPDATE batches SET seed_job_definition_id=$2, monitor_job_definition_id=$3,
		 batch_job_definition_id=$4, seeded_items=$5, jobs_created=$6, state=$7, suspended=$8,
		 completed=$9, completed_at=$10
		 WHERE id=$1`,
		b.ID, b.SeedJobDefinitionID, b.MonitorJobDefinitionID, b.BatchJobDefinitionID,
		b.SeededItems, b.JobsCreated, string(b.State), b.Suspended, b.Completed, nullTime(b.CompletedAt),
	); err != nil {
		return batch.Batch{}, err
	}

	if err = tx.Commit(); err != nil {
		return batch.Batch{}, err
	}
	return b, nil
}

// DeleteBatch removes the batch; batch_jobs rows go with it through ON DELETE CASCADE.
func (p *PostgresStore) DeleteBatch(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id)
	return err
}

// QueryBatches implements Store.
func (p *PostgresStore) QueryBatches(ctx context.Context, spec batch.QuerySpec) ([]batch.Batch, error) {
	query, args := buildBatchQuery(spec, false)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []batch.Batch{}
	for rows.Next() {
		b, scanErr := scanBatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CountBatches implements Store.
func (p *PostgresStore) CountBatches(ctx context.Context, spec batch.QuerySpec) (int, error) {
	query, args := buildBatchQuery(spec, true)
	var n int
	err := p.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// buildBatchQuery translates a QuerySpec into SQL with positional arguments.
func buildBatchQuery(spec batch.QuerySpec, count bool) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if spec.BatchID != "" {
		where = append(where, "id = "+arg(spec.BatchID))
	}
	if spec.Type != "" {
		where = append(where, "type = "+arg(spec.Type))
	}
	if len(spec.TenantIDs) > 0 {
		where = append(where, "tenant_id = ANY("+arg(pq.Array(spec.TenantIDs))+")")
	}
	if spec.WithoutTenantID {
		where = append(where, "tenant_id = ''")
	}
	if spec.Suspended != nil {
		where = append(where, "suspended = "+arg(*spec.Suspended))
	}
	if spec.Completed != nil {
		where = append(where, "completed = "+arg(*spec.Completed))
	}

	var sb strings.Builder
	if count {
		sb.WriteString("SELECT COUNT(1) FROM batches")
	} else {
		sb.WriteString("SELECT " + batchColumns + " FROM batches")
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if count {
		return sb.String(), args
	}

	order := make([]string, 0, len(spec.Orderings)+2)
	for _, o := range spec.Orderings {
		dir := "ASC"
		if o.Direction == batch.Desc {
			dir = "DESC"
		}
		order = append(order, sortColumns[o.Property]+" "+dir)
	}
	// Stable tie-break in creation order.
	order = append(order, "created_at ASC", "id ASC")
	sb.WriteString(" ORDER BY " + strings.Join(order, ", "))

	if spec.MaxResults > 0 {
		sb.WriteString(" LIMIT " + arg(spec.MaxResults))
	}
	if spec.FirstResult > 0 {
		sb.WriteString(" OFFSET " + arg(spec.FirstResult))
	}
	return sb.String(), args
}

// CreateJobs implements Store.
func (p *PostgresStore) CreateJobs(ctx context.Context, jobs []batch.Job) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	created := 0
	for _, j := range jobs {
		if j.ID == "" {
			return 0, ErrInvalidID
		}
		res, execErr := tx.ExecContext(ctx,
			`INSERT INTO batch_jobs (`+jobColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			 ON CONFLICT (id) DO NOTHING`,
			j.ID, j.BatchID, j.Ordinal, j.Start, j.End, j.Completed, j.Attempts, j.LastError,
			j.CreatedAt.UTC(), nullTime(j.CompletedAt),
		)
		var pqErr *pq.Error
		if errors.As(execErr, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation {
			return 0, notFound("batch", j.BatchID)
		}
		if execErr != nil {
			return 0, execErr
		}
		n, _ := res.RowsAffected()
		created += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

// GetJob implements Store.
func (p *PostgresStore) GetJob(ctx context.Context, id string) (batch.Job, bool, error) {
	j, err := scanJob(p.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM batch_jobs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return batch.Job{}, false, nil
	}
	if err != nil {
		return batch.Job{}, false, err
	}
	return j, true, nil
}

// ListJobs implements Store.
func (p *PostgresStore) ListJobs(ctx context.Context, batchID string) ([]batch.Job, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM batch_jobs WHERE batch_id = $1 ORDER BY ordinal`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []batch.Job{}
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CountJobs implements Store.
func (p *PostgresStore) CountJobs(ctx context.Context, batchID string, pendingOnly bool) (int, error) {
	query := `SELECT COUNT(1) FROM batch_jobs WHERE batch_id = $1`
	if pendingOnly {
		query += ` AND completed = FALSE`
	}
	var n int
	err := p.db.QueryRowContext(ctx, query, batchID).Scan(&n)
	return n, err
}

// CompleteJob implements Store.
func (p *PostgresStore) CompleteJob(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE batch_jobs SET completed = TRUE, completed_at = $2 WHERE id = $1 AND completed = FALSE`,
		id, at.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordJobFailure implements Store.
func (p *PostgresStore) RecordJobFailure(ctx context.Context, id, message string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE batch_jobs SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, message)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("batch job", id)
	}
	return nil
}

// Close implements Store.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(s scanner) (batch.Batch, error) {
	var (
		b           batch.Batch
		state       string
		completedAt sql.NullTime
	)
	err := s.Scan(&b.ID, &b.Type, &b.Size, &b.BatchJobsPerSeed, &b.InvocationsPerBatchJob,
		&b.SeedJobDefinitionID, &b.MonitorJobDefinitionID, &b.BatchJobDefinitionID, &b.TenantID,
		&b.SeededItems, &b.JobsCreated, &state, &b.Suspended, &b.Completed, &b.CreatedAt, &completedAt)
	if err != nil {
		return batch.Batch{}, err
	}
	b.State = batch.State(state)
	if completedAt.Valid {
		b.CompletedAt = completedAt.Time
	}
	return b, nil
}

func scanJob(s scanner) (batch.Job, error) {
	var (
		j           batch.Job
		completedAt sql.NullTime
	)
	err := s.Scan(&j.ID, &j.BatchID, &j.Ordinal, &j.Start, &j.End, &j.Completed, &j.Attempts,
		&j.LastError, &j.CreatedAt, &completedAt)
	if err != nil {
		return batch.Job{}, err
	}
	if completedAt.Valid {
		j.CompletedAt = completedAt.Time
	}
	return j, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
