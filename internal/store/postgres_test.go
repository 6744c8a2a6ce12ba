package store

import (
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/batchengine/internal/batch"
	"github.com/rshade/batchengine/internal/store/migrations"
)

func TestBuildBatchQuery(t *testing.T) {
	suspended := false
	tests := []struct {
		name     string
		spec     batch.QuerySpec
		count    bool
		contains []string
		args     int
	}{
		{
			name:     "unfiltered list",
			spec:     batch.QuerySpec{},
			contains: []string{"FROM batches ORDER BY created_at ASC, id ASC"},
		},
		{
			name:     "count by type",
			spec:     batch.QuerySpec{Type: "instance-migration", Orderings: []batch.Ordering{{Property: batch.PropertyID, Direction: batch.Asc}}},
			count:    true,
			contains: []string{"SELECT COUNT(1) FROM batches WHERE type = $1"},
			args:     1,
		},
		{
			name: "all filters with ordering and paging",
			spec: batch.QuerySpec{
				BatchID:         "b1",
				Type:            "t",
				TenantIDs:       []string{"a", "b"},
				WithoutTenantID: true,
				Suspended:       &suspended,
				Orderings: []batch.Ordering{
					{Property: batch.PropertyTenantID, Direction: batch.Desc},
					{Property: batch.PropertyID, Direction: batch.Asc},
				},
				FirstResult: 10,
				MaxResults:  5,
			},
			contains: []string{
				"id = $1", "type = $2", "tenant_id = ANY($3)", "tenant_id = ''", "suspended = $4",
				"ORDER BY tenant_id DESC, id ASC, created_at ASC, id ASC", "LIMIT $5", "OFFSET $6",
			},
			args: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildBatchQuery(tt.spec, tt.count)
			for _, fragment := range tt.contains {
				assert.Contains(t, query, fragment)
			}
			assert.Len(t, args, tt.args)
			if tt.count {
				assert.NotContains(t, query, "ORDER BY")
			}
		})
	}
}

func TestListMigrationFiles(t *testing.T) {
	files, err := listMigrationFiles(fstest.MapFS{
		"002_b.sql":    {Data: []byte("SELECT 2")},
		"001_a.sql":    {Data: []byte("SELECT 1")},
		"README.md":    {Data: []byte("docs")},
		"nested/x.sql": {Data: []byte("SELECT 3")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, files)

	embedded, err := listMigrationFiles(migrations.Files)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_batches.sql", "002_batch_jobs.sql"}, embedded)
}

func TestNewPostgresStore_EmptyDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "")
	require.Error(t, err)
}

func TestPostgresStoreIntegration(t *testing.T) {
	dsn := os.Getenv("BATCHENGINE_POSTGRES_DSN_INTEGRATION")
	if dsn == "" {
		t.Skip("set BATCHENGINE_POSTGRES_DSN_INTEGRATION to run Postgres integration tests")
	}

	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewPostgresStore(context.Background(), dsn)
		require.NoError(t, err)
		_, err = s.db.Exec(`TRUNCATE batches CASCADE`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
