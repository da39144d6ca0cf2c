package postgres

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestPool starts a disposable PostgreSQL server, applies the schema and
// returns a pool. The container is removed when t finishes.
func newTestPool(t *testing.T) *Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped with -short")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("backtest"),
		tcpostgres.WithUsername("backtest"),
		tcpostgres.WithPassword("backtest"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "connect to postgres container")
	t.Cleanup(pool.Close)

	applySchema(t, pool)
	return pool
}

// applySchema executes the migration files in name order. The migrations
// package embeds the same files but imports this one.
func applySchema(t *testing.T, pool *Pool) {
	t.Helper()

	schema := os.DirFS(filepath.Join("..", "migrations", "postgres"))
	files, err := fs.Glob(schema, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no postgres migrations found")
	sort.Strings(files)

	for _, name := range files {
		sql, err := fs.ReadFile(schema, name)
		require.NoError(t, err)
		_, err = pool.Exec(context.Background(), string(sql))
		require.NoError(t, err, "apply %s", name)
	}
}
