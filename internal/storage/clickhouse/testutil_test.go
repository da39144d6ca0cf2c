package clickhouse

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestConn starts a disposable ClickHouse server, creates the schema and
// returns a connection to the "backtest" database. The container is removed
// when t finishes.
func newTestConn(t *testing.T) *Conn {
	t.Helper()
	if testing.Short() {
		t.Skip("clickhouse container test skipped with -short")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.1-alpine",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"CLICKHOUSE_DB":       "backtest",
				"CLICKHOUSE_USER":     "default",
				"CLICKHOUSE_PASSWORD": "",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready for connections").WithStartupTimeout(time.Minute),
				wait.ForListeningPort("9000/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err, "start clickhouse container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate clickhouse container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://%s/backtest", endpoint))
	require.NoError(t, err, "connect to clickhouse container")
	t.Cleanup(func() { conn.Close() })

	applySchema(t, conn)
	return conn
}

// applySchema executes the migration files statement by statement. The
// migrations package embeds the same files but imports this one.
func applySchema(t *testing.T, conn *Conn) {
	t.Helper()

	schema := os.DirFS(filepath.Join("..", "migrations", "clickhouse"))
	files, err := fs.Glob(schema, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no clickhouse migrations found")
	sort.Strings(files)

	for _, name := range files {
		data, err := fs.ReadFile(schema, name)
		require.NoError(t, err)
		for _, stmt := range statements(string(data)) {
			require.NoError(t, conn.Exec(context.Background(), stmt), "apply %s", name)
		}
	}
}

// statements drops "--" comment lines and splits on semicolons.
func statements(sql string) []string {
	var kept strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			kept.WriteString(line)
			kept.WriteByte('\n')
		}
	}

	var out []string
	for _, stmt := range strings.Split(kept.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
