package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"

	chstore "hft-multifactor/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named in dsn if needed and
// applies the embedded files. The returned connection targets that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	if err := createDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	if err := applyClickhouse(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// applyClickhouse runs every statement separately; the native protocol
// rejects multi-statement queries.
func applyClickhouse(ctx context.Context, conn *chstore.Conn) error {
	files, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return err
	}

	for _, m := range files {
		for _, stmt := range splitStatements(m.sql) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}
	return nil
}

// splitStatements splits sql on semicolons outside single-quoted literals
// and drops -- comments. A doubled quote inside a literal is an escape.
func splitStatements(sql string) []string {
	var (
		stmts    []string
		cur      strings.Builder
		inString bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case inString && c == '\'' && i+1 < len(sql) && sql[i+1] == '\'':
			cur.WriteString("''")
			i++
			continue
		case c == '\'':
			inString = !inString
		case !inString && c == '-' && strings.HasPrefix(sql[i:], "--"):
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
			continue
		case !inString && c == ';':
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return stmts
}

func databaseFromDSN(dsn string) (string, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if opts.Auth.Database == "" {
		return "", fmt.Errorf("clickhouse dsn for %s has no database", strings.Join(opts.Addr, ","))
	}
	return opts.Auth.Database, nil
}
