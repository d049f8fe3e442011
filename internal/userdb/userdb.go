// Package userdb is the read-only data store the query tool executes
// against: a SQLite users table behind a pooled database/sql handle.
package userdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const (
	queryTimeout = 10 * time.Second
	maxOpenConns = 8
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	role       TEXT NOT NULL,
	profession TEXT NOT NULL,
	city       TEXT NOT NULL
);`

// DB wraps two pools over the same SQLite file: an admin handle used
// once for bootstrap and seeding, and a query_only pool that serves
// tool queries. The pragma makes the read pool refuse writes at the
// engine level, independent of the SQL guard upstream.
type DB struct {
	admin *sql.DB
	read  *sql.DB
}

func Open(path string) (*DB, error) {
	admin, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if _, err := admin.Exec(schema); err != nil {
		admin.Close()
		return nil, fmt.Errorf("creating users table: %w", err)
	}

	read, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		admin.Close()
		return nil, fmt.Errorf("opening read pool: %w", err)
	}
	read.SetMaxOpenConns(maxOpenConns)
	read.SetConnMaxIdleTime(5 * time.Minute)

	return &DB{admin: admin, read: read}, nil
}

// Query runs a single read statement against the read pool and returns
// the rows as ordered column→value records. Integer values are carried
// as exact decimal strings so 64-bit results survive JSON encoding
// without precision loss. The connection is checked out per query and
// returned when the rows are drained; no transaction is held open.
func (d *DB) Query(ctx context.Context, query string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := d.read.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = normalize(values[i])
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// normalize down-converts driver values to wire-safe representations.
func normalize(v any) any {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case []byte:
		return string(t)
	default:
		return v
	}
}

func (d *DB) Close() error {
	if err := d.read.Close(); err != nil {
		d.admin.Close()
		return err
	}
	return d.admin.Close()
}
