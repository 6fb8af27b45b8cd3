package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"expensetracker/internal/core"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Provider hands out one live connection per repository call. Callers must
// close the connection when the call ends.
type Provider interface {
	Conn(ctx context.Context) (*sql.Conn, error)
	Dialect() Dialect
}

// Dialect captures the statement differences between supported stores.
type Dialect struct {
	Name string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	// generated keys come back through RETURNING instead of LastInsertId
	returning bool
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", numbered: true, returning: true}
)

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// DB is a Provider over a database/sql pool.
type DB struct {
	db      *sql.DB
	dialect Dialect
	source  string
}

// OpenSQLite opens (creating if needed) the SQLite database at path with
// foreign keys enforced.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &core.ConnectivityError{Op: "open sqlite", Err: err}
	}

	// SQLite doesn't handle multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &core.ConnectivityError{Op: "ping sqlite", Err: err}
	}

	return &DB{db: db, dialect: SQLite, source: path}, nil
}

// OpenPostgres opens a pgx-backed pool for the given connection string.
func OpenPostgres(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("missing postgres connection string")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &core.ConnectivityError{Op: "open postgres", Err: err}
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &core.ConnectivityError{Op: "ping postgres", Err: err}
	}

	return &DB{db: db, dialect: Postgres, source: dsn}, nil
}

// Conn acquires a dedicated connection from the pool.
func (d *DB) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, &core.ConnectivityError{Op: "acquire connection", Err: err}
	}
	return conn, nil
}

func (d *DB) Dialect() Dialect { return d.dialect }

// Ping checks the store is reachable.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return &core.ConnectivityError{Op: "ping", Err: err}
	}
	return nil
}

// Migrate applies the embedded schema for this store.
func (d *DB) Migrate() error {
	return RunMigrations(d.dialect, d.source)
}

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
