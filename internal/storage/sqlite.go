// Package storage provides a citation.Accessor over a local SQLite mirror of
// CrossRef works and their citation relation.
package storage

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// DefaultMaxOpenConns bounds concurrent readers against the store.
const DefaultMaxOpenConns = 8

// DB wraps a SQLite database connection pool.
type DB struct {
	db       *sql.DB
	readOnly bool
	compress bool
}

// Option configures OpenDB.
type Option func(*openOptions)

type openOptions struct {
	readOnly     bool
	maxOpenConns int
	compress     bool
	busyTimeout  int
}

// WithReadOnly opens the store in read-only mode. The file must exist.
func WithReadOnly() Option {
	return func(o *openOptions) { o.readOnly = true }
}

// WithMaxOpenConns sets the size of the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *openOptions) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithCompressedMetadata zlib-compresses metadata written by LoadJSONL.
func WithCompressedMetadata() Option {
	return func(o *openOptions) { o.compress = true }
}

// OpenDB opens or creates a store at the given path.
func OpenDB(path string, opts ...Option) (*DB, error) {
	o := openOptions{maxOpenConns: DefaultMaxOpenConns, busyTimeout: 5000}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", dsn(path, o))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)

	if o.readOnly {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("opening database: %w", err)
		}
	} else if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db, readOnly: o.readOnly, compress: o.compress}, nil
}

func dsn(path string, o openOptions) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", o.busyTimeout))
	if o.readOnly {
		q.Set("mode", "ro")
		q.Add("_pragma", "query_only(1)")
	}
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		-- One row per work; metadata is a CrossRef JSON document, optionally
		-- zlib-compressed.
		CREATE TABLE IF NOT EXISTS works (
			doi TEXT PRIMARY KEY,
			metadata BLOB
		);

		-- Citation relation, one row per reference link.
		CREATE TABLE IF NOT EXISTS citations (
			citing_doi TEXT NOT NULL,
			cited_doi TEXT NOT NULL,
			citing_year INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_citations_citing ON citations(citing_doi);
		CREATE INDEX IF NOT EXISTS idx_citations_cited ON citations(cited_doi);
	`

	_, err := db.Exec(schema)
	return err
}

// Count returns the number of works with metadata.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM works").Scan(&count)
	return count, err
}
