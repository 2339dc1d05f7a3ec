package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/matsen/citenet/internal/citation"
	"github.com/matsen/citenet/internal/doi"
	"github.com/matsen/citenet/internal/reference"
)

var _ citation.Accessor = (*DB)(nil)

const (
	forwardQuery = `SELECT DISTINCT cited_doi FROM citations WHERE citing_doi = ? ORDER BY cited_doi`
	reverseQuery = `SELECT DISTINCT citing_doi FROM citations WHERE cited_doi = ? ORDER BY citing_doi`
)

// Forward returns the references made by the work.
func (d *DB) Forward(ctx context.Context, id string) ([]string, error) {
	return d.relation(ctx, forwardQuery, id, 0)
}

// Reverse returns the works citing the work. This scans the cited_doi index
// and is the expensive direction for well-cited works.
func (d *DB) Reverse(ctx context.Context, id string) ([]string, error) {
	return d.relation(ctx, reverseQuery, id, 0)
}

// Cited returns up to limit references made by the work (limit <= 0 means
// no limit).
func (d *DB) Cited(ctx context.Context, id string, limit int) ([]string, error) {
	return d.relation(ctx, forwardQuery, id, limit)
}

// Citing returns up to limit works citing the work.
func (d *DB) Citing(ctx context.Context, id string, limit int) ([]string, error) {
	return d.relation(ctx, reverseQuery, id, limit)
}

func (d *DB) relation(ctx context.Context, query, id string, limit int) ([]string, error) {
	key := doi.Normalize(id)
	args := []any{key}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying citations for %s: %w", key, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning citation row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading citations for %s: %w", key, err)
	}

	if len(out) == 0 {
		ok, err := d.exists(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, citation.NotFound(key)
		}
		return []string{}, nil
	}
	return out, nil
}

// exists reports whether the DOI appears in either table.
func (d *DB) exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM works WHERE doi = ?)
			OR EXISTS(SELECT 1 FROM citations WHERE citing_doi = ?)
			OR EXISTS(SELECT 1 FROM citations WHERE cited_doi = ?)`,
		key, key, key).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("checking existence of %s: %w", key, err)
	}
	return found, nil
}

// Metadata returns the decoded record for the work.
func (d *DB) Metadata(ctx context.Context, id string) (*reference.Work, error) {
	key := doi.Normalize(id)

	var blob []byte
	err := d.db.QueryRowContext(ctx, `SELECT metadata FROM works WHERE doi = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(blob) == 0) {
		return nil, citation.NotFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("querying metadata for %s: %w", key, err)
	}

	data, err := decodeMetadata(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", key, err)
	}
	return reference.ParseCrossRef(key, data)
}

// CitationCount returns how many works cite the work.
func (d *DB) CitationCount(ctx context.Context, id string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT citing_doi) FROM citations WHERE cited_doi = ?`,
		doi.Normalize(id)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting citations: %w", err)
	}
	return n, nil
}
