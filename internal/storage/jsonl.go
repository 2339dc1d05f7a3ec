package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matsen/citenet/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines.
// CrossRef records with long reference lists can exceed a megabyte.
const MaxJSONLLineCapacity = 8 * 1024 * 1024

// ReadJSONL reads raw CrossRef work documents, one per line.
func ReadJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening works file: %w", err)
	}
	defer f.Close()

	var docs []json.RawMessage
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("parsing line %d: invalid JSON", lineNum)
		}
		docs = append(docs, json.RawMessage(bytes.Clone(line)))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading works file: %w", err)
	}

	return docs, nil
}

// LoadJSONL inserts the works in a JSONL file, and the citation links from
// their reference lists, into the store. Existing rows for the same DOI are
// replaced. Returns the number of works loaded.
func (d *DB) LoadJSONL(ctx context.Context, path string) (int, error) {
	if d.readOnly {
		return 0, fmt.Errorf("loading %s: store is read-only", path)
	}

	docs, err := ReadJSONL(path)
	if err != nil {
		return 0, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	worksStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO works (doi, metadata) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing works insert: %w", err)
	}
	defer worksStmt.Close()

	clearStmt, err := tx.PrepareContext(ctx, `DELETE FROM citations WHERE citing_doi = ?`)
	if err != nil {
		return 0, fmt.Errorf("preparing citations delete: %w", err)
	}
	defer clearStmt.Close()

	citeStmt, err := tx.PrepareContext(ctx, `INSERT INTO citations (citing_doi, cited_doi, citing_year) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing citations insert: %w", err)
	}
	defer citeStmt.Close()

	loaded := 0
	for i, doc := range docs {
		work, err := reference.ParseCrossRef("", doc)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i+1, err)
		}
		if work.DOI == "" {
			return 0, fmt.Errorf("record %d: missing DOI", i+1)
		}
		refs, err := reference.CrossRefReferences(doc)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i+1, err)
		}

		blob := []byte(doc)
		if d.compress {
			if blob, err = encodeMetadata(doc); err != nil {
				return 0, fmt.Errorf("record %d: %w", i+1, err)
			}
		}
		if _, err := worksStmt.ExecContext(ctx, work.DOI, blob); err != nil {
			return 0, fmt.Errorf("inserting work %s: %w", work.DOI, err)
		}

		if _, err := clearStmt.ExecContext(ctx, work.DOI); err != nil {
			return 0, fmt.Errorf("clearing citations for %s: %w", work.DOI, err)
		}
		for _, cited := range refs {
			if cited == work.DOI {
				continue
			}
			if _, err := citeStmt.ExecContext(ctx, work.DOI, cited, nullableYear(work.Year)); err != nil {
				return 0, fmt.Errorf("inserting citation %s -> %s: %w", work.DOI, cited, err)
			}
		}
		loaded++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load: %w", err)
	}
	return loaded, nil
}

func nullableYear(y *int) any {
	if y == nil {
		return nil
	}
	return *y
}
