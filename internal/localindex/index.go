// Package localindex is a sqlite cache of curated and processed records
// keyed by colrev_id. Prep and pdf_get endpoints read it; only the index
// operation writes it.
package localindex

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"

	"github.com/matsen/litreview/internal/bibtex"
	"github.com/matsen/litreview/internal/dataset"
	"github.com/matsen/litreview/internal/record"
)

// ErrNotFound indicates the index does not exist yet.
var ErrNotFound = errors.New("local index not found")

// Index wraps a SQLite database connection.
type Index struct {
	db       *sql.DB
	readOnly bool
}

// Entry is one indexed record.
type Entry struct {
	ColrevID string
	RecordID string
	Repo     string
	Curated  bool
	Record   *record.Record
}

// selectEntryFields contains the standard field list for SELECT queries.
const selectEntryFields = `colrev_id, record_id, repo, curated, bib`

// Open opens or creates the index at path for writing.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Index{db: db}, nil
}

// OpenReadOnly opens an existing index without write access.
func OpenReadOnly(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return &Index{db: db, readOnly: true}, nil
}

// Close closes the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			colrev_id TEXT PRIMARY KEY,
			record_id TEXT NOT NULL,
			repo TEXT NOT NULL,
			doi TEXT,
			pdf_id TEXT,
			file TEXT,
			curated INTEGER NOT NULL DEFAULT 0,
			bib TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_doi ON records(doi) WHERE doi IS NOT NULL AND doi != '';
		CREATE INDEX IF NOT EXISTS idx_records_pdf ON records(pdf_id) WHERE pdf_id IS NOT NULL AND pdf_id != '';

		-- Standalone FTS table for title lookups
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			colrev_id UNINDEXED,
			title,
			author
		);

		CREATE TABLE IF NOT EXISTS meta (
			repo TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Fingerprint returns the blake2b-256 digest of the file at path, used to
// detect a records file that changed since the last index build.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NeedsRebuild reports whether repo was never indexed or was indexed from
// a records file with a different fingerprint.
func (x *Index) NeedsRebuild(repo, fingerprint string) (bool, error) {
	var stored string
	err := x.db.QueryRow(`SELECT fingerprint FROM meta WHERE repo = ?`, repo).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return stored != fingerprint, nil
}

// Build replaces every entry of repo with recs. Records without a
// colrev_id are skipped. Returns the number of indexed colrev_ids.
func (x *Index) Build(repo, fingerprint string, recs []*record.Record) (int, error) {
	if x.readOnly {
		return 0, errors.New("local index opened read-only")
	}
	tx, err := x.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records_fts WHERE colrev_id IN (SELECT colrev_id FROM records WHERE repo = ?)`, repo); err != nil {
		return 0, fmt.Errorf("clearing fts entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE repo = ?`, repo); err != nil {
		return 0, fmt.Errorf("clearing records: %w", err)
	}

	recStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO records (colrev_id, record_id, repo, doi, pdf_id, file, curated, bib)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing records insert: %w", err)
	}
	defer recStmt.Close()

	ftsStmt, err := tx.Prepare(`INSERT INTO records_fts (colrev_id, title, author) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	n := 0
	for _, r := range recs {
		if len(r.ColrevIDs) == 0 {
			continue
		}
		bib := bibtex.Format(dataset.ToEntry(r), bibtex.StyleCompact)
		file := r.Get(record.KeyFile)
		if file != "" && !filepath.IsAbs(file) {
			file = filepath.Join(repo, file)
		}
		for _, cid := range r.ColrevIDs {
			_, err := recStmt.Exec(cid, r.ID, repo,
				nullable(bibtex.NormalizeDOI(r.Get(record.KeyDOI))),
				nullable(r.Get(record.KeyPDFID)), nullable(file),
				r.IsCurated(), bib)
			if err != nil {
				return 0, fmt.Errorf("inserting %s: %w", r.ID, err)
			}
			if _, err := ftsStmt.Exec(cid, r.Get("title"), r.Get("author")); err != nil {
				return 0, fmt.Errorf("inserting fts for %s: %w", r.ID, err)
			}
			n++
		}
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (repo, fingerprint) VALUES (?, ?)`, repo, fingerprint); err != nil {
		return 0, fmt.Errorf("storing fingerprint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing index: %w", err)
	}
	return n, nil
}

// GetByColrevID returns the entry for a colrev_id, or nil.
func (x *Index) GetByColrevID(colrevID string) (*Entry, error) {
	row := x.db.QueryRow(`SELECT `+selectEntryFields+` FROM records WHERE colrev_id = ?`, colrevID)
	return scanEntry(row)
}

// GetByDOI returns the first entry with the DOI, or nil.
func (x *Index) GetByDOI(doi string) (*Entry, error) {
	doi = bibtex.NormalizeDOI(doi)
	if doi == "" {
		return nil, nil
	}
	row := x.db.QueryRow(`SELECT `+selectEntryFields+` FROM records WHERE doi = ? ORDER BY curated DESC LIMIT 1`, doi)
	return scanEntry(row)
}

// GetByPDFID returns the entry whose PDF has the given cpid2, or nil.
func (x *Index) GetByPDFID(pdfID string) (*Entry, error) {
	row := x.db.QueryRow(`SELECT `+selectEntryFields+` FROM records WHERE pdf_id = ? LIMIT 1`, pdfID)
	return scanEntry(row)
}

// File returns the absolute PDF path stored for a colrev_id.
func (x *Index) File(colrevID string) (string, error) {
	var file sql.NullString
	err := x.db.QueryRow(`SELECT file FROM records WHERE colrev_id = ?`, colrevID).Scan(&file)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return file.String, err
}

// SearchTitle performs a full-text search on titles.
func (x *Index) SearchTitle(query string, limit int) ([]Entry, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	rows, err := x.db.Query(`
		SELECT `+selectEntryFields+`
		FROM records
		WHERE colrev_id IN (SELECT colrev_id FROM records_fts WHERE records_fts MATCH ?)
		LIMIT ?`, "title:"+ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, rows.Err()
}

// Count returns the number of indexed colrev_ids.
func (x *Index) Count() (int, error) {
	var count int
	err := x.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&count)
	return count, err
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var bib string
	err := s.Scan(&e.ColrevID, &e.RecordID, &e.Repo, &e.Curated, &bib)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	entries, err := bibtex.Parse(strings.NewReader(bib))
	if err != nil || len(entries) != 1 {
		return nil, fmt.Errorf("decoding indexed record %s: %v", e.RecordID, err)
	}
	if e.Record, err = dataset.FromEntry(entries[0]); err != nil {
		return nil, err
	}
	return &e, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// prepareFTSQuery turns free text into an AND of quoted terms.
func prepareFTSQuery(query string) string {
	var terms []string
	for _, w := range strings.Fields(query) {
		w = strings.Trim(w, `"*+-:(){}[]^~.,;!?`)
		if w == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " ")
}
