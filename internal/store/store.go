package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/tovis/internal/tovis"
)

// ErrNotFound is returned when an id matches no row.
var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an update would store text that another
	// document already holds.
	ErrDuplicate = errors.New("duplicate document")
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	-- documents keeps tovis texts xz-compressed, deduplicated by content checksum
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		block_count INTEGER NOT NULL,
		checksum TEXT NOT NULL UNIQUE,
		body BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- candidate_cache stores machine translations per service for reuse across documents
	CREATE TABLE IF NOT EXISTS candidate_cache (
		id TEXT PRIMARY KEY,
		service_name TEXT NOT NULL,
		source_text TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		usage_count INTEGER DEFAULT 1,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(service_name, source_text, source_lang, target_lang)
	);

	-- glossary stores user-defined terminology; a source term may have several renderings
	CREATE TABLE IF NOT EXISTS glossary (
		id TEXT PRIMARY KEY,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_term TEXT NOT NULL,
		target_term TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_lang, target_lang, source_term, target_term)
	);

	CREATE INDEX IF NOT EXISTS idx_cache_lookup ON candidate_cache(source_text, source_lang, target_lang);
	CREATE INDEX IF NOT EXISTS idx_glossary_lookup ON glossary(source_lang, target_lang);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DocumentInfo describes a stored document without its body.
type DocumentInfo struct {
	ID         string
	Name       string
	SourceLang string
	TargetLang string
	BlockCount int
	Checksum   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SaveDocument stores the tovis text of doc under name. A document whose
// text is already stored is not duplicated: its existing id is returned
// with created set to false.
func (s *Store) SaveDocument(ctx context.Context, name string, doc *tovis.Document) (id string, created bool, err error) {
	text, checksum := documentText(doc)

	err = s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE checksum = ?`, checksum).Scan(&id)
	switch {
	case err == nil:
		return id, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", false, err
	}

	body, err := compress(text)
	if err != nil {
		return "", false, err
	}

	id = uuid.NewString()
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, source_lang, target_lang, block_count, checksum, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, doc.Meta.SourceLang, doc.Meta.TargetLang, doc.Len(), checksum, body, now, now)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// UpdateDocument replaces the stored document id with doc and bumps its
// updated_at. changed is false when the stored text already matches.
func (s *Store) UpdateDocument(ctx context.Context, id string, doc *tovis.Document) (changed bool, err error) {
	text, checksum := documentText(doc)

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT checksum FROM documents WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, err
	}
	if current == checksum {
		return false, nil
	}

	var other string
	err = s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE checksum = ? AND id <> ?`, checksum, id).Scan(&other)
	switch {
	case err == nil:
		return false, fmt.Errorf("document %s: same text as document %s: %w", id, other, ErrDuplicate)
	case !errors.Is(err, sql.ErrNoRows):
		return false, err
	}

	body, err := compress(text)
	if err != nil {
		return false, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET source_lang = ?, target_lang = ?, block_count = ?, checksum = ?, body = ?, updated_at = ? WHERE id = ?`,
		doc.Meta.SourceLang, doc.Meta.TargetLang, doc.Len(), checksum, body, time.Now(), id)
	if err != nil {
		return false, err
	}
	return true, nil
}

func documentText(doc *tovis.Document) ([]byte, string) {
	text := []byte(doc.String())
	sum := blake3.Sum256(text)
	return text, hex.EncodeToString(sum[:])
}

// LoadDocument parses the stored document id into a new tovis document.
func (s *Store) LoadDocument(ctx context.Context, id string, opts ...tovis.Option) (*tovis.Document, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	text, err := decompress(body)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}

	doc := tovis.New(opts...)
	if _, err := doc.ParseText(string(text)); err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns all documents, most recently updated first.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, source_lang, target_lang, block_count, checksum, created_at, updated_at FROM documents ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.ID, &d.Name, &d.SourceLang, &d.TargetLang, &d.BlockCount, &d.Checksum, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document by id.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xz body: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}

// GetCachedCandidate returns a translation previously produced by service.
func (s *Store) GetCachedCandidate(ctx context.Context, service, sourceText, sourceLang, targetLang string) (string, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT translated_text FROM candidate_cache WHERE service_name = ? AND source_text = ? AND source_lang = ? AND target_lang = ?`,
		service, normalizeText(sourceText), sourceLang, targetLang).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE candidate_cache SET usage_count = usage_count + 1, last_used = ? WHERE service_name = ? AND source_text = ? AND source_lang = ? AND target_lang = ?`,
		time.Now(), service, normalizeText(sourceText), sourceLang, targetLang)

	return text, true, err
}

// SaveCandidate caches a translation produced by service.
func (s *Store) SaveCandidate(ctx context.Context, service, sourceText, sourceLang, targetLang, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO candidate_cache (id, service_name, source_text, source_lang, target_lang, translated_text, usage_count, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		uuid.NewString(), service, normalizeText(sourceText), sourceLang, targetLang, text, time.Now(), time.Now())
	return err
}

// ClearCandidateCache removes all cached translations.
func (s *Store) ClearCandidateCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candidate_cache`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// GlossaryEntry represents a row in the glossary table.
type GlossaryEntry struct {
	ID         string
	SourceLang string
	TargetLang string
	SourceTerm string
	TargetTerm string
	CreatedAt  time.Time
}

// AddGlossaryTerm records targetTerm as a rendering of sourceTerm. Adding the
// same pair twice is a no-op.
func (s *Store) AddGlossaryTerm(ctx context.Context, sourceLang, targetLang, sourceTerm, targetTerm string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO glossary (id, source_lang, target_lang, source_term, target_term, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sourceLang, targetLang, sourceTerm, targetTerm, time.Now())
	return err
}

// GetGlossaryTerms returns the glossary for a language pair as a
// source-term → renderings map, renderings in insertion order.
func (s *Store) GetGlossaryTerms(ctx context.Context, sourceLang, targetLang string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_term, target_term FROM glossary WHERE source_lang = ? AND target_lang = ? ORDER BY rowid`,
		sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := make(map[string][]string)
	for rows.Next() {
		var src, tgt string
		if err := rows.Scan(&src, &tgt); err != nil {
			return nil, err
		}
		terms[src] = append(terms[src], tgt)
	}
	return terms, rows.Err()
}

// ListGlossaryTerms returns all glossary entries, optionally filtered by language
// pair (pass empty strings to return everything).
func (s *Store) ListGlossaryTerms(ctx context.Context, sourceLang, targetLang string) ([]GlossaryEntry, error) {
	query := `SELECT id, source_lang, target_lang, source_term, target_term, created_at FROM glossary`
	var args []any

	switch {
	case sourceLang != "" && targetLang != "":
		query += ` WHERE source_lang = ? AND target_lang = ?`
		args = append(args, sourceLang, targetLang)
	case sourceLang != "":
		query += ` WHERE source_lang = ?`
		args = append(args, sourceLang)
	case targetLang != "":
		query += ` WHERE target_lang = ?`
		args = append(args, targetLang)
	}
	query += ` ORDER BY source_lang, target_lang, source_term, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GlossaryEntry
	for rows.Next() {
		var e GlossaryEntry
		if err := rows.Scan(&e.ID, &e.SourceLang, &e.TargetLang, &e.SourceTerm, &e.TargetTerm, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteGlossaryTerm removes a glossary entry by ID.
func (s *Store) DeleteGlossaryTerm(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM glossary WHERE id = ?`, id)
	return err
}
