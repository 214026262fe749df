// Package storage persists knowledge bundles in SQLite and serves them to the
// resolver through the knowledge provider interfaces.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/knowledge"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

const (
	kindNarrative = "narrative"
	kindNote      = "note"
	kindRule      = "rule"
)

// SQLiteStore implements the knowledge providers on top of SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ knowledge.StructuredFactsProvider = (*SQLiteStore)(nil)
	_ knowledge.HistoricalNotesProvider = (*SQLiteStore)(nil)
	_ knowledge.RulesCorpusProvider     = (*SQLiteStore)(nil)
	_ knowledge.LexiconSource           = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sections (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		section_id TEXT NOT NULL,
		tool TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT,
		body TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sections_tool_kind ON sections(tool, kind);

	CREATE TABLE IF NOT EXISTS names (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		section_id TEXT NOT NULL,
		tool TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		aliases TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_names_tool ON names(tool);
	`
	_, err := db.Exec(schema)
	return err
}

// Import replaces the stored knowledge with b in a single transaction.
func (s *SQLiteStore) Import(ctx context.Context, b *knowledge.Bundle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM names`); err != nil {
		return err
	}

	sectionStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sections (section_id, tool, kind, title, body) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer sectionStmt.Close()

	nameStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO names (section_id, tool, name, kind, aliases) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer nameStmt.Close()

	insertName := func(sectionID string, tool models.Tool, name, kind string, aliases []string) error {
		aliasJSON, err := json.Marshal(aliases)
		if err != nil {
			return fmt.Errorf("failed to marshal aliases: %w", err)
		}
		_, err = nameStmt.ExecContext(ctx, sectionID, string(tool), name, kind, string(aliasJSON))
		return err
	}

	mem := knowledge.NewMemoryStore(b)
	records, _ := mem.NamedRecords(ctx)
	for _, r := range records {
		if err := insertName(r.SectionID, models.ToolStructuredFacts, r.Name, r.Kind, nil); err != nil {
			return err
		}
	}
	narratives, _ := mem.Narratives(ctx)
	for _, n := range narratives {
		if _, err := sectionStmt.ExecContext(ctx, n.SectionID, string(models.ToolStructuredFacts), kindNarrative, n.Title, n.Body); err != nil {
			return err
		}
	}
	for _, note := range b.Notes {
		sectionID := models.NotesSectionID(note.ID)
		if _, err := sectionStmt.ExecContext(ctx, sectionID, string(models.ToolHistoricalNotes), kindNote, note.Title, note.Summary); err != nil {
			return err
		}
		for _, e := range note.Entities {
			kind := e.Kind
			if kind == "" {
				kind = knowledge.KindNPC
			}
			if err := insertName(sectionID, models.ToolHistoricalNotes, e.Name, kind, e.Aliases); err != nil {
				return err
			}
		}
	}
	for _, r := range b.Rules {
		sectionID := models.RulesSectionID(r.ID)
		if _, err := sectionStmt.ExecContext(ctx, sectionID, string(models.ToolRulesCorpus), kindRule, r.Title, r.Body); err != nil {
			return err
		}
		for _, n := range r.Names {
			if err := insertName(sectionID, models.ToolRulesCorpus, n, knowledge.KindRule, nil); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// NamedRecords implements knowledge.StructuredFactsProvider.
func (s *SQLiteStore) NamedRecords(ctx context.Context) ([]knowledge.NamedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, kind, section_id FROM names WHERE tool = ? ORDER BY seq`,
		string(models.ToolStructuredFacts),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", knowledge.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	records := make([]knowledge.NamedRecord, 0)
	for rows.Next() {
		var r knowledge.NamedRecord
		if err := rows.Scan(&r.Name, &r.Kind, &r.SectionID); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Narratives implements knowledge.StructuredFactsProvider.
func (s *SQLiteStore) Narratives(ctx context.Context) ([]knowledge.TextBlob, error) {
	sections, err := s.sections(ctx, models.ToolStructuredFacts, kindNarrative)
	if err != nil {
		return nil, err
	}
	blobs := make([]knowledge.TextBlob, len(sections))
	for i, sec := range sections {
		blobs[i] = knowledge.TextBlob(sec)
	}
	return blobs, nil
}

// NoteEntities implements knowledge.HistoricalNotesProvider.
func (s *SQLiteStore) NoteEntities(ctx context.Context) ([]knowledge.AliasedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, aliases, section_id FROM names WHERE tool = ? ORDER BY seq`,
		string(models.ToolHistoricalNotes),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", knowledge.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	records := make([]knowledge.AliasedRecord, 0)
	for rows.Next() {
		var r knowledge.AliasedRecord
		var aliasJSON sql.NullString
		if err := rows.Scan(&r.Name, &aliasJSON, &r.SectionID); err != nil {
			return nil, err
		}
		r.Aliases = decodeAliases(aliasJSON)
		records = append(records, r)
	}
	return records, rows.Err()
}

// RulesSections implements knowledge.RulesCorpusProvider.
func (s *SQLiteStore) RulesSections(ctx context.Context) ([]knowledge.Section, error) {
	return s.sections(ctx, models.ToolRulesCorpus, kindRule)
}

// GazetteerEntries implements knowledge.LexiconSource. Aliases map to their
// entity's name as canonical.
func (s *SQLiteStore) GazetteerEntries(ctx context.Context) ([]models.GazetteerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tool, name, kind, aliases FROM names ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", knowledge.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	entries := make([]models.GazetteerEntry, 0)
	for rows.Next() {
		var tool, name, kind string
		var aliasJSON sql.NullString
		if err := rows.Scan(&tool, &name, &kind, &aliasJSON); err != nil {
			return nil, err
		}
		source := sourceForTool(models.Tool(tool))
		entries = append(entries, models.GazetteerEntry{Name: name, Canonical: name, Type: kind, Source: source})
		for _, a := range decodeAliases(aliasJSON) {
			entries = append(entries, models.GazetteerEntry{Name: a, Canonical: name, Type: kind, Source: source})
		}
	}
	return entries, rows.Err()
}

// Counts returns the number of stored sections and names.
func (s *SQLiteStore) Counts(ctx context.Context) (sections, names int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections`).Scan(&sections); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM names`).Scan(&names); err != nil {
		return 0, 0, err
	}
	return sections, names, nil
}

// Providers returns s wired into every domain.
func (s *SQLiteStore) Providers() knowledge.Providers {
	return knowledge.Providers{Facts: s, Notes: s, Rules: s}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) sections(ctx context.Context, tool models.Tool, kind string) ([]knowledge.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT section_id, title, body FROM sections WHERE tool = ? AND kind = ? ORDER BY seq`,
		string(tool), kind,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", knowledge.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	out := make([]knowledge.Section, 0)
	for rows.Next() {
		var sec knowledge.Section
		var title, body sql.NullString
		if err := rows.Scan(&sec.SectionID, &title, &body); err != nil {
			return nil, err
		}
		sec.Title = title.String
		sec.Body = body.String
		out = append(out, sec)
	}
	return out, rows.Err()
}

func decodeAliases(raw sql.NullString) []string {
	aliases := make([]string, 0)
	if raw.Valid && raw.String != "" {
		_ = json.Unmarshal([]byte(raw.String), &aliases)
	}
	if aliases == nil {
		aliases = make([]string, 0)
	}
	return aliases
}

func sourceForTool(t models.Tool) string {
	switch t {
	case models.ToolHistoricalNotes:
		return "notes"
	case models.ToolRulesCorpus:
		return "rules"
	default:
		return "character"
	}
}
