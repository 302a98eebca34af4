package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DustinWehr/LinWhisper/log"
)

// ErrNotFound is returned for lookups of unknown item ids.
var ErrNotFound = errors.New("history item not found")

// DefaultListLimit bounds List results when the caller passes limit <= 0.
const DefaultListLimit = 100

// Store persists history items in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history_items (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			mode_key TEXT NOT NULL,
			audio_path TEXT,
			transcript_raw TEXT NOT NULL,
			output_final TEXT NOT NULL,
			stt_provider TEXT NOT NULL,
			stt_model TEXT NOT NULL,
			llm_provider TEXT,
			llm_model TEXT,
			duration_ms INTEGER NOT NULL,
			error TEXT
		)
	`); err != nil {
		return fmt.Errorf("create history_items table: %w", err)
	}
	if _, err := s.db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history_items(created_at DESC)`,
	); err != nil {
		return fmt.Errorf("create created_at index: %w", err)
	}
	if _, err := s.db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_history_mode_key ON history_items(mode_key)`,
	); err != nil {
		return fmt.Errorf("create mode_key index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create appends a new item. The item's ID must be unique.
func (s *Store) Create(item Item) error {
	_, err := s.db.Exec(`
		INSERT INTO history_items (
			id, created_at, mode_key, audio_path, transcript_raw, output_final,
			stt_provider, stt_model, llm_provider, llm_model, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
		item.ModeKey,
		nullable(item.AudioPath),
		item.TranscriptRaw,
		item.OutputFinal,
		item.STTProvider,
		item.STTModel,
		nullable(item.LLMProvider),
		nullable(item.LLMModel),
		item.DurationMS,
		nullable(item.Error),
	)
	if err != nil {
		return fmt.Errorf("insert history item: %w", err)
	}
	return nil
}

const selectColumns = `id, created_at, mode_key, audio_path, transcript_raw, output_final,
	stt_provider, stt_model, llm_provider, llm_model, duration_ms, error`

// List returns items newest-first. A non-empty query filters by
// free-text match over transcript and output; limit bounds the result
// count (DefaultListLimit when <= 0).
func (s *Store) List(query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows *sql.Rows
	var err error
	if query == "" {
		rows, err = s.db.Query(
			`SELECT `+selectColumns+` FROM history_items ORDER BY created_at DESC LIMIT ?`,
			limit,
		)
	} else {
		pattern := "%" + query + "%"
		rows, err = s.db.Query(
			`SELECT `+selectColumns+` FROM history_items
			 WHERE transcript_raw LIKE ? OR output_final LIKE ?
			 ORDER BY created_at DESC LIMIT ?`,
			pattern, pattern, limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get fetches one item by id.
func (s *Store) Get(id string) (Item, error) {
	row := s.db.QueryRow(
		`SELECT `+selectColumns+` FROM history_items WHERE id = ?`, id,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, err
}

// Delete removes an item permanently, along with its retained audio
// file if one exists.
func (s *Store) Delete(id string) error {
	item, err := s.Get(id)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM history_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete history item: %w", err)
	}
	if item.AudioPath != "" {
		if err := os.Remove(item.AudioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("could not remove retained audio %s: %v", item.AudioPath, err)
		}
	}
	return nil
}

// Count returns the total number of stored items.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM history_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var createdAt string
	var audioPath, llmProvider, llmModel, errMsg sql.NullString

	err := row.Scan(
		&item.ID, &createdAt, &item.ModeKey, &audioPath,
		&item.TranscriptRaw, &item.OutputFinal,
		&item.STTProvider, &item.STTModel,
		&llmProvider, &llmModel, &item.DurationMS, &errMsg,
	)
	if err != nil {
		return Item{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Item{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	item.CreatedAt = ts
	item.AudioPath = audioPath.String
	item.LLMProvider = llmProvider.String
	item.LLMModel = llmModel.String
	item.Error = errMsg.String
	return item, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
