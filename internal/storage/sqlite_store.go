package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/songday/internal/models"
)

// SQLiteStore keeps the same whole-document get/set semantics as the JSON
// store: every row holds one JSON document addressed by its key.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path: path,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ledgers (
	date TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS additions (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	track_id TEXT NOT NULL,
	doc TEXT NOT NULL,
	UNIQUE(date, track_id)
);
CREATE TABLE IF NOT EXISTS snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	doc TEXT NOT NULL
);
`

func (s *SQLiteStore) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Seed default settings if not present
	if _, err := s.GetSettings(); err != nil {
		if err := s.SaveSettings(DefaultSettings()); err != nil {
			return fmt.Errorf("failed to save default settings: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'songday init' first")
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) GetSettings() (Settings, error) {
	if s.db == nil {
		return Settings{}, fmt.Errorf("storage not loaded")
	}

	var doc string
	err := s.db.QueryRow(`SELECT doc FROM settings WHERE id = 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return Settings{}, fmt.Errorf("settings not found")
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal([]byte(doc), &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

func (s *SQLiteStore) SaveSettings(settings Settings) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}

	doc, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO settings (id, doc) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetLedger(date string) (models.DailyLedger, error) {
	if s.db == nil {
		return models.DailyLedger{}, fmt.Errorf("storage not loaded")
	}

	var doc string
	err := s.db.QueryRow(`SELECT doc FROM ledgers WHERE date = ?`, date).Scan(&doc)
	if err == sql.ErrNoRows {
		return models.NewDailyLedger(date), nil
	}
	if err != nil {
		return models.DailyLedger{}, fmt.Errorf("failed to read ledger %s: %w", date, err)
	}

	var ledger models.DailyLedger
	if err := json.Unmarshal([]byte(doc), &ledger); err != nil {
		return models.DailyLedger{}, fmt.Errorf("failed to parse ledger %s: %w", date, err)
	}
	if ledger.PlayCounts == nil {
		ledger.RecomputeCounts()
	}
	return ledger, nil
}

func (s *SQLiteStore) SaveLedger(ledger models.DailyLedger) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}

	doc, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("failed to serialize ledger %s: %w", ledger.Date, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO ledgers (date, doc) VALUES (?, ?) ON CONFLICT(date) DO UPDATE SET doc = excluded.doc`,
		ledger.Date, string(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to write ledger %s: %w", ledger.Date, err)
	}
	return nil
}

func (s *SQLiteStore) GetAdditions() ([]models.AdditionRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}

	rows, err := s.db.Query(`SELECT doc FROM additions ORDER BY date, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to read additions: %w", err)
	}
	defer rows.Close()

	var additions []models.AdditionRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan addition: %w", err)
		}
		var record models.AdditionRecord
		if err := json.Unmarshal([]byte(doc), &record); err != nil {
			return nil, fmt.Errorf("failed to parse addition: %w", err)
		}
		additions = append(additions, record)
	}
	return additions, rows.Err()
}

func (s *SQLiteStore) RecordAddition(record models.AdditionRecord) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("storage not loaded")
	}

	doc, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to serialize addition: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO additions (id, date, track_id, doc) VALUES (?, ?, ?, ?)
		 ON CONFLICT(date, track_id) DO NOTHING`,
		record.ID, record.Date, record.TrackID, string(doc),
	)
	if err != nil {
		return false, fmt.Errorf("failed to write addition: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check addition write: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetSnapshot() (*models.PlaylistSnapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}

	var doc string
	err := s.db.QueryRow(`SELECT doc FROM snapshot WHERE id = 1`).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot models.PlaylistSnapshot
	if err := json.Unmarshal([]byte(doc), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *SQLiteStore) SaveSnapshot(snapshot models.PlaylistSnapshot) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}

	doc, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO snapshot (id, doc) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetStatePath() string {
	return s.path
}
