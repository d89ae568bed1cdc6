package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/songday/internal/models"
)

type Store struct {
	Version   int                           `json:"version"`
	Settings  Settings                      `json:"settings"`
	Ledgers   map[string]models.DailyLedger `json:"ledgers"`
	Additions []models.AdditionRecord       `json:"additions"`
	Snapshot  *models.PlaylistSnapshot      `json:"snapshot,omitempty"`
}

type JSONStore struct {
	path  string
	store *Store
}

func NewJSONStore(statePath string) *JSONStore {
	return &JSONStore{
		path: statePath,
	}
}

func (s *JSONStore) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("storage already initialized at %s", s.path)
	}

	s.store = &Store{
		Version:   1,
		Settings:  DefaultSettings(),
		Ledgers:   make(map[string]models.DailyLedger),
		Additions: []models.AdditionRecord{},
	}

	return s.save()
}

func (s *JSONStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run 'songday init' first")
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	s.store = &Store{}
	if err := json.Unmarshal(data, s.store); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}

	if s.store.Ledgers == nil {
		s.store.Ledgers = make(map[string]models.DailyLedger)
	}
	if s.store.Additions == nil {
		s.store.Additions = []models.AdditionRecord{}
	}

	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}

	return nil
}

func (s *JSONStore) GetSettings() (Settings, error) {
	if s.store == nil {
		return Settings{}, fmt.Errorf("storage not loaded")
	}
	return s.store.Settings, nil
}

func (s *JSONStore) SaveSettings(settings Settings) error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}
	s.store.Settings = settings
	return s.save()
}

func (s *JSONStore) GetLedger(date string) (models.DailyLedger, error) {
	if s.store == nil {
		return models.DailyLedger{}, fmt.Errorf("storage not loaded")
	}

	ledger, ok := s.store.Ledgers[date]
	if !ok {
		return models.NewDailyLedger(date), nil
	}
	if ledger.PlayCounts == nil {
		ledger.RecomputeCounts()
	}
	return ledger, nil
}

func (s *JSONStore) SaveLedger(ledger models.DailyLedger) error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}
	s.store.Ledgers[ledger.Date] = ledger
	return s.save()
}

func (s *JSONStore) GetAdditions() ([]models.AdditionRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	additions := make([]models.AdditionRecord, len(s.store.Additions))
	copy(additions, s.store.Additions)
	return additions, nil
}

func (s *JSONStore) RecordAddition(record models.AdditionRecord) (bool, error) {
	if s.store == nil {
		return false, fmt.Errorf("storage not loaded")
	}

	for _, existing := range s.store.Additions {
		if existing.Date == record.Date && existing.TrackID == record.TrackID {
			return false, nil
		}
	}

	s.store.Additions = append(s.store.Additions, record)
	return true, s.save()
}

func (s *JSONStore) GetSnapshot() (*models.PlaylistSnapshot, error) {
	if s.store == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	return s.store.Snapshot, nil
}

func (s *JSONStore) SaveSnapshot(snapshot models.PlaylistSnapshot) error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}
	s.store.Snapshot = &snapshot
	return s.save()
}

func (s *JSONStore) GetStatePath() string {
	return s.path
}
