package storage

import "github.com/julianstephens/songday/internal/models"

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Settings
	GetSettings() (Settings, error)
	SaveSettings(Settings) error

	// Daily ledgers, keyed by YYYY-MM-DD date
	GetLedger(date string) (models.DailyLedger, error)
	SaveLedger(models.DailyLedger) error

	// Additions log
	GetAdditions() ([]models.AdditionRecord, error)
	// RecordAddition appends a record unless one already exists for the same
	// (date, track_id). Returns true if the record was written.
	RecordAddition(models.AdditionRecord) (bool, error)

	// Playlist snapshot (nil when none has been taken yet)
	GetSnapshot() (*models.PlaylistSnapshot, error)
	SaveSnapshot(models.PlaylistSnapshot) error

	// Utils
	GetStatePath() string
}
