package storage

import "fmt"

// Selection modes understood by the selector.
const (
	ModeMostPlayed             = "most_played"
	ModeWeightedRandom         = "weighted_random"
	ModeStronglyWeightedRandom = "strongly_weighted_random"
)

// Settings is the persisted configuration document. Target-relevant fields
// (YearStart, DayBoundaryHour, Timezone) must never be silently defaulted
// when malformed; duration/cooldown fall back to defaults.
type Settings struct {
	PlaylistName    string `json:"playlist_name"`
	PlaylistID      string `json:"playlist_id,omitempty"` // cached after first lookup
	Timezone        string `json:"timezone"`
	CooldownEntries int    `json:"cooldown_entries"` // 0 disables cooldown
	MinDurationMs   int    `json:"min_duration_ms"`
	SelectionMode   string `json:"selection_mode"`
	DayBoundaryHour int    `json:"day_boundary_hour"`
	YearStart       string `json:"year_start,omitempty"` // YYYY-MM-DD override
	LikedToday      bool   `json:"liked_today"`          // enable liked-today tier

	// Email settings (notifications disabled unless configured)
	EmailEnabled bool   `json:"email_enabled"`
	EmailTo      string `json:"email_to,omitempty"`
	EmailFrom    string `json:"email_from,omitempty"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user,omitempty"`
	SMTPPass     string `json:"smtp_pass,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		PlaylistName:    "Songs of the Day",
		Timezone:        "America/New_York",
		CooldownEntries: 90,
		MinDurationMs:   50_000, // 50 seconds
		SelectionMode:   ModeWeightedRandom,
		DayBoundaryHour: 4,
		SMTPHost:        "smtp.gmail.com",
		SMTPPort:        587,
	}
}

// Validate checks mode and boundary fields that later stages depend on.
func (s Settings) Validate() error {
	switch s.SelectionMode {
	case ModeMostPlayed, ModeWeightedRandom, ModeStronglyWeightedRandom:
	default:
		return fmt.Errorf("unknown selection_mode: %q", s.SelectionMode)
	}
	if s.DayBoundaryHour < 0 || s.DayBoundaryHour > 23 {
		return fmt.Errorf("day_boundary_hour out of range: %d", s.DayBoundaryHour)
	}
	if s.CooldownEntries < 0 {
		return fmt.Errorf("cooldown_entries must not be negative: %d", s.CooldownEntries)
	}
	return nil
}
