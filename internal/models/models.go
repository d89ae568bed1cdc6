package models

import "time"

type PlaySource string

const (
	SourceRecentlyPlayed  PlaySource = "recently_played"
	SourceCurrentPlayback PlaySource = "current_playback"
)

type MediaType string

const (
	MediaTrack   MediaType = "track"
	MediaEpisode MediaType = "episode"
)

// PlayEvent is one listening occurrence. Events with an empty TrackID
// (local files, unavailable media) are dropped before they reach a ledger.
type PlayEvent struct {
	TrackID       string     `json:"track_id"`
	TrackName     string     `json:"track_name"`
	ArtistDisplay string     `json:"artist"`
	PlayedAt      time.Time  `json:"played_at"` // UTC
	DurationMs    int        `json:"duration_ms"`
	MediaType     MediaType  `json:"type"`
	Source        PlaySource `json:"source"`
}

// NowPlaying is a point-in-time view of the playback state.
type NowPlaying struct {
	IsPlaying     bool
	TrackID       string
	TrackName     string
	ArtistDisplay string
	DurationMs    int
	MediaType     MediaType
}

// DailyLedger records everything played on one calendar date (in the
// configured timezone). Plays are append-only; PlayCounts is derived and
// recomputed after every mutation, never edited independently.
type DailyLedger struct {
	Date               string         `json:"date"` // YYYY-MM-DD
	LastPoll           *time.Time     `json:"last_poll,omitempty"`
	LastCurrentTrackID string         `json:"last_current_track_id,omitempty"`
	Plays              []PlayEvent    `json:"plays"`
	PlayCounts         map[string]int `json:"play_counts"`
}

func NewDailyLedger(date string) DailyLedger {
	return DailyLedger{
		Date:       date,
		Plays:      []PlayEvent{},
		PlayCounts: map[string]int{},
	}
}

// RecomputeCounts rebuilds the track_id -> play count mapping from the play
// sequence.
func (l *DailyLedger) RecomputeCounts() {
	counts := make(map[string]int, len(l.Plays))
	for _, p := range l.Plays {
		counts[p.TrackID]++
	}
	l.PlayCounts = counts
}

// PlaylistTrack is one entry of the managed playlist. Position is the stable
// insertion order reported by the catalog.
type PlaylistTrack struct {
	TrackID       string    `json:"track_id"`
	TrackName     string    `json:"track_name"`
	ArtistDisplay string    `json:"artist"`
	AddedAt       time.Time `json:"added_at"`
	DurationMs    int       `json:"duration_ms"`
	Position      int       `json:"position"`
}

// PlaylistSnapshot is a point-in-time view of the managed playlist. It is
// always refetched whole, never patched, so out-of-band edits are picked up.
type PlaylistSnapshot struct {
	PlaylistID   string          `json:"playlist_id"`
	PlaylistName string          `json:"playlist_name"`
	LastChecked  time.Time       `json:"last_checked"`
	TrackCount   int             `json:"track_count"`
	Tracks       []PlaylistTrack `json:"tracks"`
}

type AdditionSource string

const (
	AdditionUser AdditionSource = "user"
	AdditionAuto AdditionSource = "auto"
)

// AdditionRecord is one row per track added to the playlist on a given date.
// Unique per (date, track_id); re-recording the same pair is a no-op.
type AdditionRecord struct {
	ID            string         `json:"id"`
	Date          string         `json:"date"` // YYYY-MM-DD
	TrackID       string         `json:"track_id"`
	TrackName     string         `json:"track_name"`
	ArtistDisplay string         `json:"artist"`
	Source        AdditionSource `json:"source"`
	RecordedAt    time.Time      `json:"recorded_at"`
}
