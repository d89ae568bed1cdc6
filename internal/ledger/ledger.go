package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/songday/internal/logger"
	"github.com/julianstephens/songday/internal/models"
	"github.com/julianstephens/songday/internal/scheduler"
	"github.com/julianstephens/songday/internal/spotify"
	"github.com/julianstephens/songday/internal/storage"
)

// dedupWindow is how close two plays of the same track from different
// sources must be to count as the same continuous play.
const dedupWindow = 300 * time.Second

// Service maintains the per-day listening ledgers. Ledgers are keyed by the
// effective date, so a play lands on the logical day it belongs to: both
// sources attribute plays through the same day-boundary shift the caller
// used to pick the ledger. Polling is designed to run every 1-5 minutes and
// to tolerate skipped or failed calls: a transient catalog failure is
// reported as zero new plays, never as an error.
type Service struct {
	store       storage.Provider
	loc         *time.Location
	dayBoundary int
	now         func() time.Time
}

func NewService(store storage.Provider, loc *time.Location, dayBoundaryHour int) *Service {
	return &Service{
		store:       store,
		loc:         loc,
		dayBoundary: dayBoundaryHour,
		now:         time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

type PollResult struct {
	Date            string
	NewFromHistory  int
	NewFromPlayback int
	TotalPlays      int
	UniqueTracks    int
}

// Poll merges both listening sources into the ledger for the given date and
// persists it. Per-source catalog failures are logged and skipped.
func (s *Service) Poll(ctx context.Context, catalog spotify.Catalog, date string) (PollResult, error) {
	led, err := s.store.GetLedger(date)
	if err != nil {
		return PollResult{}, fmt.Errorf("failed to load ledger %s: %w", date, err)
	}

	result := PollResult{Date: date}

	events, err := catalog.RecentlyPlayed(ctx)
	if err != nil {
		logger.Warn("could not fetch recently played", "error", err)
	} else {
		result.NewFromHistory = s.RecordFromHistory(&led, events)
	}

	playback, err := catalog.CurrentPlayback(ctx)
	if err != nil {
		logger.Warn("could not fetch current playback", "error", err)
	} else {
		result.NewFromPlayback = s.RecordFromCurrentPlayback(&led, playback)
	}

	led.RecomputeCounts()
	now := s.now()
	led.LastPoll = &now

	if err := s.store.SaveLedger(led); err != nil {
		return PollResult{}, fmt.Errorf("failed to save ledger %s: %w", date, err)
	}

	result.TotalPlays = len(led.Plays)
	result.UniqueTracks = len(led.PlayCounts)
	return result, nil
}

// RecordFromHistory appends externally reported plays whose effective day
// matches the ledger's date. Plays without a stable track identity and exact
// (track_id, played_at) duplicates are skipped.
func (s *Service) RecordFromHistory(led *models.DailyLedger, events []models.PlayEvent) int {
	seen := make(map[string]bool, len(led.Plays))
	for _, p := range led.Plays {
		seen[playKey(p.TrackID, p.PlayedAt)] = true
	}

	added := 0
	for _, ev := range events {
		if ev.TrackID == "" {
			continue // local or unavailable media
		}
		if s.effectiveDay(ev.PlayedAt) != led.Date {
			continue
		}
		key := playKey(ev.TrackID, ev.PlayedAt)
		if seen[key] {
			continue
		}

		ev.Source = models.SourceRecentlyPlayed
		led.Plays = append(led.Plays, ev)
		seen[key] = true
		added++
	}
	return added
}

// RecordFromCurrentPlayback records the currently playing track unless it is
// a continuation of the last poll or already captured by history within the
// de-duplication window.
func (s *Service) RecordFromCurrentPlayback(led *models.DailyLedger, playback *models.NowPlaying) int {
	if playback == nil || !playback.IsPlaying {
		// Clear the pointer so the track is recorded again if it resumes.
		led.LastCurrentTrackID = ""
		return 0
	}

	// The observation happens now; it belongs to the ledger only when the
	// current effective day matches, same rule as the history source.
	if s.effectiveDay(s.now()) != led.Date {
		return 0
	}

	if playback.MediaType == models.MediaEpisode {
		return 0
	}
	if playback.TrackID == "" {
		return 0 // local file
	}

	if playback.TrackID == led.LastCurrentTrackID {
		return 0 // still playing
	}

	if s.hasRecentPlay(led, playback.TrackID) {
		// Already captured via recently-played; just move the pointer.
		led.LastCurrentTrackID = playback.TrackID
		return 0
	}

	led.Plays = append(led.Plays, models.PlayEvent{
		TrackID:       playback.TrackID,
		TrackName:     playback.TrackName,
		ArtistDisplay: playback.ArtistDisplay,
		PlayedAt:      s.now().UTC().Truncate(time.Second),
		DurationMs:    playback.DurationMs,
		MediaType:     models.MediaTrack,
		Source:        models.SourceCurrentPlayback,
	})
	led.LastCurrentTrackID = playback.TrackID
	return 1
}

// hasRecentPlay reports whether the track was recorded within the
// de-duplication window. Plays are roughly chronological, so the scan walks
// backwards and stops at the first play older than the window.
func (s *Service) hasRecentPlay(led *models.DailyLedger, trackID string) bool {
	now := s.now().UTC()
	for i := len(led.Plays) - 1; i >= 0; i-- {
		play := led.Plays[i]
		if now.Sub(play.PlayedAt) > dedupWindow {
			break
		}
		if play.TrackID == trackID {
			return true
		}
	}
	return false
}

// effectiveDay maps an instant to its logical day through the day-boundary
// shift, in the configured timezone.
func (s *Service) effectiveDay(at time.Time) string {
	return scheduler.EffectiveDate(at.In(s.loc), s.dayBoundary).Format("2006-01-02")
}

func playKey(trackID string, playedAt time.Time) string {
	return trackID + "|" + playedAt.UTC().Format(time.RFC3339)
}
