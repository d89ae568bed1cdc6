package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/songday/internal/logger"
	"github.com/julianstephens/songday/internal/models"
	"github.com/julianstephens/songday/internal/scheduler"
	"github.com/julianstephens/songday/internal/storage"
)

const (
	// librarySampleSize bounds the liked-library fallback tier.
	librarySampleSize = 200
	// likedScanLimit bounds the liked-today scan; the source is sorted
	// newest first, so one page comfortably covers a day of likes.
	likedScanLimit = 50
)

// Tier names, in cascade order.
const (
	TierLikedToday = "liked today"
	TierToday      = "today"
	TierTwoDays    = "last 2 days"
	TierThreeDays  = "last 3 days"
	TierWeek       = "last 7 days"
	TierLibrary    = "liked library"
)

type ledgerSource interface {
	GetLedger(date string) (models.DailyLedger, error)
}

type likedSource interface {
	LikedTracks(ctx context.Context, limit int) ([]models.PlayEvent, error)
}

// Resolver builds eligible candidate pools across an ordered cascade of
// time windows, with a library-wide fallback when no listening signal
// exists at all.
type Resolver struct {
	ledgers       ledgerSource
	liked         likedSource
	loc           *time.Location
	minDurationMs int
	likedToday    bool
}

func NewResolver(ledgers ledgerSource, liked likedSource, loc *time.Location, settings storage.Settings) *Resolver {
	return &Resolver{
		ledgers:       ledgers,
		liked:         liked,
		loc:           loc,
		minDurationMs: settings.MinDurationMs,
		likedToday:    settings.LikedToday,
	}
}

// Exclusion names a considered track that was filtered out and why, so a
// run report can show what the cascade rejected.
type Exclusion struct {
	TrackID   string `json:"track_id"`
	TrackName string `json:"track_name"`
	Reason    string `json:"reason"`
}

// TierReport describes one consulted tier for observability.
type TierReport struct {
	Name       string      `json:"name"`
	Considered int         `json:"considered"`
	Eligible   int         `json:"eligible"`
	Excluded   []Exclusion `json:"excluded,omitempty"`
}

// Resolution is the outcome of one cascade walk. Pool holds the eligible
// candidates of the first non-empty tier; the pre-filter pools of the
// "today" and "liked today" tiers are always populated for reporting, even
// when selection happens elsewhere.
type Resolution struct {
	Tiers                []TierReport
	TodayConsidered      []models.PlayEvent
	LikedTodayConsidered []models.PlayEvent

	PoolTier   string
	Pool       []models.PlayEvent
	PlayCounts map[string]int
	Unweighted bool
}

// CooldownIDs returns the track ids of the last n playlist positions,
// extended with any extra ids (tracks already picked earlier in the same
// run). n larger than the playlist clamps to the whole playlist; n == 0
// disables the positional cooldown entirely.
func CooldownIDs(snapshot *models.PlaylistSnapshot, n int, extra []string) map[string]struct{} {
	ids := make(map[string]struct{})
	if snapshot != nil && n > 0 {
		tracks := snapshot.Tracks
		if len(tracks) > n {
			tracks = tracks[len(tracks)-n:]
		}
		for _, t := range tracks {
			ids[t.TrackID] = struct{}{}
		}
	}
	for _, id := range extra {
		ids[id] = struct{}{}
	}
	return ids
}

// Resolve walks the cascade for the effective date and returns the first
// non-empty eligible pool plus the observability pools. A nil Pool means no
// candidate exists anywhere.
func (r *Resolver) Resolve(ctx context.Context, effective time.Time, cooldown map[string]struct{}) (*Resolution, error) {
	res := &Resolution{PlayCounts: map[string]int{}}

	// Tier 0: liked today. Reported separately; an empty pool here does not
	// consume the cascade. Note a track liked today that already sits in
	// the cooldown window stays excluded; that is deliberate.
	if r.likedToday {
		if err := r.resolveLikedToday(ctx, effective, cooldown, res); err != nil {
			logger.Warn("liked-today tier unavailable", "error", err)
		}
	}

	windows := []struct {
		name string
		days int
	}{
		{TierToday, 1},
		{TierTwoDays, 2},
		{TierThreeDays, 3},
		{TierWeek, 7},
	}

	for _, window := range windows {
		considered, counts, err := r.collectWindow(effective, window.days)
		if err != nil {
			return nil, err
		}

		eligible, excluded := r.filter(considered, cooldown)
		res.Tiers = append(res.Tiers, TierReport{
			Name:       window.name,
			Considered: len(considered),
			Eligible:   len(eligible),
			Excluded:   excluded,
		})

		if window.name == TierToday {
			res.TodayConsidered = considered
		}

		if res.Pool == nil && len(eligible) > 0 {
			res.PoolTier = window.name
			res.Pool = eligible
			res.PlayCounts = counts
		}

		// The "today" tier is always evaluated so its pre-filter pool gets
		// reported; after that the cascade short-circuits on the first pool.
		if res.Pool != nil {
			return res, nil
		}
	}

	// Terminal fallback: a bounded sample of the library, unweighted.
	sample, err := r.liked.LikedTracks(ctx, librarySampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to sample library: %w", err)
	}
	eligible, excluded := r.filter(sample, cooldown)
	res.Tiers = append(res.Tiers, TierReport{
		Name:       TierLibrary,
		Considered: len(sample),
		Eligible:   len(eligible),
		Excluded:   excluded,
	})
	if len(eligible) > 0 {
		res.PoolTier = TierLibrary
		res.Pool = eligible
		res.PlayCounts = map[string]int{}
		res.Unweighted = true
	}

	return res, nil
}

func (r *Resolver) resolveLikedToday(ctx context.Context, effective time.Time, cooldown map[string]struct{}, res *Resolution) error {
	liked, err := r.liked.LikedTracks(ctx, likedScanLimit)
	if err != nil {
		return err
	}

	dayStart := effective
	dayEnd := effective.AddDate(0, 0, 1)

	var considered []models.PlayEvent
	for _, track := range liked {
		likedAt := track.PlayedAt.In(r.loc)
		if likedAt.Before(dayStart) {
			break // source is sorted newest first
		}
		if likedAt.Before(dayEnd) {
			considered = append(considered, track)
		}
	}

	eligible, excluded := r.filter(considered, cooldown)
	res.LikedTodayConsidered = considered
	res.Tiers = append(res.Tiers, TierReport{
		Name:       TierLikedToday,
		Considered: len(considered),
		Eligible:   len(eligible),
		Excluded:   excluded,
	})

	if len(eligible) > 0 {
		// Weight by today's play counts; unheard likes fall back to the
		// selection algorithm's minimum weight of 1.
		counts := map[string]int{}
		if led, err := r.ledgers.GetLedger(effective.Format("2006-01-02")); err == nil {
			for _, cand := range eligible {
				if c := led.PlayCounts[cand.TrackID]; c > 0 {
					counts[cand.TrackID] = c
				}
			}
		}
		res.PoolTier = TierLikedToday
		res.Pool = eligible
		res.PlayCounts = counts
	}
	return nil
}

// collectWindow accumulates unique tracks and play counts across the n days
// ending at the effective date. Play info for a track comes from the most
// recent day it was heard.
func (r *Resolver) collectWindow(effective time.Time, days int) ([]models.PlayEvent, map[string]int, error) {
	seen := make(map[string]models.PlayEvent)
	counts := make(map[string]int)
	var order []string

	for _, date := range scheduler.WindowDates(effective, days) {
		led, err := r.ledgers.GetLedger(date)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load ledger %s: %w", date, err)
		}
		for _, play := range led.Plays {
			counts[play.TrackID]++
			if _, ok := seen[play.TrackID]; !ok {
				seen[play.TrackID] = play
				order = append(order, play.TrackID)
			}
		}
	}

	considered := make([]models.PlayEvent, 0, len(order))
	for _, id := range order {
		considered = append(considered, seen[id])
	}
	return considered, counts, nil
}

func (r *Resolver) filter(candidates []models.PlayEvent, cooldown map[string]struct{}) ([]models.PlayEvent, []Exclusion) {
	var eligible []models.PlayEvent
	var excluded []Exclusion
	for _, cand := range candidates {
		if ok, reason := r.isEligible(cand, cooldown); ok {
			eligible = append(eligible, cand)
		} else {
			logger.Debug("candidate excluded", "track", cand.TrackName, "reason", reason)
			excluded = append(excluded, Exclusion{
				TrackID:   cand.TrackID,
				TrackName: cand.TrackName,
				Reason:    reason,
			})
		}
	}
	return eligible, excluded
}

func (r *Resolver) isEligible(track models.PlayEvent, cooldown map[string]struct{}) (bool, string) {
	if _, held := cooldown[track.TrackID]; held {
		return false, "in cooldown"
	}
	if track.MediaType == models.MediaEpisode {
		return false, "podcast episode"
	}
	if track.DurationMs < r.minDurationMs {
		return false, fmt.Sprintf("too short (%ds)", track.DurationMs/1000)
	}
	return true, ""
}
