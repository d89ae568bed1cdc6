package selector

import (
	"context"
	"testing"
	"time"

	"github.com/julianstephens/songday/internal/models"
	"github.com/julianstephens/songday/internal/storage"
)

type fakeLedgers struct {
	ledgers map[string]models.DailyLedger
}

func (f *fakeLedgers) GetLedger(date string) (models.DailyLedger, error) {
	if led, ok := f.ledgers[date]; ok {
		return led, nil
	}
	return models.NewDailyLedger(date), nil
}

type fakeLiked struct {
	tracks []models.PlayEvent
	calls  int
}

func (f *fakeLiked) LikedTracks(_ context.Context, limit int) ([]models.PlayEvent, error) {
	f.calls++
	if len(f.tracks) > limit {
		return f.tracks[:limit], nil
	}
	return f.tracks, nil
}

func ledgerWith(date string, plays ...models.PlayEvent) models.DailyLedger {
	led := models.NewDailyLedger(date)
	led.Plays = plays
	led.RecomputeCounts()
	return led
}

func play(id string, playedAt time.Time, durationMs int) models.PlayEvent {
	return models.PlayEvent{
		TrackID:    id,
		TrackName:  "Track " + id,
		PlayedAt:   playedAt,
		DurationMs: durationMs,
		MediaType:  models.MediaTrack,
		Source:     models.SourceRecentlyPlayed,
	}
}

func testSettings() storage.Settings {
	s := storage.DefaultSettings()
	s.MinDurationMs = 50_000
	return s
}

func TestResolve_TodayShortCircuitsCascade(t *testing.T) {
	eff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ledgers := &fakeLedgers{ledgers: map[string]models.DailyLedger{
		"2026-03-10": ledgerWith("2026-03-10", play("a", eff.Add(10*time.Hour), 180_000)),
		"2026-03-09": ledgerWith("2026-03-09", play("b", eff.Add(-10*time.Hour), 180_000)),
	}}
	liked := &fakeLiked{}

	r := NewResolver(ledgers, liked, time.UTC, testSettings())
	res, err := r.Resolve(context.Background(), eff, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.PoolTier != TierToday {
		t.Errorf("expected pool from today tier, got %q", res.PoolTier)
	}
	if len(res.Pool) != 1 || res.Pool[0].TrackID != "a" {
		t.Errorf("expected only today's track in pool, got %v", res.Pool)
	}
	for _, tier := range res.Tiers {
		if tier.Name == TierTwoDays || tier.Name == TierThreeDays || tier.Name == TierWeek {
			t.Errorf("tier %q should not have been consulted", tier.Name)
		}
	}
	if liked.calls != 0 {
		t.Errorf("library should not have been consulted, got %d calls", liked.calls)
	}
}

func TestResolve_CooldownExclusion(t *testing.T) {
	eff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ledgers := &fakeLedgers{ledgers: map[string]models.DailyLedger{
		"2026-03-10": ledgerWith("2026-03-10",
			play("hot", eff.Add(10*time.Hour), 180_000),
			play("hot", eff.Add(11*time.Hour), 180_000),
			play("hot", eff.Add(12*time.Hour), 180_000),
			play("other", eff.Add(9*time.Hour), 180_000),
		),
	}}

	r := NewResolver(ledgers, &fakeLiked{}, time.UTC, testSettings())
	cooldown := map[string]struct{}{"hot": {}}

	res, err := r.Resolve(context.Background(), eff, cooldown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, cand := range res.Pool {
		if cand.TrackID == "hot" {
			t.Errorf("cooldown track must never be a candidate regardless of play count")
		}
	}
	if len(res.TodayConsidered) != 2 {
		t.Errorf("pre-filter pool should still report both tracks, got %d", len(res.TodayConsidered))
	}
}

func TestResolve_TierReportsCarryExclusions(t *testing.T) {
	eff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ledgers := &fakeLedgers{ledgers: map[string]models.DailyLedger{
		"2026-03-10": ledgerWith("2026-03-10",
			play("hot", eff.Add(10*time.Hour), 180_000),
			play("jingle", eff.Add(9*time.Hour), 20_000),
			play("other", eff.Add(8*time.Hour), 180_000),
		),
	}}

	r := NewResolver(ledgers, &fakeLiked{}, time.UTC, testSettings())
	cooldown := map[string]struct{}{"hot": {}}

	res, err := r.Resolve(context.Background(), eff, cooldown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var today *TierReport
	for i := range res.Tiers {
		if res.Tiers[i].Name == TierToday {
			today = &res.Tiers[i]
		}
	}
	if today == nil {
		t.Fatalf("today tier missing from report")
	}
	if len(today.Excluded) != 2 {
		t.Fatalf("expected 2 exclusions in today tier, got %d", len(today.Excluded))
	}

	reasons := map[string]string{}
	for _, ex := range today.Excluded {
		reasons[ex.TrackID] = ex.Reason
	}
	if reasons["hot"] != "in cooldown" {
		t.Errorf("expected cooldown reason for hot, got %q", reasons["hot"])
	}
	if reasons["jingle"] != "too short (20s)" {
		t.Errorf("expected duration reason for jingle, got %q", reasons["jingle"])
	}
}

func TestResolve_WindowAccumulatesPlayCounts(t *testing.T) {
	eff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	// No plays today; track b heard on two separate prior days.
	ledgers := &fakeLedgers{ledgers: map[string]models.DailyLedger{
		"2026-03-09": ledgerWith("2026-03-09",
			play("b", eff.Add(-10*time.Hour), 180_000),
			play("c", eff.Add(-11*time.Hour), 180_000),
		),
		"2026-03-08": ledgerWith("2026-03-08",
			play("b", eff.Add(-30*time.Hour), 180_000),
		),
	}}

	r := NewResolver(ledgers, &fakeLiked{}, time.UTC, testSettings())
	res, err := r.Resolve(context.Background(), eff, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.PoolTier != TierTwoDays {
		t.Fatalf("expected pool from the 2-day tier, got %q", res.PoolTier)
	}
	if res.PlayCounts["b"] != 1 {
		// The 2-day window only spans Mar 9-10.
		t.Errorf("expected count 1 for b within 2-day window, got %d", res.PlayCounts["b"])
	}
}

func TestResolve_TooShortTracksExcluded(t *testing.T) {
	eff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ledgers := &fakeLedgers{ledgers: map[string]models.DailyLedger{
		"2026-03-10": ledgerWith("2026-03-10",
			play("jingle", eff.Add(10*time.Hour), 20_000),
		),
	}}
	liked := &fakeLiked{tracks: []models.PlayEvent{
		play("fallback", eff.Add(-100*time.Hour), 200_000),
	}}

	r := NewResolver(ledgers, liked, time.UTC, testSettings())
	res, err := r.Resolve(context.Background(), eff, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.PoolTier != TierLibrary {
		t.Errorf("expected cascade to fall through to the library, got %q", res.PoolTier)
	}
	if !res.Unweighted {
		t.Errorf("library tier must be unweighted")
	}
}

func TestResolve_NoCandidatesAnywhere(t *testing.T) {
	eff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	r := NewResolver(&fakeLedgers{}, &fakeLiked{}, time.UTC, testSettings())

	res, err := r.Resolve(context.Background(), eff, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pool != nil {
		t.Errorf("expected nil pool, got %v", res.Pool)
	}
}

func TestResolve_LikedTodayTier(t *testing.T) {
	eff := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	liked := &fakeLiked{tracks: []models.PlayEvent{
		play("liked-now", eff.Add(9*time.Hour), 200_000),
		play("liked-cooldown", eff.Add(8*time.Hour), 200_000),
		play("liked-yesterday", eff.Add(-5*time.Hour), 200_000),
	}}
	settings := testSettings()
	settings.LikedToday = true

	r := NewResolver(&fakeLedgers{}, liked, time.UTC, settings)
	cooldown := map[string]struct{}{"liked-cooldown": {}}

	res, err := r.Resolve(context.Background(), eff, cooldown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.PoolTier != TierLikedToday {
		t.Fatalf("expected liked-today pool, got %q", res.PoolTier)
	}
	if len(res.Pool) != 1 || res.Pool[0].TrackID != "liked-now" {
		t.Errorf("expected only today's non-cooldown like, got %v", res.Pool)
	}
	// A track liked today but in cooldown stays excluded; still reported.
	if len(res.LikedTodayConsidered) != 2 {
		t.Errorf("expected 2 liked-today tracks considered, got %d", len(res.LikedTodayConsidered))
	}
	// Today's tier must still appear in the report.
	foundToday := false
	for _, tier := range res.Tiers {
		if tier.Name == TierToday {
			foundToday = true
		}
	}
	if !foundToday {
		t.Errorf("today tier should be reported even when liked-today selects")
	}
}

func TestCooldownIDs(t *testing.T) {
	snapshot := &models.PlaylistSnapshot{
		Tracks: []models.PlaylistTrack{
			{TrackID: "a", Position: 0},
			{TrackID: "b", Position: 1},
			{TrackID: "c", Position: 2},
		},
	}

	ids := CooldownIDs(snapshot, 2, []string{"picked"})
	if _, ok := ids["a"]; ok {
		t.Errorf("track outside the cooldown window must not be held")
	}
	for _, want := range []string{"b", "c", "picked"} {
		if _, ok := ids[want]; !ok {
			t.Errorf("expected %s in cooldown set", want)
		}
	}

	// Zero disables the positional cooldown.
	if ids := CooldownIDs(snapshot, 0, nil); len(ids) != 0 {
		t.Errorf("cooldown 0 must hold nothing, got %d", len(ids))
	}

	// A window larger than the playlist clamps to the whole playlist.
	if ids := CooldownIDs(snapshot, 10, nil); len(ids) != 3 {
		t.Errorf("oversized cooldown should clamp to playlist length, got %d", len(ids))
	}
}
