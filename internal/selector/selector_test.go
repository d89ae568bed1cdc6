package selector

import (
	"math/rand"
	"testing"
	"time"

	"github.com/julianstephens/songday/internal/models"
	"github.com/julianstephens/songday/internal/storage"
)

func candidate(id string, playedAt time.Time) models.PlayEvent {
	return models.PlayEvent{
		TrackID:    id,
		TrackName:  "Track " + id,
		PlayedAt:   playedAt,
		DurationMs: 180_000,
		MediaType:  models.MediaTrack,
	}
}

func TestRank_ByCountThenRecency(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cands := []models.PlayEvent{
		candidate("a", base.Add(-time.Hour)),
		candidate("b", base), // same count as a, more recent
		candidate("c", base.Add(-2*time.Hour)),
	}
	counts := map[string]int{"a": 2, "b": 2, "c": 5}

	ranked := Rank(cands, counts)
	want := []string{"c", "b", "a"}
	for i, id := range want {
		if ranked[i].TrackID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, ranked[i].TrackID)
		}
	}
}

func TestPick_MostPlayedIsDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cands := []models.PlayEvent{
		candidate("a", base),
		candidate("b", base),
	}
	counts := map[string]int{"a": 1, "b": 9}

	for seed := int64(0); seed < 10; seed++ {
		rng := rand.New(rand.NewSource(seed))
		got := Pick(cands, counts, storage.ModeMostPlayed, rng)
		if got == nil || got.TrackID != "b" {
			t.Fatalf("seed %d: expected most-played track b, got %v", seed, got)
		}
	}
}

func TestPick_EmptyPool(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if got := Pick(nil, nil, storage.ModeWeightedRandom, rng); got != nil {
		t.Errorf("expected nil for empty pool, got %v", got)
	}
}

func TestPick_SingleCandidateSkipsDraw(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cands := []models.PlayEvent{candidate("only", base)}

	rng := rand.New(rand.NewSource(1))
	got := Pick(cands, map[string]int{"only": 3}, storage.ModeWeightedRandom, rng)
	if got == nil || got.TrackID != "only" {
		t.Errorf("expected the single candidate, got %v", got)
	}
}

func TestPick_SeededDrawIsReproducible(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cands := []models.PlayEvent{
		candidate("a", base),
		candidate("b", base.Add(-time.Minute)),
		candidate("c", base.Add(-2*time.Minute)),
	}
	counts := map[string]int{"a": 3, "b": 2, "c": 1}

	first := Pick(cands, counts, storage.ModeWeightedRandom, rand.New(rand.NewSource(42)))
	second := Pick(cands, counts, storage.ModeWeightedRandom, rand.New(rand.NewSource(42)))
	if first.TrackID != second.TrackID {
		t.Errorf("same seed produced different picks: %s vs %s", first.TrackID, second.TrackID)
	}
}

func TestPick_StrongWeightingSharpensBias(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cands := []models.PlayEvent{
		candidate("hot", base),
		candidate("cold", base.Add(-time.Minute)),
	}
	counts := map[string]int{"hot": 4, "cold": 2}

	const trials = 10_000
	freq := func(mode string) float64 {
		rng := rand.New(rand.NewSource(7))
		hits := 0
		for i := 0; i < trials; i++ {
			if Pick(cands, counts, mode, rng).TrackID == "hot" {
				hits++
			}
		}
		return float64(hits) / trials
	}

	weighted := freq(storage.ModeWeightedRandom)
	strong := freq(storage.ModeStronglyWeightedRandom)

	// weight 4:2 gives ~0.67; squared 16:4 gives ~0.8
	if weighted < 0.55 || weighted > 0.78 {
		t.Errorf("weighted_random frequency out of expected range: %f", weighted)
	}
	if strong < weighted+0.05 {
		t.Errorf("expected strongly_weighted_random to favor the hot track more (%f vs %f)", strong, weighted)
	}
}

func TestPickUniform(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cands := []models.PlayEvent{
		candidate("a", base),
		candidate("b", base),
	}

	seenA, seenB := false, false
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		switch PickUniform(cands, rng).TrackID {
		case "a":
			seenA = true
		case "b":
			seenB = true
		}
	}
	if !seenA || !seenB {
		t.Errorf("expected uniform picking to reach both candidates")
	}
}
