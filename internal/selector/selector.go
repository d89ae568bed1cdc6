package selector

import (
	"math/rand"
	"sort"

	"github.com/julianstephens/songday/internal/models"
	"github.com/julianstephens/songday/internal/storage"
)

// TopN is how many top-ranked candidates the randomized modes draw from.
const TopN = 5

// Rank orders candidates by play count descending, ties broken by the most
// recent play. The input slice is not modified.
func Rank(candidates []models.PlayEvent, counts map[string]int) []models.PlayEvent {
	ranked := make([]models.PlayEvent, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := counts[ranked[i].TrackID], counts[ranked[j].TrackID]
		if ci != cj {
			return ci > cj
		}
		return ranked[i].PlayedAt.After(ranked[j].PlayedAt)
	})
	return ranked
}

// Pick selects one candidate according to the configured mode. The rand
// source is injected so tests can assert exact outcomes; it is the only
// source of non-determinism in the engine.
func Pick(candidates []models.PlayEvent, counts map[string]int, mode string, rng *rand.Rand) *models.PlayEvent {
	if len(candidates) == 0 {
		return nil
	}

	ranked := Rank(candidates, counts)

	if mode == storage.ModeMostPlayed {
		return &ranked[0]
	}

	top := ranked
	if len(top) > TopN {
		top = top[:TopN]
	}
	if len(top) == 1 {
		return &top[0]
	}

	weights := make([]int, len(top))
	total := 0
	for i, cand := range top {
		w := counts[cand.TrackID]
		if w < 1 {
			w = 1
		}
		if mode == storage.ModeStronglyWeightedRandom {
			w = w * w
		}
		weights[i] = w
		total += w
	}

	r := rng.Intn(total)
	for i, w := range weights {
		r -= w
		if r < 0 {
			return &top[i]
		}
	}
	return &top[len(top)-1]
}

// PickUniform selects a candidate with no play-count weighting. Used for the
// library fallback tier, where no listening signal exists.
func PickUniform(candidates []models.PlayEvent, rng *rand.Rand) *models.PlayEvent {
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[rng.Intn(len(candidates))]
}
