// Package engine reconciles the managed playlist against the day-of-year
// target. A run is idempotent: it recomputes everything it needs from fresh
// playlist and store state, so overlapping or repeated invocations converge
// on the same playlist size.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/songday/internal/logger"
	"github.com/julianstephens/songday/internal/models"
	"github.com/julianstephens/songday/internal/report"
	"github.com/julianstephens/songday/internal/scheduler"
	"github.com/julianstephens/songday/internal/selector"
	"github.com/julianstephens/songday/internal/spotify"
	"github.com/julianstephens/songday/internal/storage"
)

// ErrNoCandidates is returned when songs were needed and not a single one
// could be added.
var ErrNoCandidates = errors.New("no eligible candidates in any tier")

const playlistDescription = "One song for every day of the year."

type Engine struct {
	store    storage.Provider
	catalog  spotify.Catalog
	settings storage.Settings
	loc      *time.Location

	dryRun bool
	rng    *rand.Rand
	now    func() time.Time
}

func New(store storage.Provider, catalog spotify.Catalog, settings storage.Settings, loc *time.Location) *Engine {
	return &Engine{
		store:    store,
		catalog:  catalog,
		settings: settings,
		loc:      loc,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// SetDryRun makes the run execute the full reconciliation logic while
// substituting no-ops for playlist mutation and addition-log commits.
func (e *Engine) SetDryRun(dryRun bool) { e.dryRun = dryRun }

// SetRand overrides the random source. Used by tests.
func (e *Engine) SetRand(rng *rand.Rand) { e.rng = rng }

// SetClock overrides the time source. Used by tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// Finalize runs one reconciliation. The returned report is always non-nil,
// whatever the outcome. A non-nil error means the run failed: the playlist
// could not be located or created, stored configuration is malformed, or
// songs were needed and none could be added.
func (e *Engine) Finalize(ctx context.Context) (*report.Report, error) {
	effective := scheduler.EffectiveDate(e.now().In(e.loc), e.settings.DayBoundaryHour)
	date := effective.Format("2006-01-02")
	rep := &report.Report{Date: date, DryRun: e.dryRun}

	playlist, err := e.ensurePlaylist(ctx)
	if err != nil {
		rep.Failed = true
		return rep, err
	}

	yearStart, err := scheduler.YearStart(e.settings.YearStart, playlist.Name, e.now().In(e.loc))
	if err != nil {
		rep.Failed = true
		return rep, err
	}
	rep.DayNumber = scheduler.DayNumber(effective, yearStart)
	rep.Target = scheduler.TargetCount(effective, yearStart)

	snapshot, err := e.snapshot(ctx, playlist)
	if err != nil {
		rep.Failed = true
		return rep, err
	}
	rep.TrackCount = snapshot.TrackCount

	if err := e.reconcileManual(snapshot, effective); err != nil {
		rep.Failed = true
		return rep, err
	}

	resolver := selector.NewResolver(e.store, e.catalog, e.loc, e.settings)
	startCount := snapshot.TrackCount
	needed := rep.Target - startCount

	var picked []string
	added := 0
	var commitErr error

	if needed <= 0 {
		// On target. Resolve once anyway so the report shows the pools.
		cooldown := selector.CooldownIDs(snapshot, e.settings.CooldownEntries, nil)
		if res, err := resolver.Resolve(ctx, effective, cooldown); err == nil {
			rep.Tiers = res.Tiers
			rep.PoolTier = res.PoolTier
		} else {
			logger.Warn("could not resolve candidate pools for report", "error", err)
		}
	}

	for i := 0; i < needed; i++ {
		if added > 0 {
			// Refresh so the cooldown window sees the track just added.
			snapshot, err = e.snapshot(ctx, playlist)
			if err != nil {
				rep.Warnings = append(rep.Warnings, fmt.Sprintf("could not refresh playlist after %d additions: %v", added, err))
				break
			}
		}

		cooldown := selector.CooldownIDs(snapshot, e.settings.CooldownEntries, picked)
		res, err := resolver.Resolve(ctx, effective, cooldown)
		if err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("candidate resolution failed: %v", err))
			break
		}
		if i == 0 {
			rep.Tiers = res.Tiers
			rep.PoolTier = res.PoolTier
		}

		var pick *models.PlayEvent
		if res.Unweighted {
			pick = selector.PickUniform(res.Pool, e.rng)
		} else {
			pick = selector.Pick(res.Pool, res.PlayCounts, e.settings.SelectionMode, e.rng)
		}
		if pick == nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("candidate pool exhausted after %d of %d additions", added, needed))
			break
		}

		if err := e.commit(ctx, playlist, date, *pick, rep); err != nil {
			// Already-committed picks stand; the run ends here.
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("commit failed after %d of %d additions: %v", added, needed, err))
			commitErr = err
			break
		}
		picked = append(picked, pick.TrackID)
		added++
	}

	// Every commit appends one position, repeat picks included. Dry-run
	// commits are no-ops, so the size stays where the run found it.
	rep.TrackCount = startCount
	if !e.dryRun {
		rep.TrackCount += added
	}

	if additions, err := e.store.GetAdditions(); err == nil {
		for _, rec := range additions {
			if rec.Date == date {
				rep.TodayAdditions = append(rep.TodayAdditions, rec)
			}
		}
	}

	if needed > 0 && added == 0 {
		rep.Failed = true
		if commitErr != nil {
			return rep, commitErr
		}
		return rep, ErrNoCandidates
	}
	return rep, nil
}

// ensurePlaylist resolves the managed playlist, preferring the cached ID,
// then a name lookup, then creation. The first successful name lookup caches
// the ID in settings.
func (e *Engine) ensurePlaylist(ctx context.Context) (*spotify.Playlist, error) {
	if e.settings.PlaylistID != "" {
		return &spotify.Playlist{ID: e.settings.PlaylistID, Name: e.settings.PlaylistName}, nil
	}

	playlist, err := e.catalog.FindPlaylistByName(ctx, e.settings.PlaylistName)
	if errors.Is(err, spotify.ErrPlaylistNotFound) {
		logger.Info("creating playlist", "name", e.settings.PlaylistName)
		playlist, err = e.catalog.CreatePlaylist(ctx, e.settings.PlaylistName, playlistDescription, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to locate or create playlist %q: %w", e.settings.PlaylistName, err)
	}

	e.settings.PlaylistID = playlist.ID
	if err := e.store.SaveSettings(e.settings); err != nil {
		logger.Warn("could not cache playlist id", "error", err)
	}
	return playlist, nil
}

// snapshot refetches the playlist whole and persists the view, so edits made
// outside this tool are always picked up.
func (e *Engine) snapshot(ctx context.Context, playlist *spotify.Playlist) (*models.PlaylistSnapshot, error) {
	tracks, err := e.catalog.PlaylistTracks(ctx, playlist.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot playlist: %w", err)
	}

	snap := models.PlaylistSnapshot{
		PlaylistID:   playlist.ID,
		PlaylistName: playlist.Name,
		LastChecked:  e.now().UTC(),
		TrackCount:   len(tracks),
		Tracks:       tracks,
	}
	if err := e.store.SaveSnapshot(snap); err != nil {
		return nil, fmt.Errorf("failed to save playlist snapshot: %w", err)
	}
	return &snap, nil
}

// reconcileManual records snapshot tracks the listener added on the
// effective date that are missing from the addition log. The store
// de-duplicates on (date, track_id), so re-running is harmless.
func (e *Engine) reconcileManual(snapshot *models.PlaylistSnapshot, effective time.Time) error {
	date := effective.Format("2006-01-02")
	for _, track := range snapshot.Tracks {
		addedDay := scheduler.EffectiveDate(track.AddedAt.In(e.loc), e.settings.DayBoundaryHour)
		if addedDay.Format("2006-01-02") != date {
			continue
		}

		written, err := e.store.RecordAddition(models.AdditionRecord{
			ID:            uuid.NewString(),
			Date:          date,
			TrackID:       track.TrackID,
			TrackName:     track.TrackName,
			ArtistDisplay: track.ArtistDisplay,
			Source:        models.AdditionUser,
			RecordedAt:    e.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to record manual addition: %w", err)
		}
		if written {
			logger.Info("recorded manual addition", "track", track.TrackName)
		}
	}
	return nil
}

// commit adds the pick to the playlist and records it with auto provenance.
// In dry-run mode both steps are skipped and the pick is only reported.
func (e *Engine) commit(ctx context.Context, playlist *spotify.Playlist, date string, pick models.PlayEvent, rep *report.Report) error {
	if e.dryRun {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("dry run: would add %s — %s", pick.TrackName, pick.ArtistDisplay))
		return nil
	}

	if err := e.catalog.AddToPlaylist(ctx, playlist.ID, []string{pick.TrackID}); err != nil {
		return err
	}

	if _, err := e.store.RecordAddition(models.AdditionRecord{
		ID:            uuid.NewString(),
		Date:          date,
		TrackID:       pick.TrackID,
		TrackName:     pick.TrackName,
		ArtistDisplay: pick.ArtistDisplay,
		Source:        models.AdditionAuto,
		RecordedAt:    e.now().UTC(),
	}); err != nil {
		// The playlist mutation already stands; log and keep going.
		logger.Error("failed to record addition", "track", pick.TrackName, "error", err)
	}
	logger.Info("added song of the day", "track", pick.TrackName, "artist", pick.ArtistDisplay)
	return nil
}
