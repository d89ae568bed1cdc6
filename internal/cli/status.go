package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/songday/internal/ledger"
	"github.com/julianstephens/songday/internal/models"
	"github.com/julianstephens/songday/internal/scheduler"
	"github.com/julianstephens/songday/internal/spotify"
)

type StatusCmd struct {
	NoPoll bool `help:"Skip the implicit listening poll before showing status."`
}

func (c *StatusCmd) Run(ctx *Context) error {
	if err := ctx.LoadState(); err != nil {
		return err
	}

	cctx := context.Background()
	catalog, err := ctx.NewCatalog(cctx)
	if err != nil {
		return err
	}

	effective := ctx.EffectiveDate()
	date := effective.Format("2006-01-02")

	// Status refreshes listening data first so the numbers are current.
	if !c.NoPoll {
		svc := ledger.NewService(ctx.Store, ctx.Location, ctx.Settings.DayBoundaryHour)
		if _, err := svc.Poll(cctx, catalog, date); err != nil {
			return err
		}
	}

	playlist, trackCount, err := c.playlistCount(cctx, ctx, catalog)
	if err != nil {
		return err
	}

	playlistName := ctx.Settings.PlaylistName
	if playlist != nil {
		playlistName = playlist.Name
	}
	yearStart, err := scheduler.YearStart(ctx.Settings.YearStart, playlistName, effective)
	if err != nil {
		return err
	}
	target := scheduler.TargetCount(effective, yearStart)

	led, err := ctx.Store.GetLedger(date)
	if err != nil {
		return err
	}

	fmt.Printf("Date: %s (day %d)\n", date, scheduler.DayNumber(effective, yearStart))
	if playlist == nil {
		fmt.Printf("Playlist %q not found; finalize will create it.\n", ctx.Settings.PlaylistName)
	}
	fmt.Printf("Playlist: %d/%d tracks", trackCount, target)
	if behind := target - trackCount; behind > 0 {
		fmt.Printf(" (%d behind)", behind)
	}
	fmt.Println()
	fmt.Printf("Listening today: %d plays, %d unique tracks\n", len(led.Plays), len(led.PlayCounts))

	additions, err := ctx.Store.GetAdditions()
	if err != nil {
		return err
	}
	for _, rec := range additions {
		if rec.Date != date {
			continue
		}
		symbol := "🤖"
		if rec.Source == models.AdditionUser {
			symbol = "👤"
		}
		fmt.Printf("  %s %s — %s\n", symbol, rec.TrackName, rec.ArtistDisplay)
	}
	return nil
}

// playlistCount resolves the playlist and its live size. A missing playlist
// is not an error for status, it just reads as zero tracks.
func (c *StatusCmd) playlistCount(cctx context.Context, ctx *Context, catalog spotify.Catalog) (*spotify.Playlist, int, error) {
	playlist := &spotify.Playlist{ID: ctx.Settings.PlaylistID, Name: ctx.Settings.PlaylistName}
	if playlist.ID == "" {
		found, err := catalog.FindPlaylistByName(cctx, ctx.Settings.PlaylistName)
		if errors.Is(err, spotify.ErrPlaylistNotFound) {
			return nil, 0, nil
		}
		if err != nil {
			return nil, 0, err
		}
		playlist = found
	}

	tracks, err := catalog.PlaylistTracks(cctx, playlist.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read playlist: %w", err)
	}
	return playlist, len(tracks), nil
}
