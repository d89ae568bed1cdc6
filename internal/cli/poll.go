package cli

import (
	"context"

	"github.com/julianstephens/songday/internal/ledger"
)

type PollCmd struct{}

func (c *PollCmd) Run(ctx *Context) error {
	if err := ctx.LoadState(); err != nil {
		return err
	}

	cctx := context.Background()
	catalog, err := ctx.NewCatalog(cctx)
	if err != nil {
		return err
	}

	date := ctx.EffectiveDate().Format("2006-01-02")
	svc := ledger.NewService(ctx.Store, ctx.Location, ctx.Settings.DayBoundaryHour)
	result, err := svc.Poll(cctx, catalog, date)
	if err != nil {
		return err
	}

	ctx.Printf("Polled %s: %d new from history, %d from playback (%d plays, %d unique tracks today)\n",
		result.Date, result.NewFromHistory, result.NewFromPlayback, result.TotalPlays, result.UniqueTracks)
	return nil
}
