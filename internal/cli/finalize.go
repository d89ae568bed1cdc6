package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/songday/internal/engine"
	"github.com/julianstephens/songday/internal/logger"
	"github.com/julianstephens/songday/internal/mailer"
)

type FinalizeCmd struct {
	DryRun bool `help:"Run the full reconciliation without touching the playlist or the addition log."`
}

func (c *FinalizeCmd) Run(ctx *Context) error {
	if err := ctx.LoadState(); err != nil {
		return err
	}

	cctx := context.Background()
	catalog, err := ctx.NewCatalog(cctx)
	if err != nil {
		return err
	}

	eng := engine.New(ctx.Store, catalog, ctx.Settings, ctx.Location)
	eng.SetDryRun(c.DryRun)

	rep, runErr := eng.Finalize(cctx)

	// The report goes out whatever happened; it is the observable record of
	// the run.
	if !ctx.Quiet {
		fmt.Print(rep.RenderText())
	}
	if !c.DryRun {
		ml := mailer.New(ctx.Settings)
		if err := ml.Send(rep.Subject(), rep.RenderText(), rep.RenderHTML()); err != nil && !errors.Is(err, mailer.ErrDisabled) {
			logger.Warn("could not email run report", "error", err)
		}
	}

	return runErr
}
