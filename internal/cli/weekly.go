package cli

import (
	"errors"
	"fmt"

	"github.com/julianstephens/songday/internal/logger"
	"github.com/julianstephens/songday/internal/mailer"
	"github.com/julianstephens/songday/internal/report"
)

type WeeklyCmd struct{}

func (c *WeeklyCmd) Run(ctx *Context) error {
	if err := ctx.LoadState(); err != nil {
		return err
	}

	additions, err := ctx.Store.GetAdditions()
	if err != nil {
		return err
	}

	summary := report.BuildWeekly(additions, ctx.EffectiveDate())
	if !ctx.Quiet {
		fmt.Print(summary.RenderText())
	}

	ml := mailer.New(ctx.Settings)
	if err := ml.Send(summary.Subject(), summary.RenderText(), summary.RenderHTML()); err != nil && !errors.Is(err, mailer.ErrDisabled) {
		logger.Warn("could not email weekly summary", "error", err)
	}
	return nil
}
