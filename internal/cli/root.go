// Package cli holds the kong command implementations. Each command receives
// an explicit Context: the run owns its store, settings and profile state
// directory, so nothing about the current profile is ambient.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/songday/internal/scheduler"
	"github.com/julianstephens/songday/internal/spotify"
	"github.com/julianstephens/songday/internal/storage"
)

type Context struct {
	Store    storage.Provider
	StateDir string
	Quiet    bool

	// NewCatalog authenticates against the catalog service on first use.
	NewCatalog func(ctx context.Context) (spotify.Catalog, error)

	// Populated by LoadState.
	Settings storage.Settings
	Location *time.Location
}

// LoadState loads the store and resolves settings commands depend on.
func (c *Context) LoadState() error {
	if err := c.Store.Load(); err != nil {
		return err
	}

	settings, err := c.Store.GetSettings()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("stored settings are invalid: %w", err)
	}

	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}

	c.Settings = settings
	c.Location = loc
	return nil
}

// EffectiveDate applies the day-boundary shift to the current instant.
func (c *Context) EffectiveDate() time.Time {
	return scheduler.EffectiveDate(time.Now().In(c.Location), c.Settings.DayBoundaryHour)
}

// Printf writes progress output unless quiet mode is on. Reports that are
// the point of a command go through fmt directly.
func (c *Context) Printf(format string, args ...interface{}) {
	if c.Quiet {
		return
	}
	fmt.Printf(format, args...)
}
