package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/julianstephens/songday/internal/storage"
)

type ConfigGetCmd struct {
	Key string `arg:"" optional:"" help:"Setting to show; omit for all."`
}

type ConfigSetCmd struct {
	Key   string `arg:"" help:"Setting to change."`
	Value string `arg:"" help:"New value."`
}

func settingsView(s storage.Settings) map[string]string {
	return map[string]string{
		"playlist_name":     s.PlaylistName,
		"playlist_id":       s.PlaylistID,
		"timezone":          s.Timezone,
		"cooldown_entries":  strconv.Itoa(s.CooldownEntries),
		"min_duration_ms":   strconv.Itoa(s.MinDurationMs),
		"selection_mode":    s.SelectionMode,
		"day_boundary_hour": strconv.Itoa(s.DayBoundaryHour),
		"year_start":        s.YearStart,
		"liked_today":       strconv.FormatBool(s.LikedToday),
		"email_enabled":     strconv.FormatBool(s.EmailEnabled),
		"email_to":          s.EmailTo,
		"email_from":        s.EmailFrom,
		"smtp_host":         s.SMTPHost,
		"smtp_port":         strconv.Itoa(s.SMTPPort),
		"smtp_user":         s.SMTPUser,
	}
}

func (c *ConfigGetCmd) Run(ctx *Context) error {
	if err := ctx.LoadState(); err != nil {
		return err
	}

	view := settingsView(ctx.Settings)
	if c.Key != "" {
		value, ok := view[c.Key]
		if !ok {
			return fmt.Errorf("unknown setting: %s", c.Key)
		}
		fmt.Println(value)
		return nil
	}

	keys := make([]string, 0, len(view))
	for key := range view {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%s = %s\n", key, view[key])
	}
	return nil
}

func (c *ConfigSetCmd) Run(ctx *Context) error {
	if err := ctx.LoadState(); err != nil {
		return err
	}

	settings := ctx.Settings
	if err := applySetting(&settings, c.Key, c.Value); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := ctx.Store.SaveSettings(settings); err != nil {
		return err
	}

	ctx.Printf("Set %s = %s\n", c.Key, c.Value)
	return nil
}

func applySetting(s *storage.Settings, key, value string) error {
	switch key {
	case "playlist_name":
		s.PlaylistName = value
		s.PlaylistID = "" // a new name invalidates the cached id
	case "timezone":
		if _, err := time.LoadLocation(value); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", value, err)
		}
		s.Timezone = value
	case "cooldown_entries":
		return setInt(&s.CooldownEntries, key, value)
	case "min_duration_ms":
		return setInt(&s.MinDurationMs, key, value)
	case "selection_mode":
		s.SelectionMode = value
	case "day_boundary_hour":
		return setInt(&s.DayBoundaryHour, key, value)
	case "year_start":
		if value != "" {
			if _, err := time.Parse("2006-01-02", value); err != nil {
				return fmt.Errorf("year_start must be YYYY-MM-DD: %w", err)
			}
		}
		s.YearStart = value
	case "liked_today":
		return setBool(&s.LikedToday, key, value)
	case "email_enabled":
		return setBool(&s.EmailEnabled, key, value)
	case "email_to":
		s.EmailTo = value
	case "email_from":
		s.EmailFrom = value
	case "smtp_host":
		s.SMTPHost = value
	case "smtp_port":
		return setInt(&s.SMTPPort, key, value)
	case "smtp_user":
		s.SMTPUser = value
	case "smtp_pass":
		s.SMTPPass = value
	default:
		return fmt.Errorf("unknown setting: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}
