// Package report renders the outcome of a reconciliation run as plain text
// for the terminal and as HTML for email.
package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/julianstephens/songday/internal/models"
	"github.com/julianstephens/songday/internal/selector"
)

// Report describes one reconciliation run. It is always built, whether the
// run succeeded, partially succeeded, or failed.
type Report struct {
	Date       string
	DayNumber  int
	Target     int
	TrackCount int // playlist size after the run
	DryRun     bool

	// TodayAdditions is every addition recorded for the date, manual and
	// automatic, newest last.
	TodayAdditions []models.AdditionRecord

	// Tiers is the candidate cascade as consulted, in order.
	Tiers    []selector.TierReport
	PoolTier string

	Warnings []string
	Failed   bool
}

func icon(source models.AdditionSource) string {
	if source == models.AdditionUser {
		return "👤"
	}
	return "🤖"
}

// Subject is the one-line summary used for terminal output and email.
func (r *Report) Subject() string {
	status := "on target"
	switch {
	case r.Failed:
		status = "FAILED"
	case r.TrackCount < r.Target:
		status = fmt.Sprintf("short by %d", r.Target-r.TrackCount)
	}
	return fmt.Sprintf("Song of the Day %s: day %d, %d/%d tracks (%s)",
		r.Date, r.DayNumber, r.TrackCount, r.Target, status)
}

// RenderText produces the plain-text report.
func (r *Report) RenderText() string {
	var b strings.Builder
	fmt.Fprintln(&b, r.Subject())
	if r.DryRun {
		fmt.Fprintln(&b, "(dry run, no changes were made)")
	}

	if len(r.TodayAdditions) > 0 {
		fmt.Fprintln(&b, "\nToday's additions:")
		for _, rec := range r.TodayAdditions {
			fmt.Fprintf(&b, "  %s %s — %s\n", icon(rec.Source), rec.TrackName, rec.ArtistDisplay)
		}
	} else {
		fmt.Fprintln(&b, "\nNo additions today.")
	}

	if len(r.Tiers) > 0 {
		fmt.Fprintln(&b, "\nCandidate tiers:")
		for _, tier := range r.Tiers {
			marker := " "
			if tier.Name == r.PoolTier {
				marker = "*"
			}
			fmt.Fprintf(&b, "  %s %-14s considered %d, eligible %d\n",
				marker, tier.Name, tier.Considered, tier.Eligible)
			for _, ex := range tier.Excluded {
				fmt.Fprintf(&b, "      excluded: %s (%s)\n", ex.TrackName, ex.Reason)
			}
		}
	}

	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\nwarning: %s\n", w)
	}
	return b.String()
}

// RenderHTML produces the HTML body for email delivery.
func (r *Report) RenderHTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(r.Subject()))
	if r.DryRun {
		fmt.Fprintln(&b, "<p><em>Dry run, no changes were made.</em></p>")
	}

	if len(r.TodayAdditions) > 0 {
		fmt.Fprintln(&b, "<h3>Today's additions</h3>\n<ul>")
		for _, rec := range r.TodayAdditions {
			fmt.Fprintf(&b, "<li>%s %s — %s</li>\n",
				icon(rec.Source), html.EscapeString(rec.TrackName), html.EscapeString(rec.ArtistDisplay))
		}
		fmt.Fprintln(&b, "</ul>")
	} else {
		fmt.Fprintln(&b, "<p>No additions today.</p>")
	}

	if len(r.Tiers) > 0 {
		fmt.Fprintln(&b, "<h3>Candidate tiers</h3>\n<table border=\"1\" cellpadding=\"4\">")
		fmt.Fprintln(&b, "<tr><th>Tier</th><th>Considered</th><th>Eligible</th><th>Excluded</th></tr>")
		for _, tier := range r.Tiers {
			name := html.EscapeString(tier.Name)
			if tier.Name == r.PoolTier {
				name = "<strong>" + name + "</strong>"
			}
			var exc []string
			for _, ex := range tier.Excluded {
				exc = append(exc, fmt.Sprintf("%s (%s)",
					html.EscapeString(ex.TrackName), html.EscapeString(ex.Reason)))
			}
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>%d</td><td>%s</td></tr>\n",
				name, tier.Considered, tier.Eligible, strings.Join(exc, "<br>"))
		}
		fmt.Fprintln(&b, "</table>")
	}

	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "<p><strong>Warning:</strong> %s</p>\n", html.EscapeString(w))
	}
	return b.String()
}
