package report

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/songday/internal/models"
)

// WeeklySummary groups the last seven days of additions by day, newest day
// first.
type WeeklySummary struct {
	Start string // YYYY-MM-DD, oldest day covered
	End   string // YYYY-MM-DD, the effective date
	Days  []DaySummary
	Total int
}

type DaySummary struct {
	Date      string
	Additions []models.AdditionRecord
}

// BuildWeekly assembles a summary of the seven days ending at the effective
// date. Days without additions are omitted.
func BuildWeekly(additions []models.AdditionRecord, effective time.Time) *WeeklySummary {
	end := effective.Format("2006-01-02")
	start := effective.AddDate(0, 0, -6).Format("2006-01-02")

	byDay := make(map[string][]models.AdditionRecord)
	total := 0
	for _, rec := range additions {
		if rec.Date < start || rec.Date > end {
			continue
		}
		byDay[rec.Date] = append(byDay[rec.Date], rec)
		total++
	}

	dates := make([]string, 0, len(byDay))
	for date := range byDay {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	summary := &WeeklySummary{Start: start, End: end, Total: total}
	for _, date := range dates {
		summary.Days = append(summary.Days, DaySummary{Date: date, Additions: byDay[date]})
	}
	return summary
}

func (w *WeeklySummary) Subject() string {
	return fmt.Sprintf("Song of the Day weekly summary %s to %s (%d additions)", w.Start, w.End, w.Total)
}

func (w *WeeklySummary) RenderText() string {
	var b strings.Builder
	fmt.Fprintln(&b, w.Subject())

	if len(w.Days) == 0 {
		fmt.Fprintln(&b, "\nNo additions this week.")
		return b.String()
	}
	for _, day := range w.Days {
		fmt.Fprintf(&b, "\n%s\n", day.Date)
		for _, rec := range day.Additions {
			fmt.Fprintf(&b, "  %s %s — %s\n", icon(rec.Source), rec.TrackName, rec.ArtistDisplay)
		}
	}
	return b.String()
}

func (w *WeeklySummary) RenderHTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(w.Subject()))

	if len(w.Days) == 0 {
		fmt.Fprintln(&b, "<p>No additions this week.</p>")
		return b.String()
	}

	fmt.Fprintln(&b, "<table border=\"1\" cellpadding=\"4\">")
	fmt.Fprintln(&b, "<tr><th>Date</th><th></th><th>Track</th><th>Artist</th></tr>")
	for _, day := range w.Days {
		for i, rec := range day.Additions {
			date := ""
			if i == 0 {
				date = day.Date
			}
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
				date, icon(rec.Source), html.EscapeString(rec.TrackName), html.EscapeString(rec.ArtistDisplay))
		}
	}
	fmt.Fprintln(&b, "</table>")
	return b.String()
}
