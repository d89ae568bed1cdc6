package report

import (
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/songday/internal/models"
	"github.com/julianstephens/songday/internal/selector"
)

func addition(date, track string, source models.AdditionSource) models.AdditionRecord {
	return models.AdditionRecord{
		ID:            "id-" + track,
		Date:          date,
		TrackID:       track,
		TrackName:     "Track " + track,
		ArtistDisplay: "Artist",
		Source:        source,
	}
}

func TestReport_SubjectStates(t *testing.T) {
	tests := []struct {
		name   string
		report Report
		want   string
	}{
		{"on target", Report{Date: "2026-03-10", DayNumber: 69, Target: 69, TrackCount: 69}, "on target"},
		{"short", Report{Date: "2026-03-10", DayNumber: 69, Target: 69, TrackCount: 67}, "short by 2"},
		{"failed", Report{Date: "2026-03-10", DayNumber: 69, Target: 69, TrackCount: 67, Failed: true}, "FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.report.Subject(); !strings.Contains(got, tt.want) {
				t.Errorf("subject %q missing %q", got, tt.want)
			}
		})
	}
}

func TestReport_ProvenanceIcons(t *testing.T) {
	r := Report{
		Date: "2026-03-10", DayNumber: 69, Target: 69, TrackCount: 69,
		TodayAdditions: []models.AdditionRecord{
			addition("2026-03-10", "a", models.AdditionUser),
			addition("2026-03-10", "b", models.AdditionAuto),
		},
	}

	text := r.RenderText()
	if !strings.Contains(text, "👤 Track a") || !strings.Contains(text, "🤖 Track b") {
		t.Errorf("text report missing provenance icons:\n%s", text)
	}
	if h := r.RenderHTML(); !strings.Contains(h, "👤") || !strings.Contains(h, "🤖") {
		t.Errorf("html report missing provenance icons")
	}
}

func TestReport_MarksSelectedTier(t *testing.T) {
	r := Report{
		Date: "2026-03-10", Target: 1, TrackCount: 1,
		Tiers: []selector.TierReport{
			{Name: "today", Considered: 3, Eligible: 0},
			{Name: "last 2 days", Considered: 5, Eligible: 2},
		},
		PoolTier: "last 2 days",
	}

	text := r.RenderText()
	if !strings.Contains(text, "* last 2 days") {
		t.Errorf("expected selected tier marker in:\n%s", text)
	}
	if h := r.RenderHTML(); !strings.Contains(h, "<strong>last 2 days</strong>") {
		t.Errorf("expected selected tier emphasized in html")
	}
}

func TestReport_ShowsTierExclusions(t *testing.T) {
	r := Report{
		Date: "2026-03-10", Target: 1, TrackCount: 1,
		Tiers: []selector.TierReport{
			{Name: "today", Considered: 2, Eligible: 1, Excluded: []selector.Exclusion{
				{TrackID: "hot", TrackName: "Hot & Heavy", Reason: "in cooldown"},
			}},
		},
		PoolTier: "today",
	}

	text := r.RenderText()
	if !strings.Contains(text, "excluded: Hot & Heavy (in cooldown)") {
		t.Errorf("text report missing exclusion line:\n%s", text)
	}

	h := r.RenderHTML()
	if !strings.Contains(h, "Hot &amp; Heavy (in cooldown)") {
		t.Errorf("html report missing escaped exclusion:\n%s", h)
	}
	if !strings.Contains(h, "<th>Excluded</th>") {
		t.Errorf("html tier table missing excluded column")
	}
}

func TestReport_EscapesTrackNames(t *testing.T) {
	rec := addition("2026-03-10", "x", models.AdditionAuto)
	rec.TrackName = "<script>bad</script>"
	r := Report{Date: "2026-03-10", TodayAdditions: []models.AdditionRecord{rec}}

	if h := r.RenderHTML(); strings.Contains(h, "<script>") {
		t.Errorf("html report must escape track names")
	}
}

func TestBuildWeekly_GroupsLastSevenDays(t *testing.T) {
	effective := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	additions := []models.AdditionRecord{
		addition("2026-03-10", "a", models.AdditionAuto),
		addition("2026-03-08", "b", models.AdditionUser),
		addition("2026-03-08", "c", models.AdditionAuto),
		addition("2026-03-03", "old", models.AdditionAuto), // outside the window
	}

	w := BuildWeekly(additions, effective)
	if w.Total != 3 {
		t.Fatalf("expected 3 additions in window, got %d", w.Total)
	}
	if len(w.Days) != 2 {
		t.Fatalf("expected 2 days with additions, got %d", len(w.Days))
	}
	if w.Days[0].Date != "2026-03-10" || w.Days[1].Date != "2026-03-08" {
		t.Errorf("expected newest day first, got %s then %s", w.Days[0].Date, w.Days[1].Date)
	}
	if len(w.Days[1].Additions) != 2 {
		t.Errorf("expected 2 additions on 2026-03-08, got %d", len(w.Days[1].Additions))
	}
}

func TestBuildWeekly_EmptyWeek(t *testing.T) {
	w := BuildWeekly(nil, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	if w.Total != 0 || len(w.Days) != 0 {
		t.Fatalf("expected empty summary, got %+v", w)
	}
	if !strings.Contains(w.RenderText(), "No additions this week.") {
		t.Errorf("expected empty-week message")
	}
}
