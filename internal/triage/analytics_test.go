package triage

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	day1 := now.Add(-24 * time.Hour)
	day2 := now.Add(-48 * time.Hour)
	old := now.Add(-10 * 24 * time.Hour)

	items := []*FeedbackItem{
		{Category: CategorySystemFailure, Score: 100, Status: StatusPending, CreatedAt: day1, UpdatedAt: day1},
		{Category: CategoryBug, Score: 75, Status: StatusResolved, CreatedAt: day2, UpdatedAt: day1},
		{Category: CategoryBug, Score: 45, Status: StatusInProgress, CreatedAt: day1, UpdatedAt: day1},
		{Category: CategoryFeature, Score: 25, Status: StatusResolved, CreatedAt: old, UpdatedAt: old},
	}

	a := summarize(items, now)

	if a.Totals != (Totals{Total: 4, Pending: 1, InProgress: 1, Resolved: 2}) {
		t.Errorf("totals = %+v", a.Totals)
	}

	wantCats := []CategoryCount{
		{CategorySystemFailure, 1},
		{CategoryBug, 2},
		{CategoryFeature, 1},
	}
	if len(a.CategoryDistribution) != len(wantCats) {
		t.Fatalf("category distribution = %+v", a.CategoryDistribution)
	}
	for i, want := range wantCats {
		if a.CategoryDistribution[i] != want {
			t.Errorf("category[%d] = %+v, want %+v", i, a.CategoryDistribution[i], want)
		}
	}

	wantStatus := []StatusCount{{StatusPending, 1}, {StatusInProgress, 1}, {StatusResolved, 2}}
	for i, want := range wantStatus {
		if a.StatusDistribution[i] != want {
			t.Errorf("status[%d] = %+v, want %+v", i, a.StatusDistribution[i], want)
		}
	}

	wantBands := []BandCount{{BandCritical, 1}, {BandHigh, 1}, {BandMedium, 1}, {BandLow, 1}}
	for i, want := range wantBands {
		if a.PriorityDistribution[i] != want {
			t.Errorf("band[%d] = %+v, want %+v", i, a.PriorityDistribution[i], want)
		}
	}

	// the old resolution falls outside the window
	if len(a.ResolutionVelocity) != 1 || a.ResolutionVelocity[0] != (DayCount{"2026-03-09", 1}) {
		t.Errorf("velocity = %+v", a.ResolutionVelocity)
	}

	wantTrends := []TrendPoint{
		{"2026-03-08", CategoryBug, 1},
		{"2026-03-09", CategorySystemFailure, 1},
		{"2026-03-09", CategoryBug, 1},
	}
	if len(a.CategoryTrends) != len(wantTrends) {
		t.Fatalf("trends = %+v", a.CategoryTrends)
	}
	for i, want := range wantTrends {
		if a.CategoryTrends[i] != want {
			t.Errorf("trend[%d] = %+v, want %+v", i, a.CategoryTrends[i], want)
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	a := summarize(nil, time.Now())
	if a.Totals.Total != 0 {
		t.Errorf("total = %d, want 0", a.Totals.Total)
	}
	if len(a.CategoryDistribution) != 0 || len(a.ResolutionVelocity) != 0 {
		t.Errorf("expected empty distributions, got %+v", a)
	}

	raw, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{
		"categoryDistribution",
		"statusDistribution",
		"priorityDistribution",
		"resolutionVelocity",
		"categoryTrends",
	} {
		if got := string(fields[key]); got != "[]" {
			t.Errorf("%s = %s, want []", key, got)
		}
	}
}

func TestBand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score int
		want  string
	}{
		{100, BandCritical},
		{80, BandCritical},
		{79, BandHigh},
		{60, BandHigh},
		{59, BandMedium},
		{40, BandMedium},
		{39, BandLow},
		{0, BandLow},
	}
	for _, tt := range tests {
		if got := band(tt.score); got != tt.want {
			t.Errorf("band(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
