package triage

import (
	"context"
	"sort"
	"time"
)

const analyticsWindow = 7 * 24 * time.Hour

// Priority band labels, most urgent first.
const (
	BandCritical = "Critical (80-100)"
	BandHigh     = "High (60-79)"
	BandMedium   = "Medium (40-59)"
	BandLow      = "Low (0-39)"
)

// CategoryCount is one row of the category distribution.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// StatusCount is one row of the status distribution.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// BandCount is one row of the priority distribution.
type BandCount struct {
	Range string `json:"priority_range"`
	Count int    `json:"count"`
}

// DayCount counts resolutions on one day.
type DayCount struct {
	Date     string `json:"date"`
	Resolved int    `json:"resolved"`
}

// TrendPoint counts items of one category created on one day.
type TrendPoint struct {
	Date     string   `json:"date"`
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// Totals summarizes the queue.
type Totals struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}

// Analytics is the dashboard summary of the feedback queue.
type Analytics struct {
	CategoryDistribution []CategoryCount `json:"categoryDistribution"`
	StatusDistribution   []StatusCount   `json:"statusDistribution"`
	PriorityDistribution []BandCount     `json:"priorityDistribution"`
	ResolutionVelocity   []DayCount      `json:"resolutionVelocity"`
	CategoryTrends       []TrendPoint    `json:"categoryTrends"`
	Totals               Totals          `json:"totals"`
}

// Analytics summarizes the current queue as of now. Velocity and trends
// cover the last seven days, bucketed by UTC date.
func (s *Service) Analytics(ctx context.Context, now time.Time) (*Analytics, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(items, now), nil
}

func summarize(items []*FeedbackItem, now time.Time) *Analytics {
	since := now.Add(-analyticsWindow)

	var (
		byCategory [numCategories]int
		byStatus   = map[Status]int{}
		byBand     = map[string]int{}
		resolved   = map[string]int{}
		trends     = map[string]*[numCategories]int{}
		totals     Totals
	)

	for _, it := range items {
		byCategory[it.Category]++
		byStatus[it.Status]++
		byBand[band(it.Score)]++

		totals.Total++
		switch it.Status {
		case StatusPending:
			totals.Pending++
		case StatusInProgress:
			totals.InProgress++
		case StatusResolved:
			totals.Resolved++
		}

		if it.Status == StatusResolved && !it.UpdatedAt.Before(since) {
			resolved[day(it.UpdatedAt)]++
		}
		if !it.CreatedAt.Before(since) {
			d := day(it.CreatedAt)
			if trends[d] == nil {
				trends[d] = &[numCategories]int{}
			}
			trends[d][it.Category]++
		}
	}

	// Empty slices encode as [] rather than null.
	a := &Analytics{
		CategoryDistribution: []CategoryCount{},
		StatusDistribution:   []StatusCount{},
		PriorityDistribution: []BandCount{},
		ResolutionVelocity:   []DayCount{},
		CategoryTrends:       []TrendPoint{},
		Totals:               totals,
	}

	for _, c := range Categories {
		if byCategory[c] > 0 {
			a.CategoryDistribution = append(a.CategoryDistribution, CategoryCount{c, byCategory[c]})
		}
	}
	for _, st := range []Status{StatusPending, StatusInProgress, StatusResolved} {
		if byStatus[st] > 0 {
			a.StatusDistribution = append(a.StatusDistribution, StatusCount{st, byStatus[st]})
		}
	}
	for _, b := range []string{BandCritical, BandHigh, BandMedium, BandLow} {
		if byBand[b] > 0 {
			a.PriorityDistribution = append(a.PriorityDistribution, BandCount{b, byBand[b]})
		}
	}

	for _, d := range sortedKeys(resolved) {
		a.ResolutionVelocity = append(a.ResolutionVelocity, DayCount{d, resolved[d]})
	}
	for _, d := range sortedKeys(trends) {
		for _, c := range Categories {
			if n := trends[d][c]; n > 0 {
				a.CategoryTrends = append(a.CategoryTrends, TrendPoint{d, c, n})
			}
		}
	}

	return a
}

func band(score int) string {
	switch {
	case score >= bandImmediate:
		return BandCritical
	case score >= bandSoon:
		return BandHigh
	case score >= bandMedium:
		return BandMedium
	}
	return BandLow
}

func day(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
