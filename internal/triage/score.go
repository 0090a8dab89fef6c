package triage

import "strings"

const (
	// MinScore and MaxScore bound every priority score.
	MinScore = 0
	MaxScore = 100

	// SystemFailureFloor is the lowest score a system failure can get.
	SystemFailureFloor = 80

	// LowerPriorityStep is how far a manual lower-priority moves the score.
	LowerPriorityStep = 15
)

// Score bands used for reasons and analytics.
const (
	bandImmediate = 80
	bandSoon      = 60
	bandMedium    = 40
)

// Matcher decides whether a scoring rule applies to normalized text.
type Matcher interface {
	Match(text string) bool
}

// AnyOf matches when any of its phrases is a substring of the text.
type AnyOf []string

// Match implements Matcher.
func (a AnyOf) Match(text string) bool {
	for _, p := range a {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// Rule adjusts the running score when its matcher fires.
type Rule struct {
	Name  string
	Match Matcher
	Delta int
}

// urgencyRules and impactRules are evaluated in order and are cumulative.
var (
	urgencyRules = []Rule{
		{"urgent", AnyOf{"urgent", "asap", "immediately", "critical", "emergency"}, 25},
		{"blocking", AnyOf{"blocking", "blocker", "cannot proceed", "stuck"}, 20},
		{"production", AnyOf{"production", "live", "customers affected"}, 20},
		{"widespread", AnyOf{"multiple users", "everyone", "all users"}, 15},
		{"data_risk", AnyOf{"data loss", "security", "breach"}, 30},
	}

	impactRules = []Rule{
		{"workaround", AnyOf{"workaround", "temporary fix"}, -10},
		{"minor", AnyOf{"minor", "small", "slight"}, -15},
		{"major", AnyOf{"major", "significant", "severe"}, 10},
	}
)

var categoryReasons = [numCategories]string{
	CategorySystemFailure: "Critical system issue detected.",
	CategoryBug:           "Functional bug affecting users.",
	CategoryUI:            "User interface issue.",
	CategoryFeature:       "Feature enhancement request.",
}

// Score computes the priority score for text already classified as c, and
// the human-readable reason for it. It is pure and deterministic.
func Score(text string, c Category, w Weights) (int, string) {
	score, _ := score(normalize(text), c, w)
	return score, Reason(c, score)
}

func score(text string, c Category, w Weights) (int, []string) {
	s := w.For(c)

	var fired []string
	for _, rules := range [][]Rule{urgencyRules, impactRules} {
		for _, r := range rules {
			if r.Match.Match(text) {
				s += r.Delta
				fired = append(fired, r.Name)
			}
		}
	}

	if c == CategorySystemFailure {
		s = max(s, SystemFailureFloor)
	}

	return clamp(s), fired
}

// Reason renders the explanation for a (category, score) pair. It carries
// nothing beyond those two values.
func Reason(c Category, score int) string {
	var band string
	switch {
	case score >= bandImmediate:
		band = "High priority — address immediately."
	case score >= bandSoon:
		band = "Important — schedule soon."
	default:
		band = "Lower priority — review when possible."
	}

	lead := categoryReasons[CategoryFeature]
	if int(c) < len(categoryReasons) {
		lead = categoryReasons[c]
	}
	return lead + " " + band
}

// lowered returns the score after one manual lower-priority step.
func lowered(score int) int {
	return max(MinScore, score-LowerPriorityStep)
}

func clamp(s int) int {
	return min(MaxScore, max(MinScore, s))
}
