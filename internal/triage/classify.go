package triage

import "strings"

// categoryTriggers are the phrases that vote for each category. A phrase
// votes with its word count, so "data loss" outweighs "error".
var categoryTriggers = [numCategories][]string{
	CategorySystemFailure: {
		"crash", "crashes", "down", "outage", "unavailable",
		"timeout", "timed out", "latency", "slow", "hang",
		"cannot access", "cannot login", "login failed",
		"server error", "500", "503",
		"fatal", "critical", "emergency",
		"system failure", "not working at all",
		"completely broken", "data loss", "corruption",
		"memory leak", "unresponsive",
	},
	CategoryBug: {
		"bug", "error", "broken", "not working",
		"issue", "problem", "fail", "failed",
		"incorrect", "unexpected", "glitch",
		"malfunction", "defect", "regression",
		"doesn't work", "stopped working",
		"freezes",
	},
	CategoryUI: {
		"ui", "interface", "design", "layout",
		"button", "display", "visual",
		"screen", "alignment", "responsive",
		"mobile", "looks", "appearance",
		"confusing", "unclear", "ux",
		"navigation", "typo",
	},
	CategoryFeature: {
		"feature", "request", "add", "want",
		"would be nice", "suggestion",
		"could you", "implement",
		"enhance", "improve",
		"new", "additional",
		"please add", "wish",
		"would love", "missing",
		"integrate", "support for",
	},
}

// Classify maps free text to a category. It is pure and deterministic.
//
// Any system-failure trigger wins outright. Otherwise the category with the
// most trigger words wins, ties going to the more severe category, and text
// with no triggers at all is a Feature.
func Classify(text string) Category {
	votes := categoryVotes(normalize(text))

	if votes[CategorySystemFailure] > 0 {
		return CategorySystemFailure
	}

	best := CategoryFeature
	bestVotes := 0
	for _, c := range Categories {
		if votes[c] > bestVotes {
			best, bestVotes = c, votes[c]
		}
	}
	return best
}

func categoryVotes(text string) [numCategories]int {
	var votes [numCategories]int
	for _, c := range Categories {
		for _, trigger := range categoryTriggers[c] {
			if strings.Contains(text, trigger) {
				votes[c] += len(strings.Split(trigger, " "))
			}
		}
	}
	return votes
}

func normalize(text string) string {
	return strings.ToLower(text)
}
