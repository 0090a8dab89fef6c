package triage

// Assessment is the pure triage verdict for a piece of text.
type Assessment struct {
	Category Category `json:"category"`
	Score    int      `json:"priority_score"`
	Reason   string   `json:"priority_reason"`

	// Signals names the scoring rules that fired. Informational only.
	Signals []string `json:"signals,omitempty"`
}

// Assess classifies and scores text under the given weights. Identical
// inputs always give identical outputs.
func Assess(text string, w Weights) Assessment {
	c := Classify(text)
	s, signals := score(normalize(text), c, w)
	return Assessment{
		Category: c,
		Score:    s,
		Reason:   Reason(c, s),
		Signals:  signals,
	}
}
