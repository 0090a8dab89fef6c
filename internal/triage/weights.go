package triage

import (
	"fmt"
	"strconv"
	"strings"
)

// Weights holds the base score for each category.
type Weights [numCategories]int

// DefaultWeights are used for any category whose configured weight is
// missing, non-numeric or zero.
var DefaultWeights = Weights{
	CategorySystemFailure: 100,
	CategoryBug:           75,
	CategoryUI:            50,
	CategoryFeature:       25,
}

// weightKeys are the settings keys that hold each category weight.
var weightKeys = [numCategories]string{
	CategorySystemFailure: "weight_system_failure",
	CategoryBug:           "weight_bug",
	CategoryUI:            "weight_ui",
	CategoryFeature:       "weight_feature",
}

// WeightKey returns the settings key for c.
func WeightKey(c Category) string { return weightKeys[c] }

// For returns the base weight for c, falling back to the default.
func (w Weights) For(c Category) int {
	if int(c) >= len(w) {
		return 0
	}
	if w[c] == 0 {
		return DefaultWeights[c]
	}
	return w[c]
}

// WeightsFromSettings builds Weights from raw settings values. Unknown keys
// are ignored; bad values fall back to defaults.
func WeightsFromSettings(settings map[string]string) Weights {
	w := DefaultWeights
	for _, c := range Categories {
		raw, ok := settings[weightKeys[c]]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n == 0 {
			continue
		}
		w[c] = n
	}
	return w
}

// DefaultSettings returns the settings rows a fresh store is seeded with.
func DefaultSettings() map[string]string {
	out := make(map[string]string, numCategories)
	for _, c := range Categories {
		out[weightKeys[c]] = strconv.Itoa(DefaultWeights[c])
	}
	return out
}

// validateSettings checks a settings patch: only weight keys, integer
// values in [0,100]. Values are normalized to their decimal form.
func validateSettings(patch map[string]string) (map[string]string, error) {
	known := make(map[string]struct{}, numCategories)
	for _, k := range weightKeys {
		known[k] = struct{}{}
	}

	out := make(map[string]string, len(patch))
	for k, v := range patch {
		if _, ok := known[k]; !ok {
			return nil, fmt.Errorf("%w: unknown setting %q", ErrValidation, k)
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: setting %s must be an integer, got %q", ErrValidation, k, v)
		}
		if n < 0 || n > MaxScore {
			return nil, fmt.Errorf("%w: setting %s must be 0..%d, got %d", ErrValidation, k, MaxScore, n)
		}
		out[k] = strconv.Itoa(n)
	}
	return out, nil
}
