package triage

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed samples.yaml
var defaultSamplesYAML []byte

type sampleFile struct {
	Samples []ImportRecord `yaml:"samples"`
}

// ParseSamples decodes a YAML sample set. Records with no text are rejected
// so a sample load always imports every record it is given.
func ParseSamples(data []byte) ([]ImportRecord, error) {
	var f sampleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode samples: %w", err)
	}
	if len(f.Samples) == 0 {
		return nil, fmt.Errorf("decode samples: no samples defined")
	}
	for i, rec := range f.Samples {
		if rec.text() == "" {
			return nil, fmt.Errorf("decode samples: sample %d has no text", i)
		}
	}
	return f.Samples, nil
}

// LoadSamplesFile reads a sample set from disk.
func LoadSamplesFile(path string) ([]ImportRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read samples file: %w", err)
	}
	return ParseSamples(data)
}

// DefaultSamples returns the built-in sample set.
func DefaultSamples() []ImportRecord {
	recs, err := ParseSamples(defaultSamplesYAML)
	if err != nil {
		panic(err) // embedded file is part of the build
	}
	return recs
}

// text is the string a record is triaged on.
func (r ImportRecord) text() string {
	return strings.TrimSpace(r.Title + " " + r.Description + " " + r.Content)
}
