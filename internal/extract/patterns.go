// Package extract recovers labeled field values from Hebrew document text
// whose reading order may have been reversed by the PDF text extractor.
package extract

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/nesach/internal/model"
)

// FieldPattern maps a field key to the labels that may introduce its value.
// Labels are tried in listed order.
type FieldPattern struct {
	Key    string   `json:"key" yaml:"key"`
	Labels []string `json:"labels" yaml:"labels"`
}

// Longer labels come before their prefixes ("כתובת הנכס" before "כתובת")
// so the shorter label never swallows the rest of the longer one.
var defaultPatterns = []FieldPattern{
	{Key: model.FieldBlock, Labels: []string{"גוש"}},
	{Key: model.FieldPlot, Labels: []string{"חלקה"}},
	{Key: model.FieldRegisteredArea, Labels: []string{"שטח רשום", `שטח במ"ר`, "שטח"}},
	{Key: model.FieldAddress, Labels: []string{"כתובת הנכס", "כתובת"}},
	{Key: model.FieldProjectAdditions, Labels: []string{"תוספות בפרויקט", "תוספות"}},
}

// DefaultPatterns returns a copy of the built-in field table
func DefaultPatterns() []FieldPattern {
	out := make([]FieldPattern, len(defaultPatterns))
	for i, p := range defaultPatterns {
		out[i] = FieldPattern{Key: p.Key, Labels: slices.Clone(p.Labels)}
	}
	return out
}

// LoadPatterns reads a field table from a YAML sequence of {key, labels}
// entries. Keys must be unique and every key needs at least one label.
func LoadPatterns(path string) ([]FieldPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patterns: %w", err)
	}
	var patterns []FieldPattern
	if err := yaml.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("parse patterns %s: %w", path, err)
	}
	if err := checkPatterns(patterns); err != nil {
		return nil, fmt.Errorf("patterns %s: %w", path, err)
	}
	return patterns, nil
}

func checkPatterns(patterns []FieldPattern) error {
	if len(patterns) == 0 {
		return fmt.Errorf("no fields defined")
	}
	seen := make(map[string]bool, len(patterns))
	for i, p := range patterns {
		if p.Key == "" {
			return fmt.Errorf("field %d has no key", i+1)
		}
		if seen[p.Key] {
			return fmt.Errorf("duplicate key %q", p.Key)
		}
		seen[p.Key] = true
		if len(p.Labels) == 0 {
			return fmt.Errorf("field %q has no labels", p.Key)
		}
		for _, l := range p.Labels {
			if strings.TrimSpace(l) == "" {
				return fmt.Errorf("field %q has an empty label", p.Key)
			}
		}
	}
	return nil
}
