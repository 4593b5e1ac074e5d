package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/textnorm"
)

// sep is an optional colon/dash between label and value. Plain whitespace
// is also accepted, but some separation is required so that a label never
// matches the first letters of a longer word.
const sep = `(?:\s*[:\-–]\s*|\s+)`

// notHebrew guards label edges against matching inside another word.
const notHebrew = `[^\p{Hebrew}]`

type labelRegexps struct {
	forward *regexp.Regexp // label, sep, value
	reverse *regexp.Regexp // value, sep, label
}

func compileLabel(label string) labelRegexps {
	q := regexp.QuoteMeta(label)
	return labelRegexps{
		forward: regexp.MustCompile(`(?:^|` + notHebrew + `)` + q + sep + `(.+)`),
		reverse: regexp.MustCompile(`^(.+?)` + sep + q + `(?:` + notHebrew + `|$)`),
	}
}

// Matcher finds label-anchored values in a line or its mirror. It is
// immutable after construction and safe for concurrent use.
type Matcher struct {
	patterns []FieldPattern
	compiled map[string]labelRegexps
}

// NewMatcher precompiles the forward and reverse expressions for every label
func NewMatcher(patterns []FieldPattern) *Matcher {
	m := &Matcher{
		patterns: patterns,
		compiled: make(map[string]labelRegexps),
	}
	for _, p := range patterns {
		for _, label := range p.Labels {
			if _, ok := m.compiled[label]; !ok {
				m.compiled[label] = compileLabel(label)
			}
		}
	}
	return m
}

// Patterns returns the field table the matcher was built with
func (m *Matcher) Patterns() []FieldPattern {
	return m.patterns
}

// Match tries label against line and its mirror. Attempts run forward on
// line, forward on mirrored, reverse on line, reverse on mirrored; the
// first non-empty capture wins. A value captured from the mirror is
// restored to reading order before it is returned.
func (m *Matcher) Match(line, mirrored, label string) (model.ExtractedField, bool) {
	if label == "" || line == "" {
		return model.ExtractedField{}, false
	}
	re, ok := m.compiled[label]
	if !ok {
		re = compileLabel(label)
	}

	attempts := []struct {
		re         *regexp.Regexp
		text       string
		provenance model.Provenance
	}{
		{re.forward, line, model.ProvenanceNatural},
		{re.forward, mirrored, model.ProvenanceMirrored},
		{re.reverse, line, model.ProvenanceNatural},
		{re.reverse, mirrored, model.ProvenanceMirrored},
	}

	for _, a := range attempts {
		sub := a.re.FindStringSubmatch(a.text)
		if sub == nil {
			continue
		}
		value := cleanValue(sub[1])
		if value == "" {
			continue
		}
		if a.provenance == model.ProvenanceMirrored {
			value = cleanValue(unmirrorValue(value))
		}
		return model.ExtractedField{
			Value:      value,
			Provenance: a.provenance,
			Label:      label,
		}, true
	}

	return model.ExtractedField{}, false
}

// MatchField tries each label of p in order and tags the result with p.Key
func (m *Matcher) MatchField(p FieldPattern, line, mirrored string) (model.ExtractedField, bool) {
	for _, label := range p.Labels {
		if f, ok := m.Match(line, mirrored, label); ok {
			f.Key = p.Key
			return f, true
		}
	}
	return model.ExtractedField{}, false
}

// unmirrorValue reverses a captured value once more, then re-reads it
// right-to-left so digit and Latin runs come back in their own order.
func unmirrorValue(v string) string {
	return textnorm.ReadRTL(textnorm.Mirror(v))
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	return strings.TrimRightFunc(v, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
}
