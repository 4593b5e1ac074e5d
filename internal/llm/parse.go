package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ppiankov/nesach/internal/model"
)

// ErrNoJSON is returned when a reply holds no JSON object at all
var ErrNoJSON = errors.New("no json object in model reply")

const enrichmentSchemaJSON = `{
  "type": "object",
  "required": ["new_floors_count", "new_residential_units", "additions_list_he", "summary_he"],
  "properties": {
    "new_floors_count": {"type": "integer", "minimum": 0},
    "new_residential_units": {"type": "integer", "minimum": 0},
    "additions_list_he": {"type": "array", "items": {"type": "string"}},
    "summary_he": {"type": "string"}
  }
}`

var enrichmentSchema = mustCompileSchema("enrichment.json", enrichmentSchemaJSON)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add schema: %v", err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

// ParseEnrichment recovers the enrichment object from a model reply. The
// reply may wrap the object in prose or code fences. Missing or malformed
// numbers become 0; schema violations are returned as warnings, not errors.
func ParseEnrichment(reply string) (model.Enrichment, []string, error) {
	obj, raw, err := findObject(reply)
	if err != nil {
		return model.Enrichment{}, nil, err
	}

	var warnings []string
	if err := validateAgainstSchema(raw); err != nil {
		warnings = append(warnings, err.Error())
	}

	return model.Enrichment{
		NewFloorsCount:      toCount(obj["new_floors_count"]),
		NewResidentialUnits: toCount(obj["new_residential_units"]),
		AdditionsListHe:     toStrings(obj["additions_list_he"]),
		SummaryHe:           toString(obj["summary_he"]),
	}, warnings, nil
}

// ApplyFallback fills numeric fields the model left at 0 with non-zero
// counts recovered from the text
func ApplyFallback(e *model.Enrichment, fb model.NumeralFallback) {
	if e.NewFloorsCount == 0 && fb.Floors > 0 {
		e.NewFloorsCount = fb.Floors
	}
	if e.NewResidentialUnits == 0 && fb.Units > 0 {
		e.NewResidentialUnits = fb.Units
	}
}

func validateAgainstSchema(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode for validation: %w", err)
	}
	if err := enrichmentSchema.Validate(v); err != nil {
		return fmt.Errorf("reply does not match schema: %w", err)
	}
	return nil
}

// findObject tries the whole reply first, then every balanced {...} span in
// order until one decodes as an object
func findObject(reply string) (map[string]any, []byte, error) {
	s := strings.TrimSpace(stripFences(reply))
	if obj, ok := decodeObject(s); ok {
		return obj, []byte(s), nil
	}

	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > start {
			candidate := s[start : end+1]
			if obj, ok := decodeObject(candidate); ok {
				return obj, []byte(candidate), nil
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, nil, ErrNoJSON
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// matchBrace returns the index of the brace closing s[start], skipping
// braces inside string literals, or -1
func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func toCount(v any) int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if f <= 0 || math.IsNaN(f) || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func toStrings(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(x) == "" {
			return []string{}
		}
		return []string{strings.TrimSpace(x)}
	default:
		return []string{}
	}
}

func toString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
