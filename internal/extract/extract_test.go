package extract

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/textnorm"
)

func TestMatcher_NaturalLine(t *testing.T) {
	m := NewMatcher(DefaultPatterns())
	line := textnorm.Normalize("גוש: 6941")

	f, ok := m.Match(line, textnorm.Mirror(line), "גוש")
	if !ok {
		t.Fatal("expected a match")
	}
	if f.Value != "6941" {
		t.Errorf("value = %q, want %q", f.Value, "6941")
	}
	if f.Provenance != model.ProvenanceNatural {
		t.Errorf("provenance = %q, want natural", f.Provenance)
	}
}

func TestMatcher_MirroredLineIsUnreversed(t *testing.T) {
	m := NewMatcher(DefaultPatterns())
	line := textnorm.Mirror("כתובת: רחוב הרצל 5")

	f, ok := m.Match(line, textnorm.Mirror(line), "כתובת")
	if !ok {
		t.Fatal("expected a match")
	}
	if f.Provenance != model.ProvenanceMirrored {
		t.Errorf("provenance = %q, want mirrored", f.Provenance)
	}
	if f.Value != "רחוב הרצל 5" {
		t.Errorf("value = %q, want %q", f.Value, "רחוב הרצל 5")
	}
}

func TestMatcher_VisualOrderKeepsDigits(t *testing.T) {
	// Hebrew reversed, digits left in LTR order, as most extractors emit it
	m := NewMatcher(DefaultPatterns())
	line := "15 לצרה בוחר :תבותכ"

	f, ok := m.Match(line, textnorm.Mirror(line), "כתובת")
	if !ok {
		t.Fatal("expected a match")
	}
	if f.Value != "רחוב הרצל 15" {
		t.Errorf("value = %q, want %q", f.Value, "רחוב הרצל 15")
	}
}

func TestMatcher_Cases(t *testing.T) {
	m := NewMatcher(DefaultPatterns())

	tests := []struct {
		name       string
		line       string
		label      string
		wantOK     bool
		want       string
		provenance model.Provenance
	}{
		{"dash separator", "חלקה - 25", "חלקה", true, "25", model.ProvenanceNatural},
		{"space separator", "חלקה 25", "חלקה", true, "25", model.ProvenanceNatural},
		{"no space after colon", "גוש:6941", "גוש", true, "6941", model.ProvenanceNatural},
		{"trailing periods stripped", "גוש: 6941..", "גוש", true, "6941", model.ProvenanceNatural},
		{"value before label", "6941 :גוש", "גוש", true, "6941", model.ProvenanceNatural},
		{"multi-word label", "שטח רשום: 512.40 מ\"ר", "שטח רשום", true, "512.40 מ\"ר", model.ProvenanceNatural},
		{"label inside word", "בגושים רבים", "גוש", false, "", ""},
		{"label alone", "גוש", "גוש", false, "", ""},
		{"label with empty value", "גוש: .", "גוש", false, "", ""},
		{"no label", "שלום עולם", "גוש", false, "", ""},
		{"empty line", "", "גוש", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := textnorm.Normalize(tt.line)
			f, ok := m.Match(line, textnorm.Mirror(line), tt.label)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (value %q)", ok, tt.wantOK, f.Value)
			}
			if !ok {
				return
			}
			if f.Value != tt.want {
				t.Errorf("value = %q, want %q", f.Value, tt.want)
			}
			if f.Provenance != tt.provenance {
				t.Errorf("provenance = %q, want %q", f.Provenance, tt.provenance)
			}
		})
	}
}

func TestMatcher_NaturalWinsTie(t *testing.T) {
	// The label reads forward in both the line and its mirror
	m := NewMatcher(DefaultPatterns())
	line := "גוש: 100 שוג"

	f, ok := m.Match(line, textnorm.Mirror(line), "גוש")
	if !ok {
		t.Fatal("expected a match")
	}
	if f.Provenance != model.ProvenanceNatural {
		t.Errorf("provenance = %q, want natural", f.Provenance)
	}
}

func TestMatchField_LabelOrder(t *testing.T) {
	m := NewMatcher(DefaultPatterns())
	p := FieldPattern{Key: model.FieldAddress, Labels: []string{"כתובת הנכס", "כתובת"}}
	line := "כתובת הנכס: הרצל 5"

	f, ok := m.MatchField(p, line, textnorm.Mirror(line))
	if !ok {
		t.Fatal("expected a match")
	}
	if f.Key != model.FieldAddress || f.Label != "כתובת הנכס" || f.Value != "הרצל 5" {
		t.Errorf("got %+v", f)
	}
}

func TestSession_EndToEnd(t *testing.T) {
	s := NewSession(nil)
	pages := []string{
		"דוח אפס\nגוש: 100\nחלקה: 25\n",
		"עמוד שני ללא שדות",
	}

	got := s.Extract(pages, 0)
	want := model.ExtractionResult{"block": "100", "plot": "25"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
	if _, ok := got[model.FieldAddress]; ok {
		t.Error("address should be absent")
	}
	if _, ok := got[model.FieldRegisteredArea]; ok {
		t.Error("registered_area should be absent")
	}
}

func TestSession_FirstMatchWins(t *testing.T) {
	s := NewSession(nil)
	pages := []string{
		"חלקה: 11",
		"חלקה: 22",
	}

	fields := s.Fields(pages, 0)
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d: %+v", len(fields), fields)
	}
	if fields[0].Value != "11" || fields[0].Page != 1 || fields[0].Line != 1 {
		t.Errorf("got %+v, want plot=11 from page 1", fields[0])
	}
}

func TestSession_MaxPages(t *testing.T) {
	s := NewSession(nil)
	pages := []string{"שלום", "גוש: 5"}

	if got := s.Extract(pages, 1); len(got) != 0 {
		t.Errorf("expected no fields within first page, got %v", got)
	}
	if got := s.Extract(pages, 2); got[model.FieldBlock] != "5" {
		t.Errorf("expected block from page 2, got %v", got)
	}
}

func TestSession_EmptyDocument(t *testing.T) {
	s := NewSession(nil)
	got := s.Extract(nil, 10)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", got)
	}
}

func TestSession_ParallelMatchesSequential(t *testing.T) {
	s := NewSession(nil, WithWorkers(3))
	pages := []string{
		"כותרת",
		"חלקה: 7\nגוש: 300",
		"גוש: 999\nכתובת: הרצל 1",
		textnorm.ReadRTL("שטח רשום: 120"),
		"חלקה: 8",
	}

	seq := s.Fields(pages, 0)
	par, err := s.ExtractParallel(context.Background(), pages, 0)
	if err != nil {
		t.Fatalf("ExtractParallel() error = %v", err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Errorf("parallel result differs\nseq: %+v\npar: %+v", seq, par)
	}

	result := ToResult(par)
	if result[model.FieldBlock] != "300" || result[model.FieldPlot] != "7" {
		t.Errorf("unexpected result %v", result)
	}
	if result[model.FieldRegisteredArea] != "120" {
		t.Errorf("registered_area = %q, want 120", result[model.FieldRegisteredArea])
	}
}

func TestSession_ParallelCancelled(t *testing.T) {
	s := NewSession(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.ExtractParallel(ctx, []string{"גוש: 1"}, 0); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestDefaultPatterns_ReturnsCopy(t *testing.T) {
	p := DefaultPatterns()
	p[0].Labels[0] = "changed"
	if DefaultPatterns()[0].Labels[0] == "changed" {
		t.Error("DefaultPatterns must not expose the shared table")
	}
}

func TestResolveNumerals(t *testing.T) {
	tests := []struct {
		name    string
		context string
		want    model.NumeralFallback
	}{
		{"word floors, digit units", `תוספת שלוש קומות ו-2 יח"ד`, model.NumeralFallback{Floors: 3, Units: 2}},
		{"digit floors", "הוספת 4 קומות מעל הבניין", model.NumeralFallback{Floors: 4}},
		{"digits after floor word", "קומות: 6", model.NumeralFallback{Floors: 6}},
		{"feminine compound", "תוספת אחת עשרה קומות", model.NumeralFallback{Floors: 11}},
		{"masculine word", "שני קומות", model.NumeralFallback{Floors: 2}},
		{"word after floor word", "תוספת קומה אחת", model.NumeralFallback{Floors: 1}},
		{"digits beat words", "שלוש קומות, סה\"כ 5 קומות", model.NumeralFallback{Floors: 5}},
		{"units phrase", "12 יחידות דיור חדשות", model.NumeralFallback{Units: 12}},
		{"units gershayim", "8 יח״ד", model.NumeralFallback{Units: 8}},
		{"units geresh", "יח' דיור: 14", model.NumeralFallback{Units: 14}},
		{"word outside table", "עשרים קומות", model.NumeralFallback{}},
		{"feminine teen outside table", "תוספת שלוש עשרה קומות", model.NumeralFallback{}},
		{"masculine teen outside table", "שלושה עשר קומות", model.NumeralFallback{}},
		{"fifteen", "חמש עשרה קומות", model.NumeralFallback{}},
		{"hyphenated teen", "שלוש-עשרה קומות", model.NumeralFallback{}},
		{"tens with conjunction", "עשרים ושלוש קומות", model.NumeralFallback{}},
		{"teen after floor word", "קומות שלוש עשרה", model.NumeralFallback{}},
		{"conjunction before table word", "ושתים עשרה קומות", model.NumeralFallback{Floors: 12}},
		{"later phrase resolves", "קומות רבות ועוד ארבע קומות", model.NumeralFallback{Floors: 4}},
		{"decimal floors", "תוספת 2.5 קומות", model.NumeralFallback{}},
		{"decimal after floor word", "קומות: 2.5", model.NumeralFallback{}},
		{"decimal skipped for later whole", "2.5 קומות ועוד 3 קומות", model.NumeralFallback{Floors: 3}},
		{"decimal units", "1.5 יח\"ד", model.NumeralFallback{}},
		{"nothing", "אין תוספות", model.NumeralFallback{}},
		{"empty", "", model.NumeralFallback{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveNumerals(tt.context); got != tt.want {
				t.Errorf("ResolveNumerals(%q) = %+v, want %+v", tt.context, got, tt.want)
			}
		})
	}
}

func TestLoadPatterns(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	good := write("good.yaml", "- key: block\n  labels: [\"גוש מס'\", גוש]\n- key: owner\n  labels: [בעלים]\n")
	patterns, err := LoadPatterns(good)
	if err != nil {
		t.Fatalf("LoadPatterns() error = %v", err)
	}
	s := NewSession(patterns)
	got := s.Extract([]string{"גוש מס': 6941\nבעלים: ישראל ישראלי"}, 0)
	want := model.ExtractionResult{"block": "6941", "owner": "ישראל ישראלי"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}

	bad := map[string]string{
		"empty.yaml":    "[]\n",
		"dup.yaml":      "- key: a\n  labels: [x]\n- key: a\n  labels: [y]\n",
		"nolabels.yaml": "- key: a\n  labels: []\n",
		"blank.yaml":    "- key: a\n  labels: [\" \"]\n",
		"notyaml.yaml":  "key: [",
	}
	for name, content := range bad {
		if _, err := LoadPatterns(write(name, content)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := LoadPatterns(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
