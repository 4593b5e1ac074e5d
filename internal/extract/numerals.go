package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ppiankov/nesach/internal/model"
	"github.com/ppiankov/nesach/internal/textnorm"
)

// hebrewNumbers covers 1-12 in both genders, with the common defective
// spellings.
var hebrewNumbers = map[string]int{
	"אחד": 1, "אחת": 1,
	"שניים": 2, "שנים": 2, "שני": 2, "שתיים": 2, "שתים": 2, "שתי": 2,
	"שלושה": 3, "שלשה": 3, "שלוש": 3, "שלש": 3,
	"ארבעה": 4, "ארבע": 4,
	"חמישה": 5, "חמשה": 5, "חמש": 5,
	"שישה": 6, "ששה": 6, "שש": 6,
	"שבעה": 7, "שבע": 7,
	"שמונה": 8,
	"תשעה":  9, "תשע": 9,
	"עשרה": 10, "עשר": 10,
	"אחד עשר": 11, "אחת עשרה": 11,
	"שנים עשר": 12, "שניים עשר": 12, "שתים עשרה": 12, "שתיים עשרה": 12,
}

// numberPrefixes are tens and larger that turn a following table word into
// a compound outside the table ("עשרים ושלוש").
var numberPrefixes = map[string]bool{
	"עשרים": true, "שלושים": true, "שלשים": true, "ארבעים": true,
	"חמישים": true, "חמשים": true, "שישים": true, "ששים": true,
	"שבעים": true, "שמונים": true, "תשעים": true,
	"מאה": true, "מאות": true, "אלף": true, "אלפים": true,
}

const (
	floorWord  = `קומ(?:ה|ות)`
	unitPhrase = `(?:יח"ד|יח״ד|יח'\s*דיור|יח׳\s*דיור|יחידות\s+דיור|יחידות\s+מגורים)`
	// number is a whole digit token; decimals are captured so they fail to
	// parse instead of leaving their fractional digits behind
	number   = `(\d+(?:[.,]\d+)?)`
	numStart = `(?:^|[^\d.,])`
	hebWord  = `[\p{Hebrew}\-]+`
)

// Resolver re-scans narrative text for floor and unit counts
type Resolver struct {
	floorDigitsBefore *regexp.Regexp
	floorDigitsAfter  *regexp.Regexp
	floorWordBefore   *regexp.Regexp
	floorWordAfter    *regexp.Regexp
	unitsBefore       *regexp.Regexp
	unitsAfter        *regexp.Regexp
	words             map[string]int
}

// NewResolver compiles the numeral patterns
func NewResolver() *Resolver {
	return &Resolver{
		floorDigitsBefore: regexp.MustCompile(numStart + number + `\s*` + floorWord),
		floorDigitsAfter:  regexp.MustCompile(floorWord + `\s*[:\-]?\s*` + number),
		floorWordBefore:   regexp.MustCompile(`(?:^|[^\p{Hebrew}\-])((?:` + hebWord + `\s+)+?)` + floorWord),
		floorWordAfter:    regexp.MustCompile(floorWord + `((?:\s+` + hebWord + `)+)`),
		unitsBefore:       regexp.MustCompile(numStart + number + `\s*` + unitPhrase),
		unitsAfter:        regexp.MustCompile(unitPhrase + `\s*[:\-]?\s*` + number),
		words:             hebrewNumbers,
	}
}

var defaultResolver = NewResolver()

// ResolveNumerals extracts floor and residential-unit counts from context
// using the built-in patterns. Anything not found is 0.
func ResolveNumerals(context string) model.NumeralFallback {
	return defaultResolver.Resolve(context)
}

// Resolve extracts floor and residential-unit counts from context
func (r *Resolver) Resolve(context string) model.NumeralFallback {
	text := textnorm.Normalize(context)
	if text == "" {
		return model.NumeralFallback{}
	}
	return model.NumeralFallback{
		Floors: r.floors(text),
		Units:  firstInt(text, r.unitsBefore, r.unitsAfter),
	}
}

func (r *Resolver) floors(text string) int {
	if n := firstInt(text, r.floorDigitsBefore, r.floorDigitsAfter); n > 0 {
		return n
	}
	for _, m := range r.floorWordBefore.FindAllStringSubmatch(text, -1) {
		if n := r.trailingNumber(splitWords(m[1])); n > 0 {
			return n
		}
	}
	for _, m := range r.floorWordAfter.FindAllStringSubmatch(text, -1) {
		if n := r.leadingNumber(splitWords(m[1])); n > 0 {
			return n
		}
	}
	return 0
}

// trailingNumber reads the number word or two-word compound that ends words.
// A number word directly before it means the phrase is a larger compound,
// which is outside the table.
func (r *Resolver) trailingNumber(words []string) int {
	for _, size := range []int{2, 1} {
		if len(words) < size {
			continue
		}
		i := len(words) - size
		n := r.lookup(strings.Join(words[i:], " "))
		if n == 0 {
			continue
		}
		if i > 0 && r.isNumberWord(words[i-1]) {
			return 0
		}
		return n
	}
	return 0
}

// leadingNumber is trailingNumber for words that follow the floor word
func (r *Resolver) leadingNumber(words []string) int {
	for _, size := range []int{2, 1} {
		if len(words) < size {
			continue
		}
		n := r.lookup(strings.Join(words[:size], " "))
		if n == 0 {
			continue
		}
		if len(words) > size && r.isNumberWord(words[size]) {
			return 0
		}
		return n
	}
	return 0
}

// splitWords splits on whitespace and hyphens, so "שלוש-עשרה" reads as two
// words and "ו-שלוש" leaves a bare conjunction
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
}

// lookup resolves a table word, allowing the conjunction prefix ו
func (r *Resolver) lookup(w string) int {
	if n, ok := r.words[w]; ok {
		return n
	}
	if rest, ok := strings.CutPrefix(w, "ו"); ok {
		return r.words[rest]
	}
	return 0
}

func (r *Resolver) isNumberWord(w string) bool {
	if r.lookup(w) > 0 {
		return true
	}
	return numberPrefixes[w] || numberPrefixes[strings.TrimPrefix(w, "ו")]
}

// firstInt returns the first positive whole-number capture from the
// expressions in order, or 0. Decimal captures are skipped.
func firstInt(text string, exprs ...*regexp.Regexp) int {
	for _, re := range exprs {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}
