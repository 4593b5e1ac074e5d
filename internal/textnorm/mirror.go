package textnorm

import (
	"slices"
	"unicode"
)

// Mirror reverses the code points of line end to end. It is a pure
// reversal, so Mirror(Mirror(s)) == s for any valid UTF-8 string.
func Mirror(line string) string {
	runes := []rune(line)
	slices.Reverse(runes)
	return string(runes)
}

// ReadRTL re-reads a string that is in extractor (visual) order as a
// right-to-left line: rune order is reversed, but runs of left-to-right
// characters (digits, Latin letters and the punctuation joining them, such as
// "12.5" or "A/3") keep their internal order.
func ReadRTL(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))

	for i := len(runes) - 1; i >= 0; {
		if !isLTRAt(runes, i) {
			out = append(out, runes[i])
			i--
			continue
		}
		j := i
		for j > 0 && isLTRAt(runes, j-1) {
			j--
		}
		out = append(out, runes[j:i+1]...)
		i = j - 1
	}

	return string(out)
}

// isLTRAt reports whether runes[i] belongs to a left-to-right run. Joining
// punctuation only counts when it sits between two strong LTR characters.
func isLTRAt(runes []rune, i int) bool {
	r := runes[i]
	if isStrongLTR(r) {
		return true
	}
	if !isJoiner(r) || i == 0 || i == len(runes)-1 {
		return false
	}
	return isStrongLTR(runes[i-1]) && isStrongLTR(runes[i+1])
}

func isStrongLTR(r rune) bool {
	return unicode.IsDigit(r) || unicode.Is(unicode.Latin, r)
}

func isJoiner(r rune) bool {
	switch r {
	case '.', ',', '/', '-', ':', '\'':
		return true
	}
	return false
}
