package textnorm

import "unicode"

// Hebrew block bounds as used by the source documents (U+0590..U+05FF).
const (
	hebrewFirst = '\u0590'
	hebrewLast  = '\u05ff'
)

// IsHebrew reports whether r falls inside the Hebrew Unicode block.
func IsHebrew(r rune) bool {
	return r >= hebrewFirst && r <= hebrewLast
}

// HasHebrew reports whether text contains at least one Hebrew-block rune.
func HasHebrew(text string) bool {
	for _, r := range text {
		if IsHebrew(r) {
			return true
		}
	}
	return false
}

// HebrewRatio returns the share of letters in text that are Hebrew. Text
// with no letters yields 0.
func HebrewRatio(text string) float64 {
	var letters, hebrew int
	for _, r := range text {
		switch {
		case IsHebrew(r):
			letters++
			hebrew++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(hebrew) / float64(letters)
}
