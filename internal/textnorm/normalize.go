// Package textnorm canonicalizes lines of text pulled out of PDF pages.
//
// PDF renderers mix right-to-left Hebrew runs with left-to-right layout, so a
// line may arrive in visual order, logical order, or some mix of the two.
// The helpers here only normalize and reverse; deciding which form to trust
// is left to the extract package.
package textnorm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	lrm = '\u200e' // LEFT-TO-RIGHT MARK
	rlm = '\u200f' // RIGHT-TO-LEFT MARK
)

// Normalize returns the canonical form of a raw line: bidi marks removed,
// NFKC applied, surrounding whitespace trimmed.
//
// Marks are dropped before NFKC so that a mark sitting between a base letter
// and its combining mark cannot leave a sequence that a second pass would
// compose. That keeps Normalize idempotent.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.Map(func(r rune) rune {
		if r == lrm || r == rlm {
			return -1
		}
		return r
	}, raw)
	s = norm.NFKC.String(s)
	return strings.TrimSpace(s)
}

// SplitLines splits page text into physical lines. CRLF and lone CR are
// treated as line breaks; form feeds left by pdftotext are dropped.
func SplitLines(page string) []string {
	if page == "" {
		return nil
	}
	page = strings.ReplaceAll(page, "\r\n", "\n")
	page = strings.ReplaceAll(page, "\r", "\n")
	page = strings.ReplaceAll(page, "\f", "")
	return strings.Split(page, "\n")
}
