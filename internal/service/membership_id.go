package service

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// ExtractMembershipID returns the first standalone run of 9 or 10 digits in
// text. The run must be bounded on both sides by the text edge, whitespace
// or punctuation, so "ID12345678901" and "123456789abc" yield nothing.
func ExtractMembershipID(text string) (string, bool) {
	for _, loc := range digitRun.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if n := end - start; n != 9 && n != 10 {
			continue
		}
		if start > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:start])
			if !isIDBoundary(r) {
				continue
			}
		}
		if end < len(text) {
			r, _ := utf8.DecodeRuneInString(text[end:])
			if !isIDBoundary(r) {
				continue
			}
		}
		return text[start:end], true
	}
	return "", false
}

func isIDBoundary(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}
