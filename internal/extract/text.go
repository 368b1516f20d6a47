package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var pronouns = []string{"he", "him", "his", "she", "her", "hers"}

// cleanText applies NFKC normalization and collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// tokenSet splits lower-cased text into bare word tokens.
func tokenSet(lowered string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(lowered) {
		set[tok] = true
	}
	return set
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsPronoun(tokens map[string]bool) bool {
	for _, p := range pronouns {
		if tokens[p] {
			return true
		}
	}
	return false
}

// containsWords reports whether needle occurs in haystack on word boundaries.
// Both arguments are token lists.
func containsWords(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
