// Package doi normalizes and extracts Digital Object Identifiers.
package doi

import (
	"regexp"
	"strings"
)

// pattern matches 10.<registrant>/<suffix> where the registrant has 4-9 digits.
var pattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// prefixes are stripped (case-insensitively) by Normalize.
var prefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// Normalize returns the canonical form used as a map and store key:
// surrounding whitespace and resolver prefixes removed, lowercased.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			lower = strings.TrimSpace(lower[len(p):])
			break
		}
	}
	return lower
}

// IsValid performs a shallow syntactic check: "10." prefix and a non-empty suffix.
func IsValid(s string) bool {
	if len(s) < 10 || !strings.HasPrefix(s, "10.") {
		return false
	}
	slash := strings.Index(s, "/")
	return slash != -1 && slash < len(s)-1
}

// Find returns the first plausible DOI in free text, normalized, or "".
func Find(text string) string {
	for _, m := range pattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:)")
		if IsValid(m) {
			return Normalize(m)
		}
	}
	return ""
}

// NormalizeAll normalizes, drops empties and duplicates, and keeps first-seen order.
func NormalizeAll(dois []string) []string {
	seen := make(map[string]bool, len(dois))
	out := make([]string, 0, len(dois))
	for _, d := range dois {
		n := Normalize(d)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
