package answer

import (
	"regexp"
	"strings"
)

var (
	parenRe    = regexp.MustCompile(`\s*\([^)]*\)\s*`)
	punctRe    = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
	spaceRunRe = regexp.MustCompile(`\s+`)
)

// JoinList joins items as prose: "A", "A and B", "A, B, and C".
// Empty items are skipped.
func JoinList(items []string) string {
	xs := make([]string, 0, len(items))
	for _, it := range items {
		if it != "" {
			xs = append(xs, it)
		}
	}
	switch len(xs) {
	case 0:
		return ""
	case 1:
		return xs[0]
	case 2:
		return xs[0] + " and " + xs[1]
	default:
		return strings.Join(xs[:len(xs)-1], ", ") + ", and " + xs[len(xs)-1]
	}
}

// StripParens removes parenthetical asides: "Cooking (weekends)" -> "Cooking".
func StripParens(s string) string {
	return strings.TrimSpace(parenRe.ReplaceAllString(s, " "))
}

// Normalize builds the comparison key used for dedupe.
func Normalize(s string) string {
	s = strings.ToLower(StripParens(s))
	s = punctRe.ReplaceAllString(s, "")
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// DedupeList strips asides from each entry and keeps the first entry for
// every normalized key, in original order and casing.
func DedupeList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		x := StripParens(it)
		if x == "" {
			continue
		}
		key := Normalize(x)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, x)
	}
	return out
}
