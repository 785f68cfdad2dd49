// Package identity holds the single normalization boundary for user names.
package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize returns the canonical form of a user name: NFC, trimmed, case folded.
// Every membership check and allowlist mutation must compare normalized names.
func Normalize(raw string) string {
	s := strings.TrimSpace(norm.NFC.String(raw))
	if s == "" {
		return ""
	}
	return folder.String(s)
}

// NormalizeAll normalizes names, dropping empty results and duplicates while
// keeping first-seen order.
func NormalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		n := Normalize(r)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
