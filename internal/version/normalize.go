// Package version provides version-string normalization, operator- and
// range-based comparison, and outdated/vulnerability matching against the
// knowledge base. Version strings arrive from dozens of ecosystems in wildly
// inconsistent shapes; normalization canonicalizes them into a three-part
// form that supports ordering, falling back to documented raw-string
// semantics when a string resists parsing.
package version

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	strictThreePart = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	twoPart         = regexp.MustCompile(`^\d+\.\d+$`)
	coercible       = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)
)

const canonicalParts = 3

// Normalize canonicalizes an arbitrary version string into a comparable
// three-part form. The empty string (absent input) normalizes to "".
// Strings that cannot be coerced at all are returned unchanged; comparison
// then degrades to lexical semantics, which is incorrect for multi-digit
// components ("10" sorts below "9").
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strictThreePart.MatchString(raw) {
		return raw
	}
	if twoPart.MatchString(raw) {
		return raw + ".0"
	}
	if normalized, ok := expandWildcards(raw); ok {
		return normalized
	}
	if m := coercible.FindStringSubmatch(raw); m != nil {
		parts := []string{m[1], "0", "0"}
		if m[2] != "" {
			parts[1] = m[2]
		}
		if m[3] != "" {
			parts[2] = m[3]
		}
		return strings.Join(parts, ".")
	}
	return raw
}

// expandWildcards handles versions with wildcard components such as "3.x"
// or "2.X.1". Every wildcard becomes "0" and the result is padded with
// trailing zeros to three parts. Returns false when the string is not a
// pure number-and-wildcard form.
func expandWildcards(raw string) (string, bool) {
	parts := strings.Split(raw, ".")
	sawWildcard := false
	for i, part := range parts {
		switch {
		case part == "x" || part == "X":
			parts[i] = "0"
			sawWildcard = true
		case isNumeric(part):
			// keep as-is
		default:
			return "", false
		}
	}
	if !sawWildcard {
		return "", false
	}
	for len(parts) < canonicalParts {
		parts = append(parts, "0")
	}
	return strings.Join(parts, "."), true
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// canonical parses a version string into a strict semantic version after
// normalization. The second return is false when the string stays
// unparseable even after normalization.
func canonical(raw string) (*semver.Version, bool) {
	normalized := Normalize(raw)
	if normalized == "" {
		return nil, false
	}
	v, err := semver.StrictNewVersion(normalized)
	if err != nil {
		return nil, false
	}
	return v, true
}
