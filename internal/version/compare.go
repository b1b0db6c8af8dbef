package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Comparison operators accepted by Compare. The strict forms bypass
// normalization entirely and compare raw strings, which supports
// exact-build matching.
const (
	OpStrictEqual    = "==="
	OpStrictNotEqual = "!=="
	OpEqual          = "=="
	OpNotEqual       = "!="
	OpLess           = "<"
	OpLessEqual      = "<="
	OpGreater        = ">"
	OpGreaterEqual   = ">="
)

// patternOperators are tried longest-first when parsing a leading operator
// token off a version pattern.
var patternOperators = []string{OpLessEqual, OpGreaterEqual, OpLess, OpGreater, "="}

// Compare evaluates `a op b`. The second return value reports whether the
// comparison was determinable at all: an unknown operator or an empty
// operand yields (false, false), meaning "undetermined" rather than
// "false".
//
// Strict operators compare raw strings. Relational operators normalize both
// operands first; when either side stays unparseable the comparison degrades
// to ordinary lexical string ordering (a documented limitation).
func Compare(a, b, operator string) (result, ok bool) {
	switch operator {
	case OpStrictEqual:
		return a == b, true
	case OpStrictNotEqual:
		return a != b, true
	}

	if a == "" || b == "" {
		return false, false
	}

	va, aOK := canonical(a)
	vb, bOK := canonical(b)
	if !aOK || !bOK {
		return compareLexical(a, b, operator)
	}

	c := va.Compare(vb)
	switch operator {
	case OpEqual, "=":
		return c == 0, true
	case OpNotEqual:
		return c != 0, true
	case OpLess:
		return c < 0, true
	case OpLessEqual:
		return c <= 0, true
	case OpGreater:
		return c > 0, true
	case OpGreaterEqual:
		return c >= 0, true
	}
	return false, false
}

func compareLexical(a, b, operator string) (bool, bool) {
	switch operator {
	case OpEqual, "=":
		return a == b, true
	case OpNotEqual:
		return a != b, true
	case OpLess:
		return a < b, true
	case OpLessEqual:
		return a <= b, true
	case OpGreater:
		return a > b, true
	case OpGreaterEqual:
		return a >= b, true
	}
	return false, false
}

// SatisfiesPattern reports whether a version satisfies a single version
// pattern. A pattern is an optional leading operator token followed by a
// version string; a bare version means exact match.
func SatisfiesPattern(version, pattern string) bool {
	version = strings.TrimSpace(version)
	pattern = strings.TrimSpace(pattern)
	if version == "" || pattern == "" {
		return false
	}

	operator := "="
	target := pattern
	for _, op := range patternOperators {
		if strings.HasPrefix(pattern, op) {
			operator = op
			target = strings.TrimSpace(pattern[len(op):])
			break
		}
	}

	result, ok := Compare(version, target, operator)
	return ok && result
}

// SatisfiesRange reports whether a version satisfies a range expression.
// Two surface forms are supported: a full space-separated range such as
// ">=1.2.0 <2.0.0", evaluated with canonical range semantics, and a
// single-operator shorthand such as "<=2.4.50", delegated to
// SatisfiesPattern. The second return value is false when the range
// expression or the version is unusable.
func SatisfiesRange(version, versionRange string) (result, ok bool) {
	version = strings.TrimSpace(version)
	versionRange = strings.TrimSpace(versionRange)
	if version == "" || versionRange == "" {
		return false, false
	}

	if !strings.Contains(versionRange, " ") {
		return SatisfiesPattern(version, versionRange), true
	}

	constraint, err := semver.NewConstraint(strings.Join(strings.Fields(versionRange), ", "))
	if err != nil {
		return false, false
	}
	v, vOK := canonical(version)
	if !vOK {
		return false, false
	}
	return constraint.Check(v), true
}
