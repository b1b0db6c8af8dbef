package version

import (
	"fmt"

	"github.com/anchorsec/posture/internal/kb"
	"github.com/anchorsec/posture/internal/metrics"
)

// Outdated is the verdict for a single software+version pair.
type Outdated struct {
	IsOutdated       bool   `json:"is_outdated"`
	LatestVersion    string `json:"latest_version"`
	EOL              bool   `json:"eol"`
	LatestInBranch   string `json:"latest_in_branch,omitempty"`
	EndOfSupportDate string `json:"end_of_support,omitempty"`
}

// Vulnerability is one matched vulnerability rule.
type Vulnerability struct {
	CVE            string `json:"cve"`
	Description    string `json:"description,omitempty"`
	Severity       string `json:"severity,omitempty"`
	FixedInVersion string `json:"fixed_in,omitempty"`
}

// CheckOutdated classifies a software version as outdated against the
// knowledge base. It returns nil when the software is unknown or the input
// is invalid. A version inside a tracked branch is compared against the
// branch's latest version first; when that comparison does not flag it,
// the software's global latest version still can.
func CheckOutdated(softwareType, name, rawVersion string, base *kb.KnowledgeBase) *Outdated {
	if name == "" || rawVersion == "" {
		return nil
	}
	entry, found := base.LookupSoftware(softwareType, name)
	metrics.GetGlobalMetrics().IncrementKBLookups("software", found)
	if !found {
		return nil
	}

	result := &Outdated{LatestVersion: entry.LatestVersion}

	normalized := Normalize(rawVersion)
	if _, parseable := canonical(normalized); !parseable {
		// Unorderable version string: fall back to plain inequality
		// against the latest known version.
		result.IsOutdated = rawVersion != entry.LatestVersion
		return result
	}

	if branch := findBranch(entry, normalized); branch != nil {
		result.EOL = branch.EOL
		result.EndOfSupportDate = branch.EndOfSupportDate
		result.LatestInBranch = branch.LatestVersion
		if older, ok := Compare(normalized, branch.LatestVersion, OpLess); ok && older {
			result.IsOutdated = true
		}
	}
	if !result.IsOutdated {
		if older, ok := Compare(normalized, entry.LatestVersion, OpLess); ok && older {
			result.IsOutdated = true
		}
	}
	return result
}

// FindVulnerabilities matches a software version against every
// vulnerability rule known for that software. It returns nil when the
// software is unknown or the input is invalid, and an empty slice when the
// software is known but no rule matched. Rules on the version's branch are
// matched alongside the software-wide ones.
func FindVulnerabilities(softwareType, name, rawVersion string, base *kb.KnowledgeBase) []Vulnerability {
	if name == "" || rawVersion == "" {
		return nil
	}
	entry, found := base.LookupSoftware(softwareType, name)
	metrics.GetGlobalMetrics().IncrementKBLookups("software", found)
	if !found {
		return nil
	}

	normalized := Normalize(rawVersion)

	rules := entry.Vulnerabilities
	if branch := findBranch(entry, normalized); branch != nil {
		rules = append(rules[:len(rules):len(rules)], branch.Vulnerabilities...)
	}

	matched := make([]Vulnerability, 0)
	for i := range rules {
		rule := &rules[i]
		for _, pattern := range rule.AffectedVersions {
			if SatisfiesPattern(normalized, pattern) {
				matched = append(matched, Vulnerability{
					CVE:            rule.CVE,
					Description:    rule.Description,
					Severity:       rule.Severity,
					FixedInVersion: rule.FixedInVersion,
				})
				break
			}
		}
	}
	return matched
}

// findBranch locates the branch a normalized version belongs to. Keys are
// tried most specific first: "major.minor", then "major", then "major.x".
func findBranch(entry *kb.SoftwareEntry, normalized string) *kb.Branch {
	if len(entry.Branches) == 0 {
		return nil
	}
	v, ok := canonical(normalized)
	if !ok {
		return nil
	}
	keys := []string{
		fmt.Sprintf("%d.%d", v.Major(), v.Minor()),
		fmt.Sprintf("%d", v.Major()),
		fmt.Sprintf("%d.x", v.Major()),
	}
	for _, key := range keys {
		if branch, found := entry.Branches[key]; found && branch != nil {
			return branch
		}
	}
	return nil
}
