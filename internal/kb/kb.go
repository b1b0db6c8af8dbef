// Package kb provides the read-only version knowledge base used by the
// posture scanner. The knowledge base maps software identities to latest
// versions, version branches, and vulnerability rules, and operating systems
// to end-of-life and known-vulnerability data. It is loaded once and shared
// freely across concurrent scans; nothing in this subsystem mutates it.
package kb

// KnowledgeBase is the root of the version knowledge base. Software entries
// are keyed by software type (e.g. "webServer") and then by software name;
// operating-system entries are keyed by distribution and then by version.
type KnowledgeBase struct {
	Software         map[string]map[string]*SoftwareEntry `yaml:"software" json:"software"`
	OperatingSystems map[string]map[string]*OSEntry       `yaml:"operating_systems" json:"operating_systems"`
}

// SoftwareEntry describes a single piece of software tracked by the
// knowledge base.
type SoftwareEntry struct {
	LatestVersion   string             `yaml:"latest_version" json:"latest_version" validate:"required"`
	Branches        map[string]*Branch `yaml:"branches,omitempty" json:"branches,omitempty" validate:"omitempty,dive"`
	Vulnerabilities []VulnRule         `yaml:"vulnerabilities,omitempty" json:"vulnerabilities,omitempty" validate:"dive"`
}

// Branch tracks a version family (e.g. Apache "2.4") with its own latest
// version and support status.
type Branch struct {
	LatestVersion    string     `yaml:"latest_version" json:"latest_version" validate:"required"`
	EOL              bool       `yaml:"eol" json:"eol"`
	EndOfSupportDate string     `yaml:"end_of_support,omitempty" json:"end_of_support,omitempty"`
	Vulnerabilities  []VulnRule `yaml:"vulnerabilities,omitempty" json:"vulnerabilities,omitempty" validate:"dive"`
}

// VulnRule describes one known vulnerability and the version patterns it
// affects. A pattern is either an exact version string or an
// operator-prefixed string such as "<2.4.51" or ">=1.0.0".
type VulnRule struct {
	CVE              string   `yaml:"cve" json:"cve" validate:"required"`
	Description      string   `yaml:"description,omitempty" json:"description,omitempty"`
	Severity         string   `yaml:"severity,omitempty" json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	AffectedVersions []string `yaml:"affected_versions" json:"affected_versions" validate:"min=1"`
	FixedInVersion   string   `yaml:"fixed_in,omitempty" json:"fixed_in,omitempty"`
}

// OSEntry describes one operating-system release. For Windows the Builds
// sub-map refines the lookup by build number; each build carries its own
// release name and support status.
type OSEntry struct {
	EOL                  bool                `yaml:"eol" json:"eol"`
	EndOfSupportDate     string              `yaml:"end_of_support,omitempty" json:"end_of_support,omitempty"`
	ReleaseName          string              `yaml:"release_name,omitempty" json:"release_name,omitempty"`
	KnownVulnerabilities []KnownVuln         `yaml:"known_vulnerabilities,omitempty" json:"known_vulnerabilities,omitempty" validate:"dive"`
	Builds               map[string]*OSEntry `yaml:"builds,omitempty" json:"builds,omitempty" validate:"omitempty,dive"`
}

// KnownVuln is a vulnerability known to affect an OS release unless the
// associated patch is installed. KB identifies the Microsoft hotfix that
// fixes it; package-based distributions leave it empty.
type KnownVuln struct {
	CVE         string `yaml:"cve" json:"cve" validate:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Severity    string `yaml:"severity,omitempty" json:"severity,omitempty"`
	KB          string `yaml:"kb,omitempty" json:"kb,omitempty"`
}

// LookupSoftware returns the entry for a software type and name. Absent
// keys, including a nil receiver, short-circuit to a miss.
func (k *KnowledgeBase) LookupSoftware(softwareType, name string) (*SoftwareEntry, bool) {
	if k == nil || k.Software == nil {
		return nil, false
	}
	byName, ok := k.Software[softwareType]
	if !ok {
		return nil, false
	}
	entry, ok := byName[name]
	if !ok || entry == nil {
		return nil, false
	}
	return entry, true
}

// LookupOS returns the entry for a distribution and version.
func (k *KnowledgeBase) LookupOS(distribution, version string) (*OSEntry, bool) {
	if k == nil || k.OperatingSystems == nil {
		return nil, false
	}
	byVersion, ok := k.OperatingSystems[distribution]
	if !ok {
		return nil, false
	}
	entry, ok := byVersion[version]
	if !ok || entry == nil {
		return nil, false
	}
	return entry, true
}

// LookupBuild returns the build-specific entry beneath an OS entry.
func (e *OSEntry) LookupBuild(buildNumber string) (*OSEntry, bool) {
	if e == nil || e.Builds == nil {
		return nil, false
	}
	build, ok := e.Builds[buildNumber]
	if !ok || build == nil {
		return nil, false
	}
	return build, true
}

// SoftwareCount returns the number of software entries across all types.
func (k *KnowledgeBase) SoftwareCount() int {
	if k == nil {
		return 0
	}
	count := 0
	for _, byName := range k.Software {
		count += len(byName)
	}
	return count
}

// OSCount returns the number of operating-system version entries.
func (k *KnowledgeBase) OSCount() int {
	if k == nil {
		return 0
	}
	count := 0
	for _, byVersion := range k.OperatingSystems {
		count += len(byVersion)
	}
	return count
}
