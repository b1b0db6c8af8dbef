// Package detect identifies the operating system, distribution, kernel, and
// patch level of a remote host through a fixed-priority sequence of probes
// over an injected remote executor, then cross-references the result against
// the knowledge base for end-of-life status and known vulnerabilities.
//
// Every probe is independently fault-isolated: a failing command is logged
// at debug level and treated as "no information". Detection never returns an
// error; a record with only the fields that could be established (possibly
// none) is a valid result.
package detect

import (
	"time"
)

// Family is the distribution family used to select a patch inspector once
// the detector resolves a distribution.
type Family string

const (
	FamilyDebian  Family = "debian"
	FamilyRHEL    Family = "rhel"
	FamilyWindows Family = "windows"
	FamilyGeneric Family = "generic"
)

// OSRecord is the result of a single OS detection scan. It is created fresh
// per scan, populated in place by each probing stage, and must be treated as
// immutable once returned.
type OSRecord struct {
	Type          string `json:"type,omitempty"`
	Distribution  string `json:"distribution,omitempty"`
	Version       string `json:"version,omitempty"`
	Codename      string `json:"codename,omitempty"`
	KernelVersion string `json:"kernel_version,omitempty"`
	Architecture  string `json:"architecture,omitempty"`
	BuildNumber   string `json:"build_number,omitempty"`
	ReleaseName   string `json:"release_name,omitempty"`
	PatchLevel    string `json:"patch_level,omitempty"`

	SecurityUpdatesAvailable int            `json:"security_updates_available"`
	InstalledPatches         []string       `json:"installed_patches,omitempty"`
	MissingPatches           []MissingPatch `json:"missing_patches,omitempty"`

	EndOfLife        *bool      `json:"end_of_life,omitempty"`
	EndOfSupportDate string     `json:"end_of_support,omitempty"`
	LastPatchDate    *time.Time `json:"last_patch_date,omitempty"`
}

// Family classifies the record into a distribution family. The Windows
// family is keyed on the record type; Linux families on the distribution
// string.
func (r *OSRecord) Family() Family {
	if r.Type == "windows" {
		return FamilyWindows
	}
	switch r.Distribution {
	case "ubuntu", "debian":
		return FamilyDebian
	case "centos", "rhel", "fedora", "redhat-based":
		return FamilyRHEL
	}
	return FamilyGeneric
}

// HasInstalledPatch reports whether a patch identifier is present in the
// installed-patch list.
func (r *OSRecord) HasInstalledPatch(id string) bool {
	for _, installed := range r.InstalledPatches {
		if installed == id {
			return true
		}
	}
	return false
}

// MissingPatch describes one security update known to be applicable but not
// installed. The populated identifier fields differ by OS family: package
// managers report package and version pairs, Windows reports KB articles.
type MissingPatch struct {
	Package        string `json:"package,omitempty"`
	CurrentVersion string `json:"current_version,omitempty"`
	NewVersion     string `json:"new_version,omitempty"`
	CVE            string `json:"cve,omitempty"`
	KB             string `json:"kb,omitempty"`
	Severity       string `json:"severity"`
	Description    string `json:"description,omitempty"`
}
