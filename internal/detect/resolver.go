package detect

import (
	"github.com/anchorsec/posture/internal/metrics"
)

// Resolve cross-references a populated record against the knowledge base's
// operating-system map, setting end-of-life status and appending known
// vulnerabilities that remain unpatched. It is called by Detect on every
// completed record and exported for callers that assemble records from
// other sources.
//
// For Windows the lookup descends into the build sub-map and a known
// vulnerability is appended only when its KB article is absent from the
// installed-patch list. Other families append unconditionally; they carry
// no installed-patch cross-check. That asymmetry mirrors the observed
// behavior of the data feeds and is preserved as-is.
func (d *Detector) Resolve(record *OSRecord) {
	if record.Distribution == "" || record.Version == "" {
		return
	}

	entry, found := d.kb.LookupOS(record.Distribution, record.Version)
	metrics.GetGlobalMetrics().IncrementKBLookups("os", found)
	if !found {
		return
	}

	windows := record.Family() == FamilyWindows
	if windows {
		build, buildFound := entry.LookupBuild(record.BuildNumber)
		metrics.GetGlobalMetrics().IncrementKBLookups("os_build", buildFound)
		if !buildFound {
			return
		}
		entry = build
		if entry.ReleaseName != "" {
			record.ReleaseName = entry.ReleaseName
		}
	}

	eol := entry.EOL
	record.EndOfLife = &eol
	if entry.EndOfSupportDate != "" {
		record.EndOfSupportDate = entry.EndOfSupportDate
	}

	for _, vuln := range entry.KnownVulnerabilities {
		if windows && vuln.KB != "" && record.HasInstalledPatch(vuln.KB) {
			continue
		}
		record.MissingPatches = append(record.MissingPatches, MissingPatch{
			CVE:         vuln.CVE,
			KB:          vuln.KB,
			Severity:    vuln.Severity,
			Description: vuln.Description,
		})
	}
}
