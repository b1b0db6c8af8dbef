package detect

import (
	"context"
	"regexp"
	"strings"

	"github.com/anchorsec/posture/internal/logging"
	"github.com/anchorsec/posture/internal/remote"
)

const (
	cmdAptUpgradeSim = "apt-get -s dist-upgrade"
	cmdLSBDescribe   = "lsb_release -d"
)

var (
	// "Inst libssl1.1 [1.1.1f-1ubuntu2.19] (1.1.1f-1ubuntu2.20 Ubuntu:20.04/focal-security [amd64])"
	aptInstLine = regexp.MustCompile(`^Inst\s+(\S+)\s+\[([^\]]+)\]\s+\((\S+)`)

	// "Description:	Ubuntu 20.04.5 LTS" -> "20.04.5"
	pointReleasePattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)+)`)
)

// DebianInspector inspects Debian and Ubuntu systems using a simulated
// apt upgrade. No package is ever installed; the -s flag keeps everything
// read-only on the target.
type DebianInspector struct {
	log *logging.Logger
}

// Inspect counts pending security updates and, when any exist, extracts
// per-package current/new version pairs. For Ubuntu it also captures the
// human-readable point release.
func (i *DebianInspector) Inspect(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	out, _, ok := runInspectorCommand(ctx, exec, i.log, target, cmdAptUpgradeSim, 0)
	if ok {
		count := 0
		for _, line := range strings.Split(out, "\n") {
			if isSecurityUpgradeLine(line) {
				count++
			}
		}
		record.SecurityUpdatesAvailable = count

		if count > 0 {
			i.collectMissingPatches(ctx, target, exec, record)
		}
	}

	if record.Distribution == "ubuntu" {
		if out, _, ok := runInspectorCommand(ctx, exec, i.log, target, cmdLSBDescribe, 0); ok {
			if m := pointReleasePattern.FindStringSubmatch(out); m != nil {
				record.PatchLevel = m[1]
			}
		}
	}
}

// collectMissingPatches re-runs the simulated upgrade and parses each
// security-tagged Inst line into a missing patch entry.
func (i *DebianInspector) collectMissingPatches(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	out, _, ok := runInspectorCommand(ctx, exec, i.log, target, cmdAptUpgradeSim, 0)
	if !ok {
		return
	}
	for _, line := range strings.Split(out, "\n") {
		if !isSecurityUpgradeLine(line) {
			continue
		}
		m := aptInstLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		record.MissingPatches = append(record.MissingPatches, MissingPatch{
			Package:        m[1],
			CurrentVersion: m[2],
			NewVersion:     m[3],
			Severity:       "unknown",
		})
	}
}

// isSecurityUpgradeLine reports whether a simulated-upgrade line refers to
// a security pocket or repository.
func isSecurityUpgradeLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "Inst ") {
		return false
	}
	return strings.Contains(trimmed, "-security") || strings.Contains(trimmed, "Debian-Security")
}
