package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/anchorsec/posture/internal/logging"
	"github.com/anchorsec/posture/internal/remote"
)

const (
	cmdWhichDNF = "command -v dnf"
	cmdWhichYum = "command -v yum"

	// check-update exits 0 when nothing is pending and 100 when updates
	// exist; both are normal outcomes.
	checkUpdateExitNone    = 0
	checkUpdateExitPending = 100
)

// rhelHeaderPrefixes mark check-update output lines that carry no package
// information.
var rhelHeaderPrefixes = []string{
	"Last metadata",
	"Loaded plugins",
	"Obsoleting",
	"Security:",
	"Updating Subscription",
}

// RHELInspector inspects RHEL, CentOS, and Fedora systems through dnf or
// yum, preferring dnf when both are present.
type RHELInspector struct {
	log *logging.Logger
}

// Inspect runs the security check-update, counts pending entries, and
// resolves the currently installed version for each via rpm. It also
// extracts the point release from /etc/redhat-release.
func (i *RHELInspector) Inspect(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	pm := i.detectPackageManager(ctx, target, exec)
	if pm == "" {
		i.log.DebugProbe("No supported package manager found", target, cmdWhichDNF)
		return
	}

	checkCmd := fmt.Sprintf("%s -q check-update --security", pm)
	out, exitCode, ok := runInspectorCommand(ctx, exec, i.log, target, checkCmd,
		checkUpdateExitNone, checkUpdateExitPending)
	if ok {
		pending := parseCheckUpdateLines(out)
		record.SecurityUpdatesAvailable = len(pending)

		if exitCode == checkUpdateExitPending && len(pending) > 0 {
			for _, p := range pending {
				patch := MissingPatch{
					Package:    p.name,
					NewVersion: p.version,
					Severity:   "unknown",
				}
				patch.CurrentVersion = i.installedVersion(ctx, target, exec, p.name)
				record.MissingPatches = append(record.MissingPatches, patch)
			}
		}
	}

	if out, _, ok := runInspectorCommand(ctx, exec, i.log, target, cmdRedhatRelease, 0); ok {
		if m := redhatVersionPattern.FindStringSubmatch(out); m != nil {
			record.PatchLevel = m[1]
		}
	}
}

// detectPackageManager returns "dnf", "yum", or "" when neither resolves.
func (i *RHELInspector) detectPackageManager(ctx context.Context, target string, exec remote.Executor) string {
	if out, _, ok := runInspectorCommand(ctx, exec, i.log, target, cmdWhichDNF, 0); ok && strings.TrimSpace(out) != "" {
		return "dnf"
	}
	if out, _, ok := runInspectorCommand(ctx, exec, i.log, target, cmdWhichYum, 0); ok && strings.TrimSpace(out) != "" {
		return "yum"
	}
	return ""
}

// installedVersion resolves the currently installed version of a package.
func (i *RHELInspector) installedVersion(ctx context.Context, target string, exec remote.Executor, pkg string) string {
	queryCmd := fmt.Sprintf("rpm -q --queryformat '%%{VERSION}-%%{RELEASE}' %s", pkg)
	out, _, ok := runInspectorCommand(ctx, exec, i.log, target, queryCmd, 0)
	if !ok {
		return ""
	}
	return strings.TrimSpace(out)
}

type pendingUpdate struct {
	name    string
	version string
}

// parseCheckUpdateLines extracts "package.arch version repo" entries from
// check-update output, skipping headers, blanks, and continuation lines.
func parseCheckUpdateLines(out string) []pendingUpdate {
	var pending []pendingUpdate
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isRHELHeaderLine(line) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		name := fields[0]
		// "openssl-libs.x86_64" -> "openssl-libs"
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[:idx]
		}
		pending = append(pending, pendingUpdate{name: name, version: fields[1]})
	}
	return pending
}

func isRHELHeaderLine(line string) bool {
	for _, prefix := range rhelHeaderPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
