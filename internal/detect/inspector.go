package detect

import (
	"context"

	"github.com/anchorsec/posture/internal/logging"
	"github.com/anchorsec/posture/internal/remote"
)

// PatchInspector queries the native package or update mechanism of a
// resolved distribution family for missing security updates. Inspectors
// mutate the record in place and, like probes, never report errors: a
// failing command leaves the patch fields unset.
type PatchInspector interface {
	Inspect(ctx context.Context, target string, exec remote.Executor, record *OSRecord)
}

// defaultInspectors builds the family→inspector dispatch table. The table
// is constructed once per detector so call sites never re-test distribution
// strings.
func defaultInspectors(log *logging.Logger) map[Family]PatchInspector {
	return map[Family]PatchInspector{
		FamilyDebian:  &DebianInspector{log: log.WithComponent("inspector_debian")},
		FamilyRHEL:    &RHELInspector{log: log.WithComponent("inspector_rhel")},
		FamilyWindows: &WindowsInspector{log: log.WithComponent("inspector_windows")},
	}
}

// runInspectorCommand executes a command during inspection, tolerating the
// non-zero exit codes some package managers use as signals (dnf's
// check-update exits 100 when updates exist). It returns stdout, the exit
// code, and whether the command ran at all.
func runInspectorCommand(ctx context.Context, exec remote.Executor, log *logging.Logger,
	target, command string, acceptExitCodes ...int) (string, int, bool) {
	out, err := exec.Execute(ctx, command)
	if err != nil {
		log.DebugProbe("Inspector command failed", target, command, "error", err)
		return "", 0, false
	}
	for _, code := range acceptExitCodes {
		if out.ExitCode == code {
			return out.Stdout, out.ExitCode, true
		}
	}
	log.DebugProbe("Inspector command returned unexpected exit", target, command,
		"exit_code", out.ExitCode)
	return "", out.ExitCode, false
}
