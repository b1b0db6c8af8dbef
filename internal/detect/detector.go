package detect

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/anchorsec/posture/internal/kb"
	"github.com/anchorsec/posture/internal/logging"
	"github.com/anchorsec/posture/internal/metrics"
	"github.com/anchorsec/posture/internal/remote"
)

// Probe commands, in the order the detector tries them.
const (
	cmdUnameMachine  = "uname -m"
	cmdUnameAll      = "uname -a"
	cmdLSBRelease    = "lsb_release -a"
	cmdLSBFile       = "cat /etc/lsb-release"
	cmdRedhatRelease = "cat /etc/redhat-release"
	cmdOSRelease     = "cat /etc/os-release"
	cmdSysteminfo    = `systeminfo | findstr /B /C:"OS Name" /C:"OS Version"`
)

var (
	redhatVersionPattern = regexp.MustCompile(`release\s+([\d.]+)`)
	windowsBuildPattern  = regexp.MustCompile(`Build\s+(\d+)`)
)

// osReleaseFragments maps known distro name fragments from /etc/os-release
// to canonical distribution identifiers.
var osReleaseFragments = []struct {
	fragment     string
	distribution string
}{
	{"ubuntu", "ubuntu"},
	{"debian", "debian"},
	{"centos", "centos"},
	{"fedora", "fedora"},
	{"alpine", "alpine"},
	{"arch", "arch"},
	{"suse", "suse"},
}

// windowsVersions is checked in order; more specific labels come first so
// "2012 R2" does not match as "2012" and "8.1" does not match as "8".
var windowsVersions = []string{"2022", "2019", "2016", "2012 R2", "2012", "11", "10", "8.1", "8", "7"}

// Detector orchestrates OS detection probes over a remote executor and
// delegates to the patch inspector matching the resolved family.
type Detector struct {
	kb         *kb.KnowledgeBase
	log        *logging.Logger
	inspectors map[Family]PatchInspector
}

// NewDetector creates a detector backed by the given knowledge base. A nil
// logger falls back to the package default.
func NewDetector(base *kb.KnowledgeBase, log *logging.Logger) *Detector {
	if log == nil {
		log = logging.Default()
	}
	return &Detector{
		kb:         base,
		log:        log.WithComponent("detector"),
		inspectors: defaultInspectors(log),
	}
}

// Detect identifies the operating system of a target through the executor.
// It never returns an error: on total failure the returned record simply has
// no fields set. A nil executor (no session supplied) yields an empty record
// immediately. Cancellation is honored between probes; individual probes are
// atomic.
func (d *Detector) Detect(ctx context.Context, target string, exec remote.Executor) *OSRecord {
	record := &OSRecord{}
	if exec == nil {
		d.log.Debug("No session supplied, returning empty record", "target", target)
		return record
	}

	m := metrics.GetGlobalMetrics()
	m.IncrementActiveScans()
	start := time.Now()
	defer func() {
		m.DecrementActiveScans()
		family := string(record.Family())
		m.RecordScanDuration(family, time.Since(start))
		status := "resolved"
		if record.Type == "" {
			status = "unresolved"
		}
		m.IncrementScansTotal(family, status)
	}()

	d.log.InfoScan("Starting OS detection", target)

	steps := []func(context.Context, string, remote.Executor, *OSRecord){
		d.probeKernel,
		d.probeLSB,
		d.probeRedhatRelease,
		d.probeOSRelease,
		d.probeWindows,
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			d.log.Debug("Detection canceled between probes", "target", target)
			break
		}
		step(ctx, target, exec, record)
	}

	d.Resolve(record)

	d.log.InfoScan("OS detection completed", target,
		"type", record.Type,
		"distribution", record.Distribution,
		"version", record.Version,
		"family", string(record.Family()))
	return record
}

// runProbe executes one probe command with fault isolation. It returns the
// trimmed stdout and whether the probe produced usable output. Failures are
// logged at debug level and never propagate.
func (d *Detector) runProbe(ctx context.Context, exec remote.Executor, target, probe, command string) (string, bool) {
	m := metrics.GetGlobalMetrics()
	start := time.Now()
	out, err := exec.Execute(ctx, command)
	m.RecordProbeDuration(probe, time.Since(start))

	if err != nil {
		m.IncrementProbesTotal(probe, "error")
		d.log.DebugProbe("Probe failed", target, command, "error", err)
		return "", false
	}
	if out.ExitCode != 0 {
		m.IncrementProbesTotal(probe, "nonzero_exit")
		d.log.DebugProbe("Probe returned non-zero exit", target, command,
			"exit_code", out.ExitCode, "stderr", strings.TrimSpace(out.Stderr))
		return "", false
	}
	stdout := strings.TrimSpace(out.Stdout)
	if stdout == "" {
		m.IncrementProbesTotal(probe, "empty")
		return "", false
	}
	m.IncrementProbesTotal(probe, "success")
	return stdout, true
}

// probeKernel runs the uname probes. Any non-empty result marks the target
// as Linux and captures kernel version and architecture.
func (d *Detector) probeKernel(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	if arch, ok := d.runProbe(ctx, exec, target, "uname_machine", cmdUnameMachine); ok {
		record.Type = "linux"
		record.Architecture = arch
	}
	if unameAll, ok := d.runProbe(ctx, exec, target, "uname_all", cmdUnameAll); ok {
		record.Type = "linux"
		// "Linux host 5.15.0-91-generic #101-Ubuntu SMP ..." - the third
		// field is the kernel release.
		if fields := strings.Fields(unameAll); len(fields) >= 3 {
			record.KernelVersion = fields[2]
		}
	}
}

// probeLSB parses lsb_release output (falling back to /etc/lsb-release) and
// invokes the Debian inspector when the distribution resolves to a Debian
// derivative.
func (d *Detector) probeLSB(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	if record.Distribution != "" {
		return
	}

	if out, ok := d.runProbe(ctx, exec, target, "lsb_release", cmdLSBRelease); ok {
		parseLSBCommand(out, record)
	}
	// The command can succeed without naming a distribution ("No LSB
	// modules are available."), so the file fallback keys off the record.
	if record.Distribution == "" {
		if out, ok := d.runProbe(ctx, exec, target, "lsb_file", cmdLSBFile); ok {
			parseLSBFile(out, record)
		}
	}
	if record.Distribution == "" {
		return
	}
	record.Type = "linux"

	if record.Family() == FamilyDebian {
		d.inspect(ctx, target, exec, record)
	}
}

// probeRedhatRelease classifies Red Hat family systems from
// /etc/redhat-release and invokes the RHEL inspector.
func (d *Detector) probeRedhatRelease(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	if record.Distribution != "" {
		return
	}
	out, ok := d.runProbe(ctx, exec, target, "redhat_release", cmdRedhatRelease)
	if !ok {
		return
	}

	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, "centos"):
		record.Distribution = "centos"
	case strings.Contains(lower, "fedora"):
		record.Distribution = "fedora"
	case strings.Contains(lower, "red hat"):
		record.Distribution = "rhel"
	default:
		record.Distribution = "redhat-based"
	}
	record.Type = "linux"

	if m := redhatVersionPattern.FindStringSubmatch(out); m != nil {
		record.Version = m[1]
	}

	d.inspect(ctx, target, exec, record)
}

// probeOSRelease is the last Linux classification attempt, matching
// /etc/os-release NAME against a fixed list of known distro fragments.
func (d *Detector) probeOSRelease(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	if record.Distribution != "" {
		return
	}
	out, ok := d.runProbe(ctx, exec, target, "os_release", cmdOSRelease)
	if !ok {
		return
	}

	fields := parseKeyValueLines(out, "=")
	name := strings.Trim(fields["NAME"], `"`)
	if name == "" {
		return
	}

	lower := strings.ToLower(name)
	record.Distribution = lower
	for _, known := range osReleaseFragments {
		if strings.Contains(lower, known.fragment) {
			record.Distribution = known.distribution
			break
		}
	}
	record.Type = "linux"

	if versionID := strings.Trim(fields["VERSION_ID"], `"`); versionID != "" {
		record.Version = versionID
	}
}

// probeWindows is entered only when every Linux probe failed to set a type.
func (d *Detector) probeWindows(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	if record.Type != "" {
		return
	}
	out, ok := d.runProbe(ctx, exec, target, "systeminfo", cmdSysteminfo)
	if !ok {
		return
	}

	lower := strings.ToLower(out)
	if !strings.Contains(lower, "windows") {
		return
	}

	record.Type = "windows"
	record.Distribution = "windows"
	if strings.Contains(lower, "server") {
		record.Distribution = "windows_server"
	}

	fields := parseKeyValueLines(out, ":")
	osName := fields["OS Name"]
	for _, v := range windowsVersions {
		if strings.Contains(osName, v) {
			record.Version = v
			break
		}
	}

	osVersion := fields["OS Version"]
	if m := windowsBuildPattern.FindStringSubmatch(osVersion); m != nil {
		record.BuildNumber = m[1]
	} else if vf := strings.Fields(osVersion); len(vf) > 0 {
		if parts := strings.Split(vf[0], "."); len(parts) >= 3 {
			record.BuildNumber = parts[2]
		}
	}

	if record.BuildNumber != "" {
		record.ReleaseName = windowsReleaseName(record.Distribution, record.BuildNumber)
	}

	d.inspect(ctx, target, exec, record)
}

// inspect dispatches to the patch inspector registered for the record's
// family, if any.
func (d *Detector) inspect(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	inspector, ok := d.inspectors[record.Family()]
	if !ok {
		return
	}
	inspector.Inspect(ctx, target, exec, record)
}

// parseLSBCommand parses `lsb_release -a` output:
//
//	Distributor ID: Ubuntu
//	Release:        20.04
//	Codename:       focal
func parseLSBCommand(out string, record *OSRecord) {
	fields := parseKeyValueLines(out, ":")
	if id := fields["Distributor ID"]; id != "" {
		record.Distribution = strings.ToLower(id)
	}
	if release := fields["Release"]; release != "" {
		record.Version = release
	}
	if codename := fields["Codename"]; codename != "" {
		record.Codename = codename
	}
}

// parseLSBFile parses /etc/lsb-release:
//
//	DISTRIB_ID=Ubuntu
//	DISTRIB_RELEASE=20.04
//	DISTRIB_CODENAME=focal
func parseLSBFile(out string, record *OSRecord) {
	fields := parseKeyValueLines(out, "=")
	if id := strings.Trim(fields["DISTRIB_ID"], `"`); id != "" {
		record.Distribution = strings.ToLower(id)
	}
	if release := strings.Trim(fields["DISTRIB_RELEASE"], `"`); release != "" {
		record.Version = release
	}
	if codename := strings.Trim(fields["DISTRIB_CODENAME"], `"`); codename != "" {
		record.Codename = codename
	}
}

// parseKeyValueLines splits each line on the first separator occurrence and
// returns a trimmed key→value map. Lines without the separator are skipped.
func parseKeyValueLines(out, separator string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(line, separator)
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}
