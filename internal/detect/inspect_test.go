package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorsec/posture/internal/logging"
	"github.com/anchorsec/posture/internal/remote"
)

const aptSimulation = `NOTE: This is only a simulation!
      apt-get needs root privileges for real execution.
Inst libssl1.1 [1.1.1f-1ubuntu2.19] (1.1.1f-1ubuntu2.20 Ubuntu:20.04/focal-security [amd64])
Inst openssl [1.1.1f-1ubuntu2.19] (1.1.1f-1ubuntu2.20 Ubuntu:20.04/focal-security [amd64])
Inst tzdata [2023c-0ubuntu0.20.04.1] (2023d-0ubuntu0.20.04 Ubuntu:20.04/focal-updates [all])
Conf libssl1.1 (1.1.1f-1ubuntu2.20 Ubuntu:20.04/focal-security [amd64])`

func TestDebianInspector(t *testing.T) {
	exec := remote.NewReplayExecutor(map[string]remote.Output{
		cmdAptUpgradeSim: {Stdout: aptSimulation},
		cmdLSBDescribe:   {Stdout: "Description:\tUbuntu 20.04.5 LTS"},
	})
	inspector := &DebianInspector{log: logging.Default()}
	record := &OSRecord{Distribution: "ubuntu"}

	inspector.Inspect(context.Background(), "web01", exec, record)

	// Only Inst lines from a security pocket count; Conf lines and the
	// focal-updates entry do not.
	assert.Equal(t, 2, record.SecurityUpdatesAvailable)
	require.Len(t, record.MissingPatches, 2)
	assert.Equal(t, MissingPatch{
		Package:        "libssl1.1",
		CurrentVersion: "1.1.1f-1ubuntu2.19",
		NewVersion:     "1.1.1f-1ubuntu2.20",
		Severity:       "unknown",
	}, record.MissingPatches[0])
	assert.Equal(t, "openssl", record.MissingPatches[1].Package)
	assert.Equal(t, "20.04.5", record.PatchLevel)
}

func TestDebianInspectorNoPointReleaseForDebian(t *testing.T) {
	exec := remote.NewReplayExecutor(map[string]remote.Output{
		cmdAptUpgradeSim: {Stdout: "Inst linux-image [5.10.1] (5.10.2 Debian-Security:11/bullseye-security [amd64])"},
		cmdLSBDescribe:   {Stdout: "Description:\tDebian GNU/Linux 11.8 (bullseye)"},
	})
	inspector := &DebianInspector{log: logging.Default()}
	record := &OSRecord{Distribution: "debian"}

	inspector.Inspect(context.Background(), "mail01", exec, record)

	assert.Equal(t, 1, record.SecurityUpdatesAvailable)
	assert.Empty(t, record.PatchLevel)
	assert.False(t, exec.Called(cmdLSBDescribe))
}

func TestIsSecurityUpgradeLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Inst openssl [1.1.1] (1.1.2 Ubuntu:20.04/focal-security [amd64])", true},
		{"Inst bash [5.1] (5.2 Debian-Security:11/bullseye-security [amd64])", true},
		{"Inst tzdata [2023c] (2023d Ubuntu:20.04/focal-updates [all])", false},
		{"Conf openssl (1.1.2 Ubuntu:20.04/focal-security [amd64])", false},
		{"NOTE: This is only a simulation!", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isSecurityUpgradeLine(tt.line), tt.line)
	}
}

func TestParseCheckUpdateLines(t *testing.T) {
	out := `Last metadata expiration check: 0:42:17 ago.

kernel.x86_64           3.10.0-1160.102.1.el7      updates
openssl-libs.x86_64     1:1.0.2k-26.el7_9          updates
Security: kernel-3.10.0-1160.102.1.el7.x86_64 is an installed security update
    extras`

	pending := parseCheckUpdateLines(out)

	require.Len(t, pending, 2)
	assert.Equal(t, "kernel", pending[0].name)
	assert.Equal(t, "3.10.0-1160.102.1.el7", pending[0].version)
	assert.Equal(t, "openssl-libs", pending[1].name)
	assert.Equal(t, "1:1.0.2k-26.el7_9", pending[1].version)
}

func TestRHELInspectorNoUpdates(t *testing.T) {
	exec := remote.NewReplayExecutor(map[string]remote.Output{
		cmdWhichDNF:                      {Stdout: "/usr/bin/dnf"},
		"dnf -q check-update --security": {Stdout: "", ExitCode: 0},
		cmdRedhatRelease:                 {Stdout: "Rocky Linux release 9.3 (Blue Onyx)"},
	})
	inspector := &RHELInspector{log: logging.Default()}
	record := &OSRecord{Distribution: "redhat-based"}

	inspector.Inspect(context.Background(), "db02", exec, record)

	assert.Zero(t, record.SecurityUpdatesAvailable)
	assert.Empty(t, record.MissingPatches)
	assert.Equal(t, "9.3", record.PatchLevel)
}

func TestParseHotfixDate(t *testing.T) {
	for _, value := range []string{"3/14/2022", "03/14/2022", "2022-03-14", "14-03-2022"} {
		parsed, ok := parseHotfixDate(value)
		require.True(t, ok, value)
		assert.Equal(t, 2022, parsed.Year())
	}
	_, ok := parseHotfixDate("14. März 2022")
	assert.False(t, ok)
}

func TestWindowsInspectorMissingUpdates(t *testing.T) {
	exec := remote.NewReplayExecutor(map[string]remote.Output{
		cmdHotfixList: {Stdout: "HotFixID   InstalledOn\nKB5012170  10/5/2022\nKB5011487  3/14/2022\nFile-based  \n"},
		cmdWUList: {Stdout: `"KB","Title"
"KB5034122","2024-01 Cumulative Security Update for Windows Server 2019"
"KB890830","Windows Malicious Software Removal Tool - Critical"
"KB5035967","Realtek Audio Driver Update"`},
	})
	inspector := &WindowsInspector{log: logging.Default()}
	record := &OSRecord{Type: "windows", Distribution: "windows_server"}

	inspector.Inspect(context.Background(), "dc01", exec, record)

	assert.Equal(t, []string{"KB5012170", "KB5011487"}, record.InstalledPatches)
	require.NotNil(t, record.LastPatchDate)
	assert.Equal(t, "2022-10-05", record.LastPatchDate.Format("2006-01-02"))

	require.Len(t, record.MissingPatches, 2)
	assert.Equal(t, "KB5034122", record.MissingPatches[0].KB)
	assert.Equal(t, "high", record.MissingPatches[0].Severity)
	assert.Equal(t, "critical", record.MissingPatches[1].Severity)
	assert.Equal(t, 2, record.SecurityUpdatesAvailable)
}

func TestWindowsInspectorWithoutPSWindowsUpdate(t *testing.T) {
	exec := remote.NewReplayExecutor(map[string]remote.Output{
		cmdHotfixList: {Stdout: "HotFixID  InstalledOn\nKB5011487  3/14/2022"},
		cmdWUList:     {ExitCode: 1, Stderr: "Import-Module : The specified module 'PSWindowsUpdate' was not loaded"},
	})
	inspector := &WindowsInspector{log: logging.Default()}
	record := &OSRecord{Type: "windows", Distribution: "windows"}

	inspector.Inspect(context.Background(), "laptop07", exec, record)

	assert.Equal(t, []string{"KB5011487"}, record.InstalledPatches)
	assert.Empty(t, record.MissingPatches)
	assert.Zero(t, record.SecurityUpdatesAvailable)
}

func TestWindowsReleaseName(t *testing.T) {
	assert.Equal(t, "22H2", windowsReleaseName("windows", "19045"))
	assert.Equal(t, "2019", windowsReleaseName("windows_server", "17763"))
	assert.Equal(t, "1809", windowsReleaseName("windows", "17763"))
	assert.Equal(t, "2016", windowsReleaseName("windows_server", "14393"))
	assert.Empty(t, windowsReleaseName("windows_server", "99999"))
}

func TestParseKeyValueLines(t *testing.T) {
	fields := parseKeyValueLines("OS Name:  Microsoft Windows Server 2019\nno separator here\nOS Version:  10.0.17763", ":")
	assert.Equal(t, "Microsoft Windows Server 2019", fields["OS Name"])
	assert.Equal(t, "10.0.17763", fields["OS Version"])
	assert.Len(t, fields, 2)
}
