package detect

import (
	"context"
	"strings"
	"time"

	"github.com/anchorsec/posture/internal/logging"
	"github.com/anchorsec/posture/internal/remote"
)

const (
	cmdHotfixList = "wmic qfe get HotFixID,InstalledOn"
	cmdWUList     = `powershell -NonInteractive -Command "Import-Module PSWindowsUpdate; Get-WUList -MicrosoftUpdate | Select-Object KB,Title | ConvertTo-Csv -NoTypeInformation"`
)

// hotfixDateFormats covers the date renderings wmic produces across
// locales and Windows versions.
var hotfixDateFormats = []string{"1/2/2006", "01/02/2006", "2006-01-02", "02-01-2006"}

// windowsDesktopReleases maps desktop build numbers to their marketing
// release labels.
var windowsDesktopReleases = map[string]string{
	"10240": "1507",
	"10586": "1511",
	"14393": "1607",
	"15063": "1703",
	"16299": "1709",
	"17134": "1803",
	"17763": "1809",
	"18362": "1903",
	"18363": "1909",
	"19041": "2004",
	"19042": "20H2",
	"19043": "21H1",
	"19044": "21H2",
	"19045": "22H2",
	"22000": "21H2",
	"22621": "22H2",
	"22631": "23H2",
	"26100": "24H2",
}

// windowsServerReleases maps server build numbers to release labels; these
// override the desktop table when the target is a server SKU.
var windowsServerReleases = map[string]string{
	"9200":  "2012",
	"9600":  "2012 R2",
	"14393": "2016",
	"17763": "2019",
	"20348": "2022",
}

// windowsReleaseName maps a build number to a release label for the given
// distribution ("windows" or "windows_server").
func windowsReleaseName(distribution, buildNumber string) string {
	if distribution == "windows_server" {
		if name, ok := windowsServerReleases[buildNumber]; ok {
			return name
		}
	}
	return windowsDesktopReleases[buildNumber]
}

// WindowsInspector inspects Windows systems through WMI hotfix queries and,
// when the PSWindowsUpdate module is available, the Windows Update API.
type WindowsInspector struct {
	log *logging.Logger
}

// Inspect lists installed hotfixes, derives the last patch date from the
// newest one, and collects missing security-relevant updates. A target
// without PSWindowsUpdate simply skips the missing-update list; that is not
// an error.
func (i *WindowsInspector) Inspect(ctx context.Context, target string, exec remote.Executor, record *OSRecord) {
	if out, _, ok := runInspectorCommand(ctx, exec, i.log, target, cmdHotfixList, 0); ok {
		i.parseHotfixes(out, record)
	}
	if out, _, ok := runInspectorCommand(ctx, exec, i.log, target, cmdWUList, 0); ok {
		i.parseMissingUpdates(out, record)
	} else {
		i.log.DebugProbe("PSWindowsUpdate unavailable, skipping missing-update list", target, cmdWUList)
	}
}

// parseHotfixes consumes wmic qfe output:
//
//	HotFixID   InstalledOn
//	KB5011487  3/14/2022
//	KB5012170  10/5/2022
func (i *WindowsInspector) parseHotfixes(out string, record *OSRecord) {
	var lastPatch time.Time
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "KB") {
			continue
		}
		record.InstalledPatches = append(record.InstalledPatches, fields[0])

		if len(fields) < 2 {
			continue
		}
		if installed, ok := parseHotfixDate(fields[1]); ok && installed.After(lastPatch) {
			lastPatch = installed
		}
	}
	if !lastPatch.IsZero() {
		record.LastPatchDate = &lastPatch
	}
}

// parseMissingUpdates consumes PSWindowsUpdate CSV output:
//
//	"KB","Title"
//	"KB5034122","2024-01 Cumulative Security Update for Windows Server 2019"
func (i *WindowsInspector) parseMissingUpdates(out string, record *OSRecord) {
	count := 0
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, `"KB","Title"`) {
			continue
		}
		kbID, title, found := splitCSVPair(line)
		if !found || !isSecurityUpdate(title) {
			continue
		}

		severity := "high"
		if strings.Contains(strings.ToLower(title), "critical") {
			severity = "critical"
		}
		record.MissingPatches = append(record.MissingPatches, MissingPatch{
			KB:          kbID,
			Description: title,
			Severity:    severity,
		})
		count++
	}
	record.SecurityUpdatesAvailable += count
}

// isSecurityUpdate applies the coarse security-relevance filter to an
// update title.
func isSecurityUpdate(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "security") || strings.Contains(lower, "critical")
}

// splitCSVPair splits a two-column quoted CSV line.
func splitCSVPair(line string) (first, second string, ok bool) {
	parts := strings.SplitN(line, ",", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.Trim(parts[0], `"`), strings.Trim(parts[1], `"`), true
}

func parseHotfixDate(value string) (time.Time, bool) {
	for _, format := range hotfixDateFormats {
		if parsed, err := time.Parse(format, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
