package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anchorsec/posture/internal/kb"
	ver "github.com/anchorsec/posture/internal/version"
)

var (
	checkType    string
	checkName    string
	checkVersion string
	checkKBPath  string
	checkJSON    bool
)

// checkVerdict is the combined answer for one software+version pair.
type checkVerdict struct {
	SoftwareType    string                  `json:"software_type"`
	Name            string                  `json:"name"`
	Version         string                  `json:"version"`
	Known           bool                    `json:"known"`
	Outdated        *ver.Outdated       `json:"outdated,omitempty"`
	Vulnerabilities []ver.Vulnerability `json:"vulnerabilities"`
}

// checkCmd represents the check command.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a software version against the knowledge base",
	Long: `Check classifies a single software version as outdated or current and
lists the known vulnerabilities matching it, without touching any remote
host. Version inputs accept two-part shorthand ("2.4") and wildcard
branches ("3.x").`,
	Example: `  posture check --type webServer --name apache --version 2.4.49
  posture check --type database --name mysql --version 5.7 --json`,
	Run: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkType, "type", "", "Software type key in the knowledge base (e.g. webServer)")
	checkCmd.Flags().StringVar(&checkName, "name", "", "Software name (e.g. apache)")
	checkCmd.Flags().StringVar(&checkVersion, "version", "", "Installed version to classify")
	checkCmd.Flags().StringVar(&checkKBPath, "kb", "", "Knowledge base file (overrides config)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output the verdict as JSON")

	_ = checkCmd.MarkFlagRequired("type")
	_ = checkCmd.MarkFlagRequired("name")
	_ = checkCmd.MarkFlagRequired("version")
}

func runCheck(_ *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	kbPath := cfg.KnowledgeBase.Path
	if checkKBPath != "" {
		kbPath = checkKBPath
	}

	base, err := kb.Load(kbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading knowledge base: %v\n", err)
		os.Exit(1)
	}

	verdict := buildVerdict(base, checkType, checkName, checkVersion)

	if checkJSON {
		data, err := json.MarshalIndent(verdict, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding verdict: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	renderVerdict(os.Stdout, verdict)
}

// buildVerdict runs both classifications against the knowledge base.
func buildVerdict(base *kb.KnowledgeBase, softwareType, name, rawVersion string) *checkVerdict {
	vulns := ver.FindVulnerabilities(softwareType, name, rawVersion, base)
	return &checkVerdict{
		SoftwareType:    softwareType,
		Name:            name,
		Version:         rawVersion,
		Known:           vulns != nil,
		Outdated:        ver.CheckOutdated(softwareType, name, rawVersion, base),
		Vulnerabilities: vulns,
	}
}

func renderVerdict(w *os.File, verdict *checkVerdict) {
	if !verdict.Known {
		fmt.Fprintf(w, "%s/%s is not tracked by the knowledge base\n",
			verdict.SoftwareType, verdict.Name)
		return
	}

	if o := verdict.Outdated; o != nil {
		state := "current"
		if o.IsOutdated {
			state = "outdated"
		}
		fmt.Fprintf(w, "%s %s: %s (latest %s", verdict.Name, verdict.Version, state, o.LatestVersion)
		if o.LatestInBranch != "" {
			fmt.Fprintf(w, ", branch latest %s", o.LatestInBranch)
		}
		fmt.Fprint(w, ")\n")
		if o.EOL {
			fmt.Fprintf(w, "branch is end-of-life")
			if o.EndOfSupportDate != "" {
				fmt.Fprintf(w, " since %s", o.EndOfSupportDate)
			}
			fmt.Fprintln(w)
		}
	}

	if len(verdict.Vulnerabilities) == 0 {
		fmt.Fprintln(w, "no known vulnerabilities match this version")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("CVE", "Severity", "Fixed In", "Description")
	for _, v := range verdict.Vulnerabilities {
		_ = table.Append([]string{v.CVE, v.Severity, v.FixedInVersion, v.Description})
	}
	_ = table.Render()
}
