package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anchorsec/posture/internal/kb"
)

var kbPath string

// kbCmd groups knowledge-base maintenance commands.
var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect and validate the version knowledge base",
}

// kbValidateCmd validates a knowledge base file.
var kbValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a knowledge base file",
	Long: `Validate parses the knowledge base file, checks every entry against the
schema, and reports entry counts. A non-zero exit code means the file
cannot be used by the scanner.`,
	Example: `  posture kb validate --path ./kb.yaml`,
	Run:     runKBValidate,
}

// kbInfoCmd summarizes knowledge base contents.
var kbInfoCmd = &cobra.Command{
	Use:     "info",
	Short:   "Show tracked software and operating systems",
	Example: `  posture kb info --path ./kb.yaml`,
	Run:     runKBInfo,
}

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.AddCommand(kbValidateCmd)
	kbCmd.AddCommand(kbInfoCmd)

	kbCmd.PersistentFlags().StringVar(&kbPath, "path", "", "Knowledge base file (overrides config)")
}

func resolveKBPath() string {
	if kbPath != "" {
		return kbPath
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg.KnowledgeBase.Path
}

func runKBValidate(_ *cobra.Command, _ []string) {
	path := resolveKBPath()
	base, err := kb.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: invalid: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("%s: valid (%d software entries, %d OS entries)\n",
		path, base.SoftwareCount(), base.OSCount())
}

func runKBInfo(_ *cobra.Command, _ []string) {
	base, err := kb.Load(resolveKBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading knowledge base: %v\n", err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Type", "Name", "Latest", "Branches", "Vuln Rules")

	for _, softwareType := range sortedKeys(base.Software) {
		byName := base.Software[softwareType]
		for _, name := range sortedKeys(byName) {
			entry := byName[name]
			_ = table.Append([]string{
				softwareType,
				name,
				entry.LatestVersion,
				strconv.Itoa(len(entry.Branches)),
				strconv.Itoa(len(entry.Vulnerabilities)),
			})
		}
	}
	_ = table.Render()

	osTable := tablewriter.NewWriter(os.Stdout)
	osTable.Header("Distribution", "Version", "EOL", "Known Vulns", "Builds")

	for _, distribution := range sortedKeys(base.OperatingSystems) {
		byVersion := base.OperatingSystems[distribution]
		for _, osVersion := range sortedKeys(byVersion) {
			entry := byVersion[osVersion]
			_ = osTable.Append([]string{
				distribution,
				osVersion,
				strconv.FormatBool(entry.EOL),
				strconv.Itoa(len(entry.KnownVulnerabilities)),
				strconv.Itoa(len(entry.Builds)),
			})
		}
	}
	_ = osTable.Render()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
