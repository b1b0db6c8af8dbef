package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/anchorsec/posture/internal/config"
	"github.com/anchorsec/posture/internal/detect"
	"github.com/anchorsec/posture/internal/kb"
	"github.com/anchorsec/posture/internal/logging"
	"github.com/anchorsec/posture/internal/metrics"
	"github.com/anchorsec/posture/internal/remote"
	"github.com/anchorsec/posture/internal/workers"
)

var (
	scanTargets string
	scanUser    string
	scanKeyFile string
	scanKBPath  string
	scanWorkers int
	scanJSON    bool
	scanOutput  string
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan remote hosts for OS, patch level, and known vulnerabilities",
	Long: `Scan connects to each target over SSH, detects the operating system and
distribution, inspects the patch level through the native package manager,
and cross-references the result against the knowledge base for end-of-life
status and known vulnerabilities.`,
	Example: `  posture scan --targets web01.internal
  posture scan --targets "web01,web02,db01" --user audit --key ~/.ssh/id_ed25519
  posture scan --targets web01 --json
  posture scan --targets web01 --output report.json`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanTargets, "targets", "", "Comma-separated list of hosts to scan")
	scanCmd.Flags().StringVar(&scanUser, "user", "", "SSH user (overrides config)")
	scanCmd.Flags().StringVar(&scanKeyFile, "key", "", "SSH private key file (overrides config)")
	scanCmd.Flags().StringVar(&scanKBPath, "kb", "", "Knowledge base file (overrides config)")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Number of concurrent scan workers (overrides config)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output results as JSON")
	scanCmd.Flags().StringVar(&scanOutput, "output", "", "Write JSON results to a file instead of stdout")

	_ = scanCmd.MarkFlagRequired("targets")
}

// scanResult pairs one target with its detection outcome.
type scanResult struct {
	Target   string           `json:"target"`
	Record   *detect.OSRecord `json:"record,omitempty"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"-"`
	Elapsed  string           `json:"elapsed"`
}

func runScan(cmd *cobra.Command, _ []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyScanFlags(cfg)

	base, err := kb.Load(cfg.KnowledgeBase.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading knowledge base: %v\n", err)
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		startMetricsListener(cfg.Metrics.ListenAddr)
	}

	targets := splitTargets(scanTargets)
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no targets specified")
		os.Exit(1)
	}

	results := scanAll(cmd.Context(), cfg, base, targets)

	if scanJSON || scanOutput != "" {
		if err := writeJSONResults(results, scanOutput); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
			os.Exit(1)
		}
		return
	}
	renderScanTable(os.Stdout, results)
}

// applyScanFlags layers command-line overrides onto the loaded config.
func applyScanFlags(cfg *config.Config) {
	if scanUser != "" {
		cfg.SSH.User = scanUser
	}
	if scanKeyFile != "" {
		cfg.SSH.KeyFile = scanKeyFile
	}
	if scanKBPath != "" {
		cfg.KnowledgeBase.Path = scanKBPath
	}
	if scanWorkers > 0 {
		cfg.Scan.WorkerPoolSize = scanWorkers
	}
}

// scanAll fans the targets out over the worker pool and collects one result
// per target, in the original target order.
func scanAll(ctx context.Context, cfg *config.Config, base *kb.KnowledgeBase, targets []string) []*scanResult {
	detector := detect.NewDetector(base, logging.Default())

	byTarget := make(map[string]*scanResult, len(targets))
	jobTargets := make(map[string]string, len(targets))
	var mu sync.Mutex

	pool := workers.New(workers.Config{
		Size:              cfg.Scan.WorkerPoolSize,
		QueueSize:         len(targets),
		MaxRetries:        cfg.Scan.Retry.MaxRetries,
		RetryDelay:        cfg.Scan.Retry.RetryDelay,
		BackoffMultiplier: cfg.Scan.Retry.BackoffMultiplier,
		ShutdownTimeout:   cfg.Scan.TargetTimeout,
	})
	pool.Start()

	for _, target := range targets {
		job := workers.NewPostureScanJob(target, func(jobCtx context.Context, target string) error {
			record, err := scanTarget(jobCtx, cfg, detector, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				byTarget[target] = &scanResult{Target: target, Error: err.Error()}
				return err
			}
			byTarget[target] = &scanResult{Target: target, Record: record}
			return nil
		})
		jobTargets[job.ID()] = target
		if err := pool.Submit(job); err != nil {
			mu.Lock()
			byTarget[target] = &scanResult{Target: target, Error: err.Error()}
			mu.Unlock()
		}
	}

	for range targets {
		select {
		case result, ok := <-pool.Results():
			if !ok {
				continue
			}
			mu.Lock()
			if r := byTarget[jobTargets[result.JobID]]; r != nil {
				r.Duration = result.Duration
			}
			mu.Unlock()
		case <-ctx.Done():
		}
	}
	_ = pool.Shutdown()

	ordered := make([]*scanResult, 0, len(targets))
	for _, target := range targets {
		r := byTarget[target]
		if r == nil {
			r = &scanResult{Target: target, Error: "scan did not complete"}
		}
		r.Elapsed = r.Duration.Round(time.Millisecond).String()
		ordered = append(ordered, r)
	}
	return ordered
}

// scanTarget dials one target, runs detection, and tears the session down.
func scanTarget(ctx context.Context, cfg *config.Config, detector *detect.Detector, target string) (*detect.OSRecord, error) {
	scanCtx, cancel := context.WithTimeout(ctx, cfg.Scan.TargetTimeout)
	defer cancel()

	exec, closeFn, err := remote.Dial(cfg.SSHForTarget(target))
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", target, err)
	}
	defer func() {
		if closeErr := closeFn(); closeErr != nil {
			logging.Debug("Closing SSH connection failed", "target", target, "error", closeErr)
		}
	}()

	return detector.Detect(scanCtx, target, exec), nil
}

func splitTargets(raw string) []string {
	var targets []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

func writeJSONResults(results []*scanResult, path string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// renderScanTable prints one row per target.
func renderScanTable(w *os.File, results []*scanResult) {
	table := tablewriter.NewWriter(w)
	table.Header("Target", "OS", "Distribution", "Version", "Patch Level", "Pending Sec. Updates", "EOL", "Status")

	for _, r := range results {
		if r.Record == nil {
			_ = table.Append([]string{r.Target, "", "", "", "", "", "", r.Error})
			continue
		}

		record := r.Record
		eol := ""
		if record.EndOfLife != nil {
			eol = strconv.FormatBool(*record.EndOfLife)
		}
		status := "ok"
		if record.Type == "" {
			status = "unresolved"
		} else if len(record.MissingPatches) > 0 {
			status = fmt.Sprintf("%d missing patches", len(record.MissingPatches))
		}

		_ = table.Append([]string{
			r.Target,
			record.Type,
			record.Distribution,
			record.Version,
			record.PatchLevel,
			strconv.Itoa(record.SecurityUpdatesAvailable),
			eol,
			status,
		})
	}

	_ = table.Render()
}

// startMetricsListener exposes the private Prometheus registry.
func startMetricsListener(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		metrics.GetGlobalMetrics().Registry(),
		promhttp.HandlerOpts{},
	))

	go func() {
		server := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		logging.Info("Metrics listener started", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Metrics listener failed", "addr", addr, "error", err)
		}
	}()
}
