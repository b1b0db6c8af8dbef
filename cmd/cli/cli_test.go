package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorsec/posture/internal/config"
	"github.com/anchorsec/posture/internal/kb"
)

func TestCommandRegistration(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"scan", "check", "kb"} {
		assert.True(t, names[want], "command %q must be registered", want)
	}

	var kbNames []string
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "kb" {
			for _, sub := range cmd.Commands() {
				kbNames = append(kbNames, sub.Name())
			}
		}
	}
	assert.Contains(t, kbNames, "validate")
	assert.Contains(t, kbNames, "info")
}

func TestSplitTargets(t *testing.T) {
	assert.Equal(t, []string{"web01", "web02"}, splitTargets("web01, web02"))
	assert.Equal(t, []string{"web01"}, splitTargets("web01,,"))
	assert.Nil(t, splitTargets(" , "))
}

func TestApplyScanFlags(t *testing.T) {
	cfg := config.Default()
	scanUser = "audit"
	scanKeyFile = "/tmp/key"
	scanKBPath = "/tmp/kb.yaml"
	scanWorkers = 3
	t.Cleanup(func() {
		scanUser, scanKeyFile, scanKBPath, scanWorkers = "", "", "", 0
	})

	applyScanFlags(cfg)

	assert.Equal(t, "audit", cfg.SSH.User)
	assert.Equal(t, "/tmp/key", cfg.SSH.KeyFile)
	assert.Equal(t, "/tmp/kb.yaml", cfg.KnowledgeBase.Path)
	assert.Equal(t, 3, cfg.Scan.WorkerPoolSize)
}

func TestBuildVerdict(t *testing.T) {
	base, err := kb.Parse([]byte(`
software:
  webServer:
    apache:
      latest_version: 2.4.58
      vulnerabilities:
        - cve: CVE-2021-41773
          severity: critical
          affected_versions: ["2.4.49"]
          fixed_in: 2.4.51
`))
	require.NoError(t, err)

	t.Run("tracked software", func(t *testing.T) {
		verdict := buildVerdict(base, "webServer", "apache", "2.4.49")

		assert.True(t, verdict.Known)
		require.NotNil(t, verdict.Outdated)
		assert.True(t, verdict.Outdated.IsOutdated)
		require.Len(t, verdict.Vulnerabilities, 1)
		assert.Equal(t, "CVE-2021-41773", verdict.Vulnerabilities[0].CVE)
	})

	t.Run("unknown software", func(t *testing.T) {
		verdict := buildVerdict(base, "webServer", "caddy", "2.7.6")

		assert.False(t, verdict.Known)
		assert.Nil(t, verdict.Outdated)
		assert.Nil(t, verdict.Vulnerabilities)
	})
}

func TestVersionString(t *testing.T) {
	SetVersion("1.2.3", "abc1234", "2026-01-01")
	assert.Equal(t, "1.2.3 (commit: abc1234, built: 2026-01-01)", rootCmd.Version)
}
