package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorsec/posture/internal/kb"
)

func testKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	base, err := kb.Parse([]byte(`
software:
  webServer:
    apache:
      latest_version: "2.4.58"
      branches:
        "2.4":
          latest_version: "2.4.58"
          eol: false
          end_of_support: "2026-06-01"
        "2.2":
          latest_version: "2.2.34"
          eol: true
          end_of_support: "2017-07-11"
      vulnerabilities:
        - cve: CVE-2021-41773
          description: Path traversal and RCE
          severity: critical
          affected_versions: ["2.4.49", "2.4.50"]
          fixed_in: "2.4.51"
    nginx:
      latest_version: "1.25.3"
      vulnerabilities:
        - cve: CVE-2021-23017
          description: DNS resolver off-by-one
          severity: high
          affected_versions: ["<1.21.0"]
          fixed_in: "1.21.0"
  database:
    postgresql:
      latest_version: "16.1"
      branches:
        "12":
          latest_version: "12.17"
          eol: false
          end_of_support: "2024-11-14"
          vulnerabilities:
            - cve: CVE-2023-5869
              severity: high
              affected_versions: ["<12.17"]
              fixed_in: "12.17"
`))
	require.NoError(t, err)
	return base
}

func TestCheckOutdated(t *testing.T) {
	base := testKB(t)

	t.Run("outdated against branch", func(t *testing.T) {
		result := CheckOutdated("webServer", "apache", "2.4.49", base)
		require.NotNil(t, result)
		assert.True(t, result.IsOutdated)
		assert.Equal(t, "2.4.58", result.LatestVersion)
		assert.Equal(t, "2.4.58", result.LatestInBranch)
		assert.False(t, result.EOL)
		assert.Equal(t, "2026-06-01", result.EndOfSupportDate)
	})

	t.Run("current in branch", func(t *testing.T) {
		result := CheckOutdated("webServer", "apache", "2.4.58", base)
		require.NotNil(t, result)
		assert.False(t, result.IsOutdated)
	})

	t.Run("eol branch", func(t *testing.T) {
		result := CheckOutdated("webServer", "apache", "2.2.34", base)
		require.NotNil(t, result)
		assert.True(t, result.EOL)
		assert.Equal(t, "2017-07-11", result.EndOfSupportDate)
		// Current for its branch but behind the global latest.
		assert.True(t, result.IsOutdated)
	})

	t.Run("no branches falls back to global latest", func(t *testing.T) {
		result := CheckOutdated("webServer", "nginx", "1.18.0", base)
		require.NotNil(t, result)
		assert.True(t, result.IsOutdated)
		assert.Empty(t, result.LatestInBranch)
	})

	t.Run("major-only branch key", func(t *testing.T) {
		result := CheckOutdated("database", "postgresql", "12.15", base)
		require.NotNil(t, result)
		assert.True(t, result.IsOutdated)
		assert.Equal(t, "12.17", result.LatestInBranch)
	})

	t.Run("unknown software returns nil", func(t *testing.T) {
		assert.Nil(t, CheckOutdated("webServer", "caddy", "2.7.0", base))
		assert.Nil(t, CheckOutdated("mailServer", "postfix", "3.8.0", base))
	})

	t.Run("empty inputs return nil", func(t *testing.T) {
		assert.Nil(t, CheckOutdated("webServer", "", "2.4.49", base))
		assert.Nil(t, CheckOutdated("webServer", "apache", "", base))
	})

	t.Run("unparseable version uses string inequality", func(t *testing.T) {
		result := CheckOutdated("webServer", "apache", "snapshot-build", base)
		require.NotNil(t, result)
		assert.True(t, result.IsOutdated)
		assert.Equal(t, "2.4.58", result.LatestVersion)
	})

	t.Run("nil knowledge base", func(t *testing.T) {
		assert.Nil(t, CheckOutdated("webServer", "apache", "2.4.49", nil))
	})
}

func TestFindVulnerabilities(t *testing.T) {
	base := testKB(t)

	t.Run("exact version match", func(t *testing.T) {
		vulns := FindVulnerabilities("webServer", "apache", "2.4.49", base)
		require.Len(t, vulns, 1)
		assert.Equal(t, "CVE-2021-41773", vulns[0].CVE)
		assert.Equal(t, "critical", vulns[0].Severity)
		assert.Equal(t, "2.4.51", vulns[0].FixedInVersion)
	})

	t.Run("operator pattern match", func(t *testing.T) {
		vulns := FindVulnerabilities("webServer", "nginx", "1.18.0", base)
		require.Len(t, vulns, 1)
		assert.Equal(t, "CVE-2021-23017", vulns[0].CVE)
	})

	t.Run("fixed version does not match", func(t *testing.T) {
		vulns := FindVulnerabilities("webServer", "nginx", "1.21.0", base)
		require.NotNil(t, vulns)
		assert.Empty(t, vulns)
	})

	t.Run("patched exact version does not match", func(t *testing.T) {
		vulns := FindVulnerabilities("webServer", "apache", "2.4.51", base)
		require.NotNil(t, vulns)
		assert.Empty(t, vulns)
	})

	t.Run("branch rules are included", func(t *testing.T) {
		vulns := FindVulnerabilities("database", "postgresql", "12.15", base)
		require.Len(t, vulns, 1)
		assert.Equal(t, "CVE-2023-5869", vulns[0].CVE)
	})

	t.Run("unknown software returns nil", func(t *testing.T) {
		assert.Nil(t, FindVulnerabilities("webServer", "caddy", "2.7.0", base))
	})

	t.Run("empty inputs return nil", func(t *testing.T) {
		assert.Nil(t, FindVulnerabilities("webServer", "apache", "", base))
		assert.Nil(t, FindVulnerabilities("webServer", "", "2.4.49", base))
	})

	t.Run("normalized version matches pattern", func(t *testing.T) {
		// Banner-style version string still matches after coercion.
		vulns := FindVulnerabilities("webServer", "nginx", "nginx/1.18.0", base)
		require.Len(t, vulns, 1)
	})
}

func TestFindBranchKeyPriority(t *testing.T) {
	base, err := kb.Parse([]byte(`
software:
  runtime:
    node:
      latest_version: "21.5.0"
      branches:
        "18.19":
          latest_version: "18.19.0"
        "18":
          latest_version: "18.19.0"
        "18.x":
          latest_version: "18.19.0"
`))
	require.NoError(t, err)

	entry, ok := base.LookupSoftware("runtime", "node")
	require.True(t, ok)

	// The most specific key wins.
	branch := findBranch(entry, "18.19.0")
	require.NotNil(t, branch)
	assert.Same(t, entry.Branches["18.19"], branch)

	// Falls through to the plain major key.
	branch = findBranch(entry, "18.2.0")
	require.NotNil(t, branch)
	assert.Same(t, entry.Branches["18"], branch)
}
