// Command posture is the security posture scanner CLI entry point.
package main

import (
	"github.com/anchorsec/posture/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
