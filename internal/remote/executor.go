// Package remote defines the remote command execution capability used by
// the posture scanner and provides an SSH-backed implementation plus a
// replay double for tests. The scanner never establishes sessions on its
// own; callers hand it an Executor bound to an already-established session.
package remote

import (
	"context"
)

// Output is the result of running a single remote command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs a single command against an established remote session.
// A non-zero exit code is not an error: it is a valid Output. Implementations
// return an error only for transport-level failures (closed session, timeout,
// canceled context), and must bound each command with a per-command timeout
// so one unresponsive command degrades to a skipped probe instead of
// stalling the whole scan.
type Executor interface {
	Execute(ctx context.Context, command string) (Output, error)
}
