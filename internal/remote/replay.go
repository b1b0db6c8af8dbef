package remote

import (
	"context"
	"sync"

	"github.com/anchorsec/posture/internal/errors"
)

// ReplayExecutor replays a fixed command→output map without a real session.
// Commands with no recorded output return exit code 127 and an empty stdout,
// mimicking a shell that cannot find the command. It records every executed
// command so tests can assert on probe ordering.
type ReplayExecutor struct {
	mu       sync.Mutex
	outputs  map[string]Output
	failures map[string]error
	calls    []string
}

// NewReplayExecutor creates a replay executor from a command→Output map.
func NewReplayExecutor(outputs map[string]Output) *ReplayExecutor {
	if outputs == nil {
		outputs = make(map[string]Output)
	}
	return &ReplayExecutor{
		outputs:  outputs,
		failures: make(map[string]error),
	}
}

// Stub registers or replaces the output for a command.
func (r *ReplayExecutor) Stub(command string, output Output) *ReplayExecutor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[command] = output
	return r
}

// StubStdout registers a zero-exit output with the given stdout.
func (r *ReplayExecutor) StubStdout(command, stdout string) *ReplayExecutor {
	return r.Stub(command, Output{Stdout: stdout})
}

// Fail registers a transport-level failure for a command.
func (r *ReplayExecutor) Fail(command string, err error) *ReplayExecutor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[command] = err
	return r
}

// Execute implements Executor.
func (r *ReplayExecutor) Execute(ctx context.Context, command string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, errors.WrapProbeError(errors.CodeCanceled, "Probe canceled", err).WithCommand(command)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, command)

	if err, ok := r.failures[command]; ok {
		return Output{}, err
	}
	if output, ok := r.outputs[command]; ok {
		return output, nil
	}
	return Output{ExitCode: 127}, nil
}

// Calls returns the commands executed so far, in order.
func (r *ReplayExecutor) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := make([]string, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// Called reports whether a command has been executed.
func (r *ReplayExecutor) Called(command string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == command {
			return true
		}
	}
	return false
}
