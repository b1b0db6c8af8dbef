package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/anchorsec/posture/internal/errors"
)

const (
	defaultCommandTimeout = 30 * time.Second
	defaultDialTimeout    = 10 * time.Second
	defaultSSHPort        = 22
)

// SSHConfig holds the settings needed to establish an SSH session.
type SSHConfig struct {
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	User           string        `yaml:"user" json:"user"`
	KeyFile        string        `yaml:"key_file,omitempty" json:"key_file,omitempty"`
	Password       string        `yaml:"password,omitempty" json:"-"`
	KnownHostsFile string        `yaml:"known_hosts_file,omitempty" json:"known_hosts_file,omitempty"`
	Insecure       bool          `yaml:"insecure" json:"insecure"`
	DialTimeout    time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout" json:"command_timeout"`
}

// SSHExecutor runs commands over an established SSH connection, one session
// per command. Safe for sequential use within a single scan; the detector
// never issues concurrent commands.
type SSHExecutor struct {
	client         *ssh.Client
	target         string
	commandTimeout time.Duration
}

// NewSSHExecutor wraps an already-established SSH client. A zero timeout
// falls back to the default per-command timeout.
func NewSSHExecutor(client *ssh.Client, target string, commandTimeout time.Duration) *SSHExecutor {
	if commandTimeout <= 0 {
		commandTimeout = defaultCommandTimeout
	}
	return &SSHExecutor{
		client:         client,
		target:         target,
		commandTimeout: commandTimeout,
	}
}

// Dial establishes an SSH connection described by cfg and returns an
// executor bound to it, along with a close function for the underlying
// connection.
func Dial(cfg SSHConfig) (*SSHExecutor, func() error, error) {
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, nil, err
	}

	hostKeyCallback, err := hostKeyPolicy(cfg)
	if err != nil {
		return nil, nil, err
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultSSHPort
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", port))
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	})
	if err != nil {
		return nil, nil, errors.WrapProbeErrorWithTarget(errors.CodeSessionClosed,
			"Failed to establish SSH session", cfg.Host, err)
	}

	return NewSSHExecutor(client, cfg.Host, cfg.CommandTimeout), client.Close, nil
}

func authMethods(cfg SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if cfg.KeyFile != "" {
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapConfigError(errors.CodeFileNotFound, "Cannot read SSH key file", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.WrapConfigError(errors.CodeValidation, "Cannot parse SSH private key", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}
	if len(methods) == 0 {
		return nil, errors.ErrConfigMissing("ssh.key_file or ssh.password")
	}
	return methods, nil
}

func hostKeyPolicy(cfg SSHConfig) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsFile != "" {
		callback, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, errors.WrapConfigError(errors.CodeFileNotFound, "Cannot load known_hosts file", err)
		}
		return callback, nil
	}
	if cfg.Insecure {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicit opt-in
	}
	return nil, errors.ErrConfigMissing("ssh.known_hosts_file (or ssh.insecure)")
}

// Execute runs one command in a fresh session, bounded by the per-command
// timeout and the caller's context.
func (e *SSHExecutor) Execute(ctx context.Context, command string) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	session, err := e.client.NewSession()
	if err != nil {
		return Output{}, errors.WrapProbeErrorWithTarget(errors.CodeSessionClosed,
			"Cannot open SSH session", e.target, err).WithCommand(command)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		// Abandon the session; Close tears down the channel so the
		// goroutine's Run returns.
		_ = session.Signal(ssh.SIGKILL)
		if ctx.Err() == context.DeadlineExceeded {
			return Output{}, errors.ErrProbeTimeout(e.target, command)
		}
		return Output{}, errors.WrapProbeErrorWithTarget(errors.CodeCanceled,
			"Probe canceled", e.target, ctx.Err()).WithCommand(command)
	case err := <-done:
		output := Output{Stdout: stdout.String(), Stderr: stderr.String()}
		if err == nil {
			return output, nil
		}
		if exitErr, ok := err.(*ssh.ExitError); ok {
			output.ExitCode = exitErr.ExitStatus()
			return output, nil
		}
		return Output{}, errors.ErrCommandFailed(e.target, command, err)
	}
}
