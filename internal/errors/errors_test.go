package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		CodeUnknown,
		CodeValidation,
		CodeConfiguration,
		CodeTimeout,
		CodeCanceled,
		CodePermission,
		CodeSessionClosed,
		CodeProbeFailed,
		CodeCommandFailed,
		CodeParseFailed,
		CodeNoSession,
		CodeKBNotFound,
		CodeKBMalformed,
		CodeKBEntry,
		CodeVersionInvalid,
		CodeVersionOperator,
		CodeFileNotFound,
		CodeFilePermission,
	}

	for _, code := range codes {
		if string(code) == "" {
			t.Errorf("Error code %v should not be empty", code)
		}
	}
}

func TestProbeError(t *testing.T) {
	t.Run("basic error creation", func(t *testing.T) {
		err := NewProbeError(CodeProbeFailed, "probe failed")
		if err.Code != CodeProbeFailed {
			t.Errorf("Expected code %s, got %s", CodeProbeFailed, err.Code)
		}
		if err.Message != "probe failed" {
			t.Errorf("Expected message 'probe failed', got '%s'", err.Message)
		}
		if err.Context == nil {
			t.Error("Context should be initialized")
		}
	})

	t.Run("error with target", func(t *testing.T) {
		err := NewProbeErrorWithTarget(CodeCommandFailed, "command failed", "192.168.1.1")
		if err.Target != "192.168.1.1" {
			t.Errorf("Expected target '192.168.1.1', got '%s'", err.Target)
		}
		expected := "[COMMAND_FAILED] command failed (target: 192.168.1.1)"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("error without target", func(t *testing.T) {
		err := NewProbeError(CodeValidation, "validation failed")
		expected := "[VALIDATION] validation failed"
		if err.Error() != expected {
			t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("wrapped error", func(t *testing.T) {
		cause := fmt.Errorf("connection reset")
		err := WrapProbeError(CodeSessionClosed, "session lost", cause)
		if err.Unwrap() != cause {
			t.Error("Unwrap should return the original cause")
		}
		if !errors.Is(err, cause) {
			t.Error("errors.Is should match the wrapped cause")
		}
	})

	t.Run("with command and context", func(t *testing.T) {
		err := NewProbeError(CodeTimeout, "timed out").
			WithCommand("uname -a").
			WithContext("attempt", 2)
		if err.Command != "uname -a" {
			t.Errorf("Expected command 'uname -a', got '%s'", err.Command)
		}
		if err.Context["attempt"] != 2 {
			t.Error("Context value should be stored")
		}
	})
}

func TestKnowledgeBaseError(t *testing.T) {
	t.Run("with software", func(t *testing.T) {
		err := NewKnowledgeBaseError(CodeKBEntry, "entry missing")
		err.Software = "apache"
		expected := "[KB_ENTRY] entry missing (software: apache)"
		if err.Error() != expected {
			t.Errorf("Expected '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("with path", func(t *testing.T) {
		cause := fmt.Errorf("yaml: line 3")
		err := ErrKBMalformed("/etc/posture/kb.yaml", cause)
		if err.Path != "/etc/posture/kb.yaml" {
			t.Errorf("Expected path to be recorded, got '%s'", err.Path)
		}
		if err.Unwrap() != cause {
			t.Error("Unwrap should return the yaml error")
		}
	})
}

func TestVersionError(t *testing.T) {
	err := NewVersionError(CodeVersionInvalid, "cannot normalize", "not-a-version")
	expected := `[VERSION_INVALID] cannot normalize (version: "not-a-version")`
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}

func TestConfigError(t *testing.T) {
	t.Run("field error", func(t *testing.T) {
		err := ErrConfigInvalid("probe.command_timeout", -1)
		expected := "[VALIDATION] Invalid configuration value (field: probe.command_timeout)"
		if err.Error() != expected {
			t.Errorf("Expected '%s', got '%s'", expected, err.Error())
		}
	})

	t.Run("missing field", func(t *testing.T) {
		err := ErrConfigMissing("knowledge_base.path")
		if err.Code != CodeConfiguration {
			t.Errorf("Expected code %s, got %s", CodeConfiguration, err.Code)
		}
	})
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"probe error match", NewProbeError(CodeTimeout, "x"), CodeTimeout, true},
		{"probe error mismatch", NewProbeError(CodeTimeout, "x"), CodeCanceled, false},
		{"kb error match", NewKnowledgeBaseError(CodeKBMalformed, "x"), CodeKBMalformed, true},
		{"version error match", NewVersionError(CodeVersionInvalid, "x", "v"), CodeVersionInvalid, true},
		{"config error match", NewConfigError(CodeConfiguration, "x"), CodeConfiguration, true},
		{"plain error", fmt.Errorf("plain"), CodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCode(tt.err, tt.code); got != tt.want {
				t.Errorf("IsCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(fmt.Errorf("plain")) != CodeUnknown {
		t.Error("Plain errors should map to CodeUnknown")
	}
	if GetCode(NewProbeError(CodeNoSession, "x")) != CodeNoSession {
		t.Error("Probe error code should be extracted")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewProbeError(CodeTimeout, "x")) {
		t.Error("Timeouts should be retryable")
	}
	if !IsRetryable(NewProbeError(CodeSessionClosed, "x")) {
		t.Error("Closed sessions should be retryable")
	}
	if IsRetryable(NewProbeError(CodeNoSession, "x")) {
		t.Error("Missing sessions should not be retryable")
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(NewKnowledgeBaseError(CodeKBMalformed, "x")) {
		t.Error("Malformed KB should be fatal")
	}
	if IsFatal(NewProbeError(CodeTimeout, "x")) {
		t.Error("Timeouts should not be fatal")
	}
}
