// Package errors provides structured error handling for posture operations.
// It defines error codes, error types, and provides utilities for creating
// and handling errors with context and structured information.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodePermission    ErrorCode = "PERMISSION"

	// Remote probing errors.
	CodeSessionClosed ErrorCode = "SESSION_CLOSED"
	CodeProbeFailed   ErrorCode = "PROBE_FAILED"
	CodeCommandFailed ErrorCode = "COMMAND_FAILED"
	CodeParseFailed   ErrorCode = "PARSE_FAILED"
	CodeNoSession     ErrorCode = "NO_SESSION"

	// Knowledge-base errors.
	CodeKBNotFound  ErrorCode = "KB_NOT_FOUND"
	CodeKBMalformed ErrorCode = "KB_MALFORMED"
	CodeKBEntry     ErrorCode = "KB_ENTRY"

	// Version handling errors.
	CodeVersionInvalid  ErrorCode = "VERSION_INVALID"
	CodeVersionOperator ErrorCode = "VERSION_OPERATOR"

	// File system errors.
	CodeFileNotFound   ErrorCode = "FILE_NOT_FOUND"
	CodeFilePermission ErrorCode = "FILE_PERMISSION"
)

// ProbeError represents an error that occurred while probing a remote target.
type ProbeError struct {
	Code    ErrorCode
	Message string
	Target  string
	Command string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// WithCommand records the remote command that triggered the error.
func (e *ProbeError) WithCommand(command string) *ProbeError {
	e.Command = command
	return e
}

// WithContext adds context information to the error.
func (e *ProbeError) WithContext(key string, value interface{}) *ProbeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewProbeError creates a new probe error with the specified code and message.
func NewProbeError(code ErrorCode, message string) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewProbeErrorWithTarget creates a probe error for a specific target.
func NewProbeErrorWithTarget(code ErrorCode, message, target string) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Target:  target,
		Context: make(map[string]interface{}),
	}
}

// WrapProbeError wraps an existing error as a probe error.
func WrapProbeError(code ErrorCode, message string, err error) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapProbeErrorWithTarget wraps an error with target information.
func WrapProbeErrorWithTarget(code ErrorCode, message, target string, err error) *ProbeError {
	return &ProbeError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// KnowledgeBaseError represents errors raised while loading or querying
// the version knowledge base.
type KnowledgeBaseError struct {
	Code     ErrorCode
	Message  string
	Software string
	Path     string
	Cause    error
}

// Error implements the error interface.
func (e *KnowledgeBaseError) Error() string {
	if e.Software != "" {
		return fmt.Sprintf("[%s] %s (software: %s)", e.Code, e.Message, e.Software)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *KnowledgeBaseError) Unwrap() error {
	return e.Cause
}

// WithPath records the knowledge-base file the error relates to.
func (e *KnowledgeBaseError) WithPath(path string) *KnowledgeBaseError {
	e.Path = path
	return e
}

// NewKnowledgeBaseError creates a new knowledge-base error.
func NewKnowledgeBaseError(code ErrorCode, message string) *KnowledgeBaseError {
	return &KnowledgeBaseError{
		Code:    code,
		Message: message,
	}
}

// WrapKnowledgeBaseError wraps an existing error as a knowledge-base error.
func WrapKnowledgeBaseError(code ErrorCode, message string, err error) *KnowledgeBaseError {
	return &KnowledgeBaseError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// VersionError represents version parsing and comparison errors.
type VersionError struct {
	Code     ErrorCode
	Message  string
	Version  string
	Operator string
	Cause    error
}

// Error implements the error interface.
func (e *VersionError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("[%s] %s (version: %q)", e.Code, e.Message, e.Version)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *VersionError) Unwrap() error {
	return e.Cause
}

// NewVersionError creates a new version error.
func NewVersionError(code ErrorCode, message, version string) *VersionError {
	return &VersionError{
		Code:    code,
		Message: message,
		Version: version,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	switch e := err.(type) {
	case *ProbeError:
		return e.Code == code
	case *KnowledgeBaseError:
		return e.Code == code
	case *VersionError:
		return e.Code == code
	case *ConfigError:
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ProbeError:
		return e.Code
	case *KnowledgeBaseError:
		return e.Code
	case *VersionError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable determines if an error indicates a retryable condition.
func IsRetryable(err error) bool {
	code := GetCode(err)
	switch code {
	case CodeTimeout, CodeSessionClosed, CodeCommandFailed:
		return true
	default:
		return false
	}
}

// IsFatal determines if an error indicates a fatal condition that should stop execution.
func IsFatal(err error) bool {
	code := GetCode(err)
	switch code {
	case CodePermission, CodeConfiguration, CodeKBMalformed:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrNoSession creates an error for scans attempted without a remote session.
func ErrNoSession(target string) *ProbeError {
	return NewProbeErrorWithTarget(CodeNoSession, "No remote session supplied", target)
}

// ErrProbeTimeout creates an error for probe command timeouts.
func ErrProbeTimeout(target, command string) *ProbeError {
	return NewProbeErrorWithTarget(CodeTimeout, "Probe command timed out", target).WithCommand(command)
}

// ErrCommandFailed creates an error for remote command failures.
func ErrCommandFailed(target, command string, err error) *ProbeError {
	return WrapProbeErrorWithTarget(CodeCommandFailed, "Remote command failed", target, err).WithCommand(command)
}

// ErrKBFileMissing creates an error for a missing knowledge-base file.
func ErrKBFileMissing(path string, err error) *KnowledgeBaseError {
	return WrapKnowledgeBaseError(CodeFileNotFound, "Knowledge base file not found", err).WithPath(path)
}

// ErrKBMalformed creates an error for unparseable knowledge-base content.
func ErrKBMalformed(path string, err error) *KnowledgeBaseError {
	return WrapKnowledgeBaseError(CodeKBMalformed, "Knowledge base content is malformed", err).WithPath(path)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}
