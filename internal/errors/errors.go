// Package errors provides error classification and handling for optimize-table.
package errors

import (
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType represents the classification of errors
type ErrorType int

const (
	// SetupErrorType represents configuration, inventory, or argument errors
	SetupErrorType ErrorType = iota

	// AuthenticationErrorType represents SSH authentication failures
	AuthenticationErrorType

	// ResolutionErrorType represents hosts that could not be resolved or reached
	ResolutionErrorType

	// ConnectionErrorType represents network or SSH transport errors
	ConnectionErrorType

	// ExecutionErrorType represents remote command failures
	ExecutionErrorType

	// UnknownErrorType represents unclassified errors
	UnknownErrorType
)

// String returns a string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case SetupErrorType:
		return "setup"
	case AuthenticationErrorType:
		return "authentication"
	case ResolutionErrorType:
		return "resolution"
	case ConnectionErrorType:
		return "connection"
	case ExecutionErrorType:
		return "execution"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an error with classification information
type ClassifiedError struct {
	Type     ErrorType
	Original error
	Message  string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		if ce.Original != nil {
			return ce.Message + ": " + ce.Original.Error()
		}
		return ce.Message
	}
	if ce.Original != nil {
		return ce.Original.Error()
	}
	return "unknown error"
}

// Unwrap returns the original error for error unwrapping
func (ce *ClassifiedError) Unwrap() error {
	return ce.Original
}

// ClassifyError analyzes an error and returns its classification.
// An error that already carries a classification keeps it.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified
	}

	if isResolutionError(err) {
		return &ClassifiedError{Type: ResolutionErrorType, Original: err}
	}

	errStr := strings.ToLower(err.Error())

	if isAuthenticationError(errStr) {
		return &ClassifiedError{Type: AuthenticationErrorType, Original: err}
	}

	if isConnectionError(errStr) {
		return &ClassifiedError{Type: ConnectionErrorType, Original: err}
	}

	return &ClassifiedError{Type: UnknownErrorType, Original: err}
}

// TypeOf returns the classification of err, or UnknownErrorType for nil
func TypeOf(err error) ErrorType {
	if ce := ClassifyError(err); ce != nil {
		return ce.Type
	}
	return UnknownErrorType
}

// isResolutionError checks if the host could not be resolved or reached:
// a failed DNS lookup or an unreachable host or network.
func isResolutionError(err error) bool {
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return true
	}
	if stderrors.Is(err, syscall.EHOSTUNREACH) || stderrors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	resolutionKeywords := []string{
		"no such host",
		"name or service not known",
		"temporary failure in name resolution",
		"no route to host",
		"network is unreachable",
		"network unreachable",
		"host is unreachable",
		"host unreachable",
	}

	errStr := strings.ToLower(err.Error())
	for _, keyword := range resolutionKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

// isAuthenticationError checks if an error is related to SSH authentication
func isAuthenticationError(errStr string) bool {
	authKeywords := []string{
		"unable to authenticate",
		"no supported methods remain",
		"authentication failed",
		"permission denied",
		"invalid user",
		"access denied",
	}

	for _, keyword := range authKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

// isConnectionError checks if an error is related to network connectivity
func isConnectionError(errStr string) bool {
	connectionKeywords := []string{
		"connection refused",
		"connection reset",
		"connection lost",
		"connection closed",
		"broken pipe",
		"connection aborted",
		"handshake failed",
		"i/o timeout",
		"unexpected eof",
		"eof",
	}

	for _, keyword := range connectionKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

// NewSetupError creates a new setup error
func NewSetupError(message string, original error) *ClassifiedError {
	return &ClassifiedError{
		Type:     SetupErrorType,
		Original: original,
		Message:  message,
	}
}

// NewConnectionError creates a new connection error
func NewConnectionError(message string, original error) *ClassifiedError {
	return &ClassifiedError{
		Type:     ConnectionErrorType,
		Original: original,
		Message:  message,
	}
}

// NewExecutionError creates a new execution error
func NewExecutionError(message string, original error) *ClassifiedError {
	return &ClassifiedError{
		Type:     ExecutionErrorType,
		Original: original,
		Message:  message,
	}
}

// IsSetupError reports whether err is classified as a setup error
func IsSetupError(err error) bool {
	var classified *ClassifiedError
	return stderrors.As(err, &classified) && classified.Type == SetupErrorType
}

// Setupf formats a setup error message
func Setupf(format string, args ...any) *ClassifiedError {
	return NewSetupError(fmt.Sprintf(format, args...), nil)
}

// ErrorCollector collects and categorizes per-server errors
type ErrorCollector struct {
	errors map[ErrorType][]error
	order  []ErrorType
	count  int
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make(map[ErrorType][]error),
	}
}

// Add adds an error to the collector
func (ec *ErrorCollector) Add(err error) {
	if err == nil {
		return
	}

	t := TypeOf(err)
	if _, seen := ec.errors[t]; !seen {
		ec.order = append(ec.order, t)
	}
	ec.errors[t] = append(ec.errors[t], err)
	ec.count++
}

// Count returns the total number of errors
func (ec *ErrorCollector) Count() int {
	return ec.count
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	return ec.count > 0
}

// Summary returns a summary of all collected errors
func (ec *ErrorCollector) Summary() string {
	if ec.count == 0 {
		return "no errors"
	}

	parts := make([]string, 0, len(ec.order))
	for _, errorType := range ec.order {
		parts = append(parts, fmt.Sprintf("%d %s", len(ec.errors[errorType]), errorType.String()))
	}

	return fmt.Sprintf("total: %d errors (%s)", ec.count, strings.Join(parts, ", "))
}
