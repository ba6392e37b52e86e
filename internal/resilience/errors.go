// Package resilience classifies failures of external collaborators.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// ErrSourceUnavailable reports that an external collaborator could not be
// reached or returned data without a usable structure. It is fatal to the
// calling operation and never retried by this module.
var ErrSourceUnavailable = errors.New("source unavailable")

// SourceError wraps the collaborator failure behind ErrSourceUnavailable.
type SourceError struct {
	Source string
	Err    error
}

// Unavailable builds a SourceError for the named source.
func Unavailable(source string, err error) *SourceError {
	return &SourceError{Source: source, Err: err}
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return "source unavailable: " + e.Source
	}
	return "source unavailable: " + e.Source + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is matches ErrSourceUnavailable so callers can use errors.Is.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// TransientError wraps an error from a collaborator that may succeed on a
// later attempt (e.g., 429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient network patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
