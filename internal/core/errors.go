package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrCacheMiss is returned by VerdictCache implementations when no entry
// exists for an email id.
var ErrCacheMiss = errors.New("cache miss")

// TransientServiceError wraps a provider or transport failure that is worth
// retrying: network errors, rate-limit rejections, 5xx-equivalents, attempt
// timeouts.
type TransientServiceError struct {
	Err error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("transient service error: %v", e.Err)
}

func (e *TransientServiceError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports bad or missing required configuration. It is
// fatal and aborts a run before any email is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// FailureKind buckets a terminal per-email error for run summaries.
func FailureKind(err error) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return string(vErr.Kind)
	}
	var tErr *TransientServiceError
	if errors.As(err, &tErr) {
		return "TransientServiceError"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Canceled"
	}
	return "Unknown"
}
