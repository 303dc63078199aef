package drift

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// FailureKind describes coarse-grained task failure classification.
//
// Classification is structural: retry policy keys off the kind, never off
// error message text.
type FailureKind string

const (
	// FailureKindTransient indicates a failure worth one automatic retry.
	FailureKindTransient FailureKind = "transient"
	// FailureKindRateLimited indicates provider-side rate limiting, retryable.
	FailureKindRateLimited FailureKind = "rate_limited"
	// FailureKindPermanent indicates a non-retryable failure such as missing
	// credentials or explicit provider unavailability.
	FailureKindPermanent FailureKind = "permanent"
	// FailureKindTimeout indicates the task exceeded its execution timeout.
	FailureKindTimeout FailureKind = "timeout"
	// FailureKindCanceled indicates cancellation before or during execution.
	FailureKindCanceled FailureKind = "canceled"
	// FailureKindUnknown indicates an unclassified failure, not retried.
	FailureKindUnknown FailureKind = "unknown"
)

// Retryable reports whether the coordinator may retry a failure of this kind.
func (k FailureKind) Retryable() bool {
	return k == FailureKindTransient || k == FailureKindRateLimited
}

// TaskError carries structured metadata for one background task failure.
type TaskError struct {
	// Op names the failing operation, e.g. "generate insight".
	Op string
	// Kind classifies whether and how the coordinator should retry.
	Kind FailureKind
	// Provider identifies the AI backend that produced the failure when known.
	Provider string
	// RetryAfter carries a suggested retry delay for rate-limited failures when known.
	RetryAfter time.Duration
	// Code carries an optional transport status code when known.
	Code int
	// Cause is the wrapped underlying error.
	Cause error
}

// Error returns one operator-readable failure summary.
func (e *TaskError) Error() string {
	if e == nil {
		return "<nil>"
	}

	fields := make([]string, 0, 5)
	if op := strings.TrimSpace(e.Op); op != "" {
		fields = append(fields, "op="+op)
	}
	if kind := strings.TrimSpace(string(e.Kind)); kind != "" {
		fields = append(fields, "kind="+kind)
	}
	if provider := strings.TrimSpace(e.Provider); provider != "" {
		fields = append(fields, "provider="+provider)
	}
	if e.RetryAfter > 0 {
		fields = append(fields, "retry_after="+e.RetryAfter.String())
	}
	if e.Code != 0 {
		fields = append(fields, fmt.Sprintf("code=%d", e.Code))
	}

	if len(fields) == 0 {
		if e.Cause == nil {
			return "task error"
		}
		return fmt.Sprintf("task error: %v", e.Cause)
	}

	if e.Cause == nil {
		return "task error: " + strings.Join(fields, " ")
	}
	return "task error: " + strings.Join(fields, " ") + ": " + e.Cause.Error()
}

// Unwrap returns the wrapped root cause.
func (e *TaskError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}

// AsTaskError extracts one TaskError from wrapped error chains.
func AsTaskError(err error) (*TaskError, bool) {
	if err == nil {
		return nil, false
	}

	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr, true
	}

	return nil, false
}

// ClassifyError returns the failure kind of err.
//
// Unwrapped context errors classify as timeout/canceled; everything without a
// TaskError in its chain classifies unknown.
func ClassifyError(err error) FailureKind {
	if err == nil {
		return FailureKindUnknown
	}
	if taskErr, ok := AsTaskError(err); ok && taskErr.Kind != "" {
		return taskErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return FailureKindCanceled
	}

	return FailureKindUnknown
}

// ClassifyStatus maps one HTTP status code to a failure kind: 429 is
// rate-limited, server errors are transient, everything else is permanent.
func ClassifyStatus(status int) FailureKind {
	switch {
	case status == 429:
		return FailureKindRateLimited
	case status >= 500:
		return FailureKindTransient
	default:
		return FailureKindPermanent
	}
}

// ClassifyTransport maps transport-level errors that carry no HTTP status.
// Context expiry keeps its timeout/canceled kind, network timeouts and
// unreachable hosts classify transient, anything else stays unknown.
func ClassifyTransport(err error) FailureKind {
	if err == nil {
		return FailureKindUnknown
	}
	if kind := ClassifyError(err); kind == FailureKindTimeout || kind == FailureKindCanceled {
		return kind
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureKindTransient
	}
	message := err.Error()
	if strings.Contains(message, "connection refused") || strings.Contains(message, "no such host") {
		return FailureKindTransient
	}

	return FailureKindUnknown
}

// RetryAfterHint extracts a retry delay from rate-limited task errors.
//
// It returns (0, false) when err is not classified rate-limited, and
// (0, true) when rate-limited without a known delay.
func RetryAfterHint(err error) (time.Duration, bool) {
	taskErr, ok := AsTaskError(err)
	if !ok || taskErr.Kind != FailureKindRateLimited {
		return 0, false
	}

	return taskErr.RetryAfter, true
}
