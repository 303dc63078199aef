package drift

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAsTaskErrorPreservesUnwrap(t *testing.T) {
	t.Parallel()

	rootCause := errors.New("connection reset")
	err := fmt.Errorf(
		"outer wrapper: %w",
		&TaskError{
			Op:         "generate insight",
			Kind:       FailureKindTransient,
			Provider:   "anthropic",
			RetryAfter: 3 * time.Second,
			Code:       500,
			Cause:      rootCause,
		},
	)

	taskErr, ok := AsTaskError(err)
	if !ok {
		t.Fatal("AsTaskError = false, want true")
	}
	if taskErr.Kind != FailureKindTransient {
		t.Fatalf("kind = %s, want %s", taskErr.Kind, FailureKindTransient)
	}
	if taskErr.Op != "generate insight" {
		t.Fatalf("op = %s, want generate insight", taskErr.Op)
	}
	if !errors.Is(err, rootCause) {
		t.Fatalf("errors.Is(err, rootCause) = false, want true (err=%v)", err)
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{
			name: "nil error",
			err:  nil,
			want: FailureKindUnknown,
		},
		{
			name: "plain error",
			err:  errors.New("plain"),
			want: FailureKindUnknown,
		},
		{
			name: "wrapped task error",
			err: fmt.Errorf("wrapped: %w", &TaskError{
				Op:    "generate digest",
				Kind:  FailureKindPermanent,
				Cause: errors.New("missing api key"),
			}),
			want: FailureKindPermanent,
		},
		{
			name: "context deadline",
			err:  fmt.Errorf("work: %w", context.DeadlineExceeded),
			want: FailureKindTimeout,
		},
		{
			name: "context canceled",
			err:  fmt.Errorf("work: %w", context.Canceled),
			want: FailureKindCanceled,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := ClassifyError(testCase.err); got != testCase.want {
				t.Fatalf("ClassifyError = %s, want %s", got, testCase.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   FailureKind
	}{
		{status: 400, want: FailureKindPermanent},
		{status: 401, want: FailureKindPermanent},
		{status: 404, want: FailureKindPermanent},
		{status: 429, want: FailureKindRateLimited},
		{status: 500, want: FailureKindTransient},
		{status: 503, want: FailureKindTransient},
	}

	for _, testCase := range tests {
		if got := ClassifyStatus(testCase.status); got != testCase.want {
			t.Fatalf("ClassifyStatus(%d) = %s, want %s", testCase.status, got, testCase.want)
		}
	}
}

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

func TestClassifyTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{
			name: "nil error",
			err:  nil,
			want: FailureKindUnknown,
		},
		{
			name: "network timeout",
			err:  fmt.Errorf("dial: %w", timeoutNetError{}),
			want: FailureKindTransient,
		},
		{
			name: "connection refused",
			err:  errors.New("dial tcp 127.0.0.1:443: connect: connection refused"),
			want: FailureKindTransient,
		},
		{
			name: "unknown host",
			err:  errors.New("lookup api.example.invalid: no such host"),
			want: FailureKindTransient,
		},
		{
			name: "context deadline keeps timeout kind",
			err:  fmt.Errorf("request: %w", context.DeadlineExceeded),
			want: FailureKindTimeout,
		},
		{
			name: "context canceled keeps canceled kind",
			err:  fmt.Errorf("request: %w", context.Canceled),
			want: FailureKindCanceled,
		},
		{
			name: "anything else stays unknown",
			err:  errors.New("unexpected response shape"),
			want: FailureKindUnknown,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := ClassifyTransport(testCase.err); got != testCase.want {
				t.Fatalf("ClassifyTransport = %s, want %s", got, testCase.want)
			}
		})
	}
}

func TestFailureKindRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind FailureKind
		want bool
	}{
		{kind: FailureKindTransient, want: true},
		{kind: FailureKindRateLimited, want: true},
		{kind: FailureKindPermanent, want: false},
		{kind: FailureKindTimeout, want: false},
		{kind: FailureKindCanceled, want: false},
		{kind: FailureKindUnknown, want: false},
	}

	for _, testCase := range tests {
		if got := testCase.kind.Retryable(); got != testCase.want {
			t.Fatalf("%s retryable = %v, want %v", testCase.kind, got, testCase.want)
		}
	}
}

func TestRetryAfterHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		wantDuration time.Duration
		wantOK       bool
	}{
		{
			name: "plain error",
			err:  errors.New("plain"),
		},
		{
			name: "permanent task error",
			err: &TaskError{
				Op:    "generate",
				Kind:  FailureKindPermanent,
				Cause: errors.New("bad request"),
			},
		},
		{
			name: "rate limited with hint",
			err: fmt.Errorf("wrapped: %w", &TaskError{
				Op:         "generate",
				Kind:       FailureKindRateLimited,
				RetryAfter: 7 * time.Second,
				Cause:      errors.New("too many requests"),
			}),
			wantDuration: 7 * time.Second,
			wantOK:       true,
		},
		{
			name: "rate limited without hint",
			err: &TaskError{
				Op:    "generate",
				Kind:  FailureKindRateLimited,
				Cause: errors.New("too many requests"),
			},
			wantOK: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			gotDuration, gotOK := RetryAfterHint(testCase.err)
			if gotOK != testCase.wantOK {
				t.Fatalf("ok = %v, want %v", gotOK, testCase.wantOK)
			}
			if gotDuration != testCase.wantDuration {
				t.Fatalf("duration = %s, want %s", gotDuration, testCase.wantDuration)
			}
		})
	}
}
