package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNoResponse is returned when the agent completed without any text.
var ErrNoResponse = errors.New("agent returned no response")

// TransientError marks a failure worth retrying (timeouts, resets, throttling).
type TransientError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransientError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transient agent error: %v", e.Err)
	}
	return fmt.Sprintf("transient agent error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("permanent agent error: %v", e.Err)
	}
	return fmt.Sprintf("permanent agent error during %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(op string, err error) error {
	return &PermanentError{Op: op, Err: err}
}

// IsRetryable reports whether err should consume another attempt.
// Only typed transient errors and network timeouts qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var tr *TransientError
	if errors.As(err, &tr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsTimeout reports whether err is an attempt timeout.
func IsTimeout(err error) bool {
	var tr *TransientError
	if errors.As(err, &tr) && tr.Timeout {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
