// Package invoker wraps remote agent calls with bounded retries, exponential
// backoff with jitter, and a per-attempt timeout that grows after timeouts.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/globaltrustbank/loanorch/internal/agent"
)

// Config controls retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Timeout bounds the first attempt.
	Timeout time.Duration
	// MaxTimeout caps the grown per-attempt timeout.
	MaxTimeout time.Duration
	// TimeoutFactor grows the timeout after an attempt times out.
	TimeoutFactor float64
	// BaseDelay is the backoff base: BaseDelay * 2^attempt.
	BaseDelay time.Duration
	// MaxJitter is the upper bound of the random delay added to each backoff.
	MaxJitter time.Duration
}

// DefaultConfig returns the production retry policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		Timeout:       120 * time.Second,
		MaxTimeout:    300 * time.Second,
		TimeoutFactor: 1.5,
		BaseDelay:     2 * time.Second,
		MaxJitter:     time.Second,
	}
}

// ThreadHolder stores the conversation continuation token between calls.
type ThreadHolder interface {
	Thread() string
	SetThread(thread string)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Result describes one Invoke call.
type Result struct {
	Attempts     int
	Timeouts     []time.Duration
	Slept        time.Duration
	LastError    error
	TotalElapsed time.Duration
}

// ErrExhausted is returned when every attempt failed with a retryable error.
var ErrExhausted = errors.New("agent retries exhausted")

// Invoker is a RetryingInvoker.
type Invoker struct {
	cfg   Config
	sleep SleepFunc
	rnd   func() float64
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithSleep replaces the backoff sleep. Tests use it to avoid real delays.
func WithSleep(fn SleepFunc) Option {
	return func(i *Invoker) { i.sleep = fn }
}

// WithRand replaces the jitter source.
func WithRand(fn func() float64) Option {
	return func(i *Invoker) { i.rnd = fn }
}

// New creates an invoker.
func New(cfg Config, opts ...Option) *Invoker {
	inv := &Invoker{
		cfg:   cfg,
		sleep: sleepContext,
		rnd:   rand.Float64,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Config returns the invoker's default policy.
func (i *Invoker) Config() Config {
	return i.cfg
}

// CallOption overrides the policy for a single call.
type CallOption func(*Config)

// WithMaxRetries overrides MaxRetries for one call.
func WithMaxRetries(n int) CallOption {
	return func(c *Config) { c.MaxRetries = n }
}

// WithTimeout overrides the first-attempt timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(c *Config) { c.Timeout = d }
}

// Invoke calls the agent until it answers, a non-retryable error occurs, or
// the retry budget is spent. A non-nil error means the stage did not complete.
// The returned text is trimmed and never empty on success.
func (i *Invoker) Invoke(ctx context.Context, h agent.Handle, message string, threads ThreadHolder, opts ...CallOption) (string, error) {
	text, _, err := i.InvokeWithResult(ctx, h, message, threads, opts...)
	return text, err
}

// InvokeWithResult is Invoke with per-call statistics.
func (i *Invoker) InvokeWithResult(ctx context.Context, h agent.Handle, message string, threads ThreadHolder, opts ...CallOption) (string, Result, error) {
	cfg := i.cfg
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	res := Result{}
	timeout := cfg.Timeout

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			res.LastError = err
			res.TotalElapsed = time.Since(start)
			return "", res, err
		}

		res.Attempts = attempt + 1
		res.Timeouts = append(res.Timeouts, timeout)

		text, err := i.attempt(ctx, h, message, threads, timeout)
		if err == nil {
			observeAttempt(h.Name(), outcomeSuccess)
			res.TotalElapsed = time.Since(start)
			observeInvocation(h.Name(), res)
			return text, res, nil
		}
		res.LastError = err

		// Caller cancellation is not an attempt failure.
		if ctx.Err() != nil {
			res.TotalElapsed = time.Since(start)
			return "", res, ctx.Err()
		}

		if !agent.IsRetryable(err) {
			observeAttempt(h.Name(), outcomePermanent)
			log.Printf("ERROR: agent %s failed with non-retryable error: %v", h.Name(), err)
			res.TotalElapsed = time.Since(start)
			observeInvocation(h.Name(), res)
			return "", res, err
		}

		if agent.IsTimeout(err) {
			observeAttempt(h.Name(), outcomeTimeout)
			timeout = growTimeout(timeout, cfg.TimeoutFactor, cfg.MaxTimeout)
		} else {
			observeAttempt(h.Name(), outcomeTransient)
		}

		if attempt == cfg.MaxRetries {
			break
		}

		wait := i.backoff(cfg, attempt)
		log.Printf("WARN: agent %s attempt %d/%d failed: %v; retrying in %s", h.Name(), attempt+1, cfg.MaxRetries+1, err, wait.Round(time.Millisecond))
		if err := i.sleep(ctx, wait); err != nil {
			res.LastError = err
			res.TotalElapsed = time.Since(start)
			return "", res, err
		}
		res.Slept += wait
	}

	res.TotalElapsed = time.Since(start)
	observeInvocation(h.Name(), res)
	log.Printf("ERROR: agent %s did not respond after %d attempts: %v", h.Name(), res.Attempts, res.LastError)
	return "", res, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, res.Attempts, res.LastError)
}

func (i *Invoker) attempt(ctx context.Context, h agent.Handle, message string, threads ThreadHolder, timeout time.Duration) (string, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	thread := ""
	if threads != nil {
		thread = threads.Thread()
	}

	resp, err := invokeWithin(attemptCtx, h, message, thread)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", &agent.TransientError{Op: "invoke " + h.Name(), Timeout: true, Err: err}
		}
		return "", err
	}
	if resp == nil {
		return "", agent.ErrNoResponse
	}

	if threads != nil && resp.Thread != "" {
		threads.SetThread(resp.Thread)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", agent.ErrNoResponse
	}
	return text, nil
}

type invokeOutcome struct {
	resp *agent.Response
	err  error
}

// invokeWithin returns when the handle answers or ctx is done, whichever is
// first. A handle that ignores ctx is left to finish in the background.
func invokeWithin(ctx context.Context, h agent.Handle, message, thread string) (*agent.Response, error) {
	done := make(chan invokeOutcome, 1)
	go func() {
		resp, err := h.Invoke(ctx, message, thread)
		done <- invokeOutcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *Invoker) backoff(cfg Config, attempt int) time.Duration {
	d := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)))
	if cfg.MaxJitter > 0 {
		d += time.Duration(i.rnd() * float64(cfg.MaxJitter))
	}
	return d
}

func growTimeout(current time.Duration, factor float64, max time.Duration) time.Duration {
	if factor <= 1 {
		return current
	}
	next := time.Duration(float64(current) * factor)
	if max > 0 && next > max {
		return max
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
