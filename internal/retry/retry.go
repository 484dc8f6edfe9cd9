// Package retry classifies transient failures and builds the backoff policy
// used when fetching from remote sources.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// BackOff returns an exponential policy bounded by MaxAttempts and bound to
// ctx.
func (c Config) BackOff(ctx context.Context) backoff.BackOff {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}

	if c.MaxAttempts == 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialDelay,
		RandomizationFactor: 0.2,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1)), ctx)
}

// Operation adapts fn for backoff.Retry: errors that are not transient stop
// the loop at once.
func Operation(fn func() error) backoff.Operation {
	return func() error {
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
}

// TransientError marks an error as worth retrying, e.g. an upstream 5xx.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"temporary failure",
	"network is unreachable",
	"eof",
}

// IsTransient reports whether err looks like a network hiccup rather than a
// definite answer from the remote side.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
