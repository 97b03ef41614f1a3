// File: internal/action/retry.go
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/internal/locate"
)

// TransientError marks an error as retryable regardless of its message.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so the retrier treats it as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// transientMarkers are driver message fragments indicating the DOM moved
// underneath an action: the element was re-rendered, replaced, or not yet
// interactive. These are worth a second look after a pause.
var transientMarkers = []string{
	"detached from document",
	"stale element",
	"node with given id does not belong to the document",
	"could not find node",
	"cannot find context with specified id",
	"not clickable",
}

// IsTransient classifies an error as retryable. Absence of an element is
// a finding about the page and is never transient; neither is the caller
// giving up.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if locate.IsNotFound(err) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Retrier re-runs interactions that failed transiently, with a fixed
// pause between attempts.
type Retrier struct {
	attempts int
	delay    time.Duration
	logger   *zap.Logger
}

// NewRetrier creates a retrier capped at the given total attempt count.
func NewRetrier(attempts int, delay time.Duration, logger *zap.Logger) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrier{
		attempts: attempts,
		delay:    delay,
		logger:   logger.Named("retry"),
	}
}

// Do runs fn until it succeeds, fails non-transiently, or the attempt
// ceiling is reached. The first non-transient error is returned as-is;
// an exhausted ceiling wraps the last transient error.
func (r *Retrier) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == r.attempts {
			break
		}

		r.logger.Debug("Transient failure, retrying after delay.",
			zap.String("action", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", r.delay),
			zap.Error(lastErr))

		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, r.attempts, lastErr)
}
