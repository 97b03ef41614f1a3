// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/internal/config"
)

// Session is one isolated browser tab. Each scenario gets its own so a
// failure in one never disturbs another.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    *config.Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	isClosed bool
	done     func()
}

func newSession(allocatorCtx context.Context, cfg *config.Config, logger *zap.Logger) *Session {
	id := uuid.New().String()
	s := &Session{
		id:     id,
		cfg:    cfg,
		logger: logger.Named("session").With(zap.String("session_id", id[:8])),
	}

	var opts []chromedp.ContextOption
	if cfg.Browser.Debug {
		opts = append(opts, chromedp.WithDebugf(s.logger.Sugar().Debugf))
	}
	s.ctx, s.cancel = chromedp.NewContext(allocatorCtx, opts...)
	return s
}

// initialize creates the actual browser tab and applies the per-session
// environment: viewport emulation and cache policy.
func (s *Session) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeouts.Navigation)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(c context.Context) error {
			if s.cfg.Browser.DisableCache {
				return network.SetCacheDisabled(true).Do(c)
			}
			return nil
		}),
	}
	if w, h := s.cfg.Browser.Viewport["width"], s.cfg.Browser.Viewport["height"]; w > 0 && h > 0 {
		tasks = append(tasks, chromedp.EmulateViewport(int64(w), int64(h)))
	}
	tasks = append(tasks, chromedp.Navigate("about:blank"))

	if err := chromedp.Run(initCtx, tasks); err != nil {
		s.cancel()
		return fmt.Errorf("session bootstrap failed: %w", err)
	}

	// Honor a caller that gave up while the tab was being prepared.
	if err := ctx.Err(); err != nil {
		s.cancel()
		return err
	}

	s.logger.Debug("Session initialized.")
	return nil
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// Context returns the chromedp context for this tab. Callers derive
// bounded contexts from it for individual operations.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close tears down the tab and signals completion to the manager. It is
// safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed {
		return nil
	}
	s.isClosed = true

	s.cancel()

	// Give the browser a moment to confirm the tab is gone.
	waitCtx, cancelWait := context.WithTimeout(ctx, 10*time.Second)
	defer cancelWait()
	select {
	case <-s.ctx.Done():
	case <-waitCtx.Done():
		s.logger.Warn("Timed out waiting for session teardown.", zap.Error(waitCtx.Err()))
	}

	if s.done != nil {
		s.done()
	}
	s.logger.Debug("Session closed.")
	return nil
}
