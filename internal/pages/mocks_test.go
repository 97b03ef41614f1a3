// File: internal/pages/mocks_test.go
package pages

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/probeworks/shopflow-cli/internal/browser"
	"github.com/probeworks/shopflow-cli/internal/config"
)

// -- Mock Implementations --

// mockExecutor is an in-memory stand-in for the chromedp-backed executor.
// Page state is described up front with the visible/texts/counts maps and
// every interaction is recorded so tests can assert on what was driven.
type mockExecutor struct {
	mu sync.Mutex

	// Page state the mock serves.
	visible  map[string]bool
	texts    map[string]string
	counts   map[string]int
	location string
	docTitle string

	// Scripted failures.
	failFill    map[string]error
	failClick   map[string]error
	navigateErr error

	// Recorded interactions.
	navigations []string
	clicks      []string
	nthClicks   []string
	fills       map[string]string
	keys        map[string]string
	attached    []target.ID

	newTargets chan target.ID
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{
		// The document body is visible on any loaded page.
		visible:    map[string]bool{"body": true},
		texts:      map[string]string{},
		counts:     map[string]int{},
		failFill:   map[string]error{},
		failClick:  map[string]error{},
		fills:      map[string]string{},
		keys:       map[string]string{},
		newTargets: make(chan target.ID, 1),
	}
}

func (m *mockExecutor) Navigate(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.navigateErr != nil {
		return m.navigateErr
	}
	m.navigations = append(m.navigations, url)
	m.location = url
	return nil
}

// WaitVisible resolves immediately for selectors marked visible and
// otherwise blocks until the caller's budget expires, the way a real
// wait against an element that never appears would.
func (m *mockExecutor) WaitVisible(ctx context.Context, selector string) error {
	m.mu.Lock()
	ok := m.visible[selector]
	m.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockExecutor) Click(_ context.Context, selector string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failClick[selector]; err != nil {
		return err
	}
	m.clicks = append(m.clicks, selector)
	return nil
}

func (m *mockExecutor) ClickNth(_ context.Context, selector string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failClick[selector]; err != nil {
		return err
	}
	m.nthClicks = append(m.nthClicks, fmt.Sprintf("%s#%d", selector, index))
	return nil
}

func (m *mockExecutor) Fill(_ context.Context, selector, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFill[selector]; err != nil {
		return err
	}
	m.fills[selector] = value
	return nil
}

func (m *mockExecutor) SendKeys(_ context.Context, selector, keys string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[selector] = keys
	return nil
}

func (m *mockExecutor) Text(_ context.Context, selector string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.texts[selector], nil
}

func (m *mockExecutor) Count(_ context.Context, selector string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[selector], nil
}

func (m *mockExecutor) Location(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location, nil
}

func (m *mockExecutor) Title(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docTitle, nil
}

func (m *mockExecutor) Evaluate(_ context.Context, _ string, _ interface{}) error {
	return nil
}

func (m *mockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockExecutor) WaitNewTarget(_ context.Context) <-chan target.ID {
	return m.newTargets
}

func (m *mockExecutor) AttachTarget(ctx context.Context, id target.ID) (context.Context, context.CancelFunc) {
	m.mu.Lock()
	m.attached = append(m.attached, id)
	m.mu.Unlock()
	return context.WithCancel(ctx)
}

// -- Test Fixtures --

// newTestConfig shrinks every budget so resolution misses cost
// milliseconds instead of seconds.
func newTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Target.BaseURL = "https://shop.example.pk"
	cfg.Flow.RetryAttempts = 3
	cfg.Timeouts = config.TimeoutsConfig{
		Lookup:        250 * time.Millisecond,
		PopupBudget:   60 * time.Millisecond,
		FilterInput:   150 * time.Millisecond,
		FilterApply:   100 * time.Millisecond,
		FilterSettle:  10 * time.Millisecond,
		ResultsSettle: 10 * time.Millisecond,
		Navigation:    500 * time.Millisecond,
		NewTabWait:    80 * time.Millisecond,
		RetryDelay:    5 * time.Millisecond,
		PostLoadWait:  time.Millisecond,
	}
	return cfg
}

func newTestEnv(t *testing.T, exec browser.Executor) *Env {
	t.Helper()
	return NewEnv(exec, newTestConfig(), rate.NewLimiter(rate.Inf, 1), zaptest.NewLogger(t))
}
