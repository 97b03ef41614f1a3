// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/internal/config"
)

// defaultUserAgent is applied at launch when target.user_agent is unset.
// Storefronts serve a different markup skeleton to obvious bots, which
// would invalidate every selector the flow depends on.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// launchProbeTimeout bounds the post-launch responsiveness check.
const launchProbeTimeout = 30 * time.Second

// The desktop breakpoint. Below roughly 1200px wide the storefront swaps
// to its tablet layout and the search bar moves behind a toggle.
const (
	viewportWidth  = 1366
	viewportHeight = 768
)

// Manager handles the lifecycle of the headless browser process. All
// session contexts are derived from its allocator context.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	userAgent string

	// wg tracks active sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager initializes the browser manager and launches the browser process.
func NewManager(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*Manager, error) {
	m := &Manager{
		logger:    logger.Named("browser_manager"),
		cfg:       cfg,
		userAgent: cfg.Target.UserAgent,
	}
	if m.userAgent == "" {
		m.userAgent = defaultUserAgent
	}

	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

// launchBrowser starts the headless browser process and confirms it answers.
func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	// A blank navigation proves the process came up before any scenario
	// gets handed a session.
	if err := m.probeBrowser(); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched and responsive.")
	return nil
}

func (m *Manager) probeBrowser() error {
	probeCtx, cancelTimeout := context.WithTimeout(m.allocatorCtx, launchProbeTimeout)
	defer cancelTimeout()
	probeCtx, cancelProbe := chromedp.NewContext(probeCtx)
	defer cancelProbe()

	return chromedp.Run(probeCtx, chromedp.Navigate("about:blank"))
}

// launchFlags is the set of Chrome flags the probe overrides or adds on top
// of chromedp's defaults. Kept as plain data so tests can assert on it
// without spawning a browser.
func (m *Manager) launchFlags() map[string]any {
	flags := map[string]any{
		"headless":                  m.cfg.Browser.Headless,
		"ignore-certificate-errors": m.cfg.Browser.IgnoreTLSErrors,
		// A false bool drops the flag from the command line entirely;
		// enable-automation is how the defaults advertise automation.
		"enable-automation": false,
		// Keeps navigator.webdriver unset so the storefront serves the
		// same markup it serves a real visitor.
		"disable-blink-features": "AutomationControlled",
		"disable-extensions":     true,
		"disable-gpu":            m.cfg.Browser.Headless,
		"window-size":            fmt.Sprintf("%d,%d", viewportWidth, viewportHeight),
		"user-agent":             m.userAgent,
	}

	// Custom arguments from config.yaml, "--name=value" or bare "--name".
	for _, arg := range m.cfg.Browser.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if hasValue {
			flags[name] = value
			continue
		}
		flags[name] = true
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}

	return flags
}

// buildAllocatorOptions layers the probe's flags over chromedp's defaults.
// Allocator flags live in a map, so a later Flag overrides a default.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range m.launchFlags() {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// NewSession creates a new, fully isolated browser context (tab). The
// caller owns the session and must Close it.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	s := newSession(m.allocatorCtx, m.cfg, m.logger)
	if err := s.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	m.wg.Add(1)
	s.done = m.wg.Done
	return s, nil
}

// Shutdown waits for active sessions to finish, then terminates the browser
// process. The context bounds how long the session drain may take.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutting down; waiting for active sessions.")

	sessionsDone := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(sessionsDone)
	}()

	select {
	case <-sessionsDone:
		m.logger.Debug("All sessions returned.")
	case <-ctx.Done():
		m.logger.Warn("Session drain deadline exceeded; terminating the browser anyway.", zap.Error(ctx.Err()))
	}

	if m.allocatorCancel == nil {
		return nil
	}
	m.allocatorCancel()
	// The allocator context closing confirms the process is gone.
	<-m.allocatorCtx.Done()
	m.logger.Info("Browser process terminated.")
	return nil
}
