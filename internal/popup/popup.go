// File: internal/popup/popup.go
package popup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/internal/locate"
)

// Executor is the slice of the browser executor the dismisser needs.
type Executor interface {
	WaitVisible(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
}

// dismissClickTimeout bounds the click on a located close control.
const dismissClickTimeout = 2 * time.Second

// DefaultChain returns the built-in close-control candidates, most
// specific first. Comma-separated selectors group equivalent variants
// under one strategy.
func DefaultChain() locate.Chain {
	return locate.Chain{
		Concept: "popup close control",
		Strategies: []locate.Strategy{
			{Name: "aria close button", Selector: `button[aria-label="Close"], button[aria-label="close"]`},
			{Name: "dialog close", Selector: `div[role="dialog"] [class*="close"]`},
			{Name: "modal close", Selector: `.modal-close`},
			{Name: "bootstrap dismiss", Selector: `[data-dismiss="modal"]`},
			{Name: "overlay close icon", Selector: `.popup-close, .overlay-close`},
			{Name: "newsletter opt-out", Selector: `.newsletter-close, .subscribe-close`},
		},
	}
}

// Dismisser clears blocking overlays before an interaction. Overlays are
// environmental noise: whether one existed and whether closing it worked
// must never decide a scenario's outcome, so Dismiss reports a boolean
// and swallows every failure.
type Dismisser struct {
	exec     Executor
	resolver *locate.Resolver
	chain    locate.Chain
	budget   time.Duration
	logger   *zap.Logger
}

// NewDismisser creates a dismisser that spends at most budget per call,
// split evenly across the candidate strategies.
func NewDismisser(exec Executor, budget time.Duration, logger *zap.Logger) *Dismisser {
	l := logger.Named("popup")
	return &Dismisser{
		exec:     exec,
		resolver: locate.NewResolver(exec, l),
		chain:    DefaultChain(),
		budget:   budget,
		logger:   l,
	}
}

// Dismiss probes for known popup close controls and clicks the first
// visible one. At most one dismissal happens per call; remaining
// candidates are left for the next call.
func (d *Dismisser) Dismiss(ctx context.Context) bool {
	s, err := d.resolver.FirstVisible(ctx, d.chain, d.budget, locate.DividedBudget)
	if err != nil {
		if !locate.IsNotFound(err) {
			d.logger.Debug("Popup probe aborted.", zap.Error(err))
		}
		return false
	}

	clickCtx, cancel := context.WithTimeout(ctx, dismissClickTimeout)
	defer cancel()
	if err := d.exec.Click(clickCtx, s.Selector); err != nil {
		d.logger.Warn("Found a popup close control but clicking it failed.",
			zap.String("strategy", s.Name),
			zap.Error(err))
		return false
	}

	d.logger.Info("Dismissed a popup.", zap.String("strategy", s.Name))
	return true
}
