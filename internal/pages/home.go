// File: internal/pages/home.go
package pages

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/internal/locate"
)

// Home is the storefront's landing surface.
type Home struct {
	env *Env
	ctx context.Context
}

// NewHome binds a home page object to a session context.
func NewHome(ctx context.Context, env *Env) *Home {
	return &Home{env: env, ctx: ctx}
}

// Open loads the storefront root and clears any greeting overlay.
func (h *Home) Open() error {
	if err := h.env.navigate(h.ctx, h.env.Cfg.Target.BaseURL); err != nil {
		return fmt.Errorf("open storefront: %w", err)
	}
	h.env.Popups.Dismiss(h.ctx)
	return nil
}

// Search submits a keyword query and returns the results surface once
// the grid has settled.
func (h *Home) Search(keyword string) (*Results, error) {
	log := h.env.Logger.With(zap.String("keyword", keyword))

	input, err := h.env.lookup(h.ctx, searchInput)
	if err != nil {
		return nil, fmt.Errorf("search input: %w", err)
	}
	if err := h.env.Retry.Do(h.ctx, "fill search input", func(ctx context.Context) error {
		return h.env.Exec.Fill(ctx, input.Selector, keyword)
	}); err != nil {
		return nil, fmt.Errorf("fill search input: %w", err)
	}

	// Prefer the dedicated button; some layouts hide it and expect Enter.
	submit, err := h.env.lookupControl(h.ctx, searchSubmit)
	switch {
	case err == nil:
		err = h.env.Retry.Do(h.ctx, "click search submit", func(ctx context.Context) error {
			return h.env.Exec.Click(ctx, submit.Selector)
		})
	case locate.IsNotFound(err):
		log.Debug("Search submit control absent, confirming with Enter.")
		err = h.env.Exec.SendKeys(h.ctx, input.Selector, kb.Enter)
	}
	if err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}
	log.Info("Search submitted.")

	results := newResults(h.ctx, h.env)
	if err := results.waitReady(); err != nil {
		return nil, err
	}
	return results, nil
}
