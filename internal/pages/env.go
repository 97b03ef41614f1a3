// File: internal/pages/env.go

// Package pages wraps the storefront's surfaces (home, results, product
// detail) as page objects. Each page object owns the tab context it was
// created against, the way a browser session does; all waits and
// interactions run through the shared Env, which carries the executor,
// the selector resolver, the popup dismisser, the retrier, and the
// navigation rate limiter.
package pages

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/probeworks/shopflow-cli/internal/action"
	"github.com/probeworks/shopflow-cli/internal/browser"
	"github.com/probeworks/shopflow-cli/internal/config"
	"github.com/probeworks/shopflow-cli/internal/locate"
	"github.com/probeworks/shopflow-cli/internal/popup"
)

// Env bundles everything a page object needs to act on the browser.
// One Env serves one scenario; the Limiter is the exception and is
// shared across scenarios to keep total navigation pressure polite.
type Env struct {
	Exec     browser.Executor
	Cfg      *config.Config
	Logger   *zap.Logger
	Resolver *locate.Resolver
	Popups   *popup.Dismisser
	Retry    *action.Retrier
	Limiter  *rate.Limiter
}

// NewEnv wires the resilience layer around an executor. The limiter is
// passed in rather than built here so concurrent scenarios share it.
func NewEnv(exec browser.Executor, cfg *config.Config, limiter *rate.Limiter, logger *zap.Logger) *Env {
	return &Env{
		Exec:     exec,
		Cfg:      cfg,
		Logger:   logger.Named("pages"),
		Resolver: locate.NewResolver(exec, logger),
		Popups:   popup.NewDismisser(exec, cfg.Timeouts.PopupBudget, logger),
		Retry:    action.NewRetrier(cfg.Flow.RetryAttempts, cfg.Timeouts.RetryDelay, logger),
		Limiter:  limiter,
	}
}

// navigate loads a URL under the navigation budget and waits for the
// page body. Storefronts keep painting after the load event, so a short
// post-load pause follows before the caller proceeds.
func (e *Env) navigate(ctx context.Context, url string) error {
	if err := e.Limiter.Wait(ctx); err != nil {
		return err
	}
	nctx, cancel := context.WithTimeout(ctx, e.Cfg.Timeouts.Navigation)
	defer cancel()
	if err := e.Exec.Navigate(nctx, url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := e.Exec.WaitVisible(nctx, "body"); err != nil {
		return fmt.Errorf("page body for %s: %w", url, err)
	}
	return e.Exec.Sleep(ctx, e.Cfg.Timeouts.PostLoadWait)
}

// lookup resolves a page concept that is expected to exist, spending the
// full lookup budget as one shared deadline.
func (e *Env) lookup(ctx context.Context, chain locate.Chain) (locate.Strategy, error) {
	return e.Resolver.FirstVisible(ctx, chain, e.Cfg.Timeouts.Lookup, locate.SharedDeadline)
}

// lookupControl resolves optional confirm controls with the short apply
// budget. Callers treat absence as the cue to use a keyboard fallback.
func (e *Env) lookupControl(ctx context.Context, chain locate.Chain) (locate.Strategy, error) {
	return e.Resolver.FirstVisible(ctx, chain, e.Cfg.Timeouts.FilterApply, locate.SharedDeadline)
}
