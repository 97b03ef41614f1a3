// File: internal/locate/locate.go
package locate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Prober is the slice of the browser executor the resolver needs.
type Prober interface {
	WaitVisible(ctx context.Context, selector string) error
}

// Strategy is one way of finding a page concept, ranked within a Chain.
type Strategy struct {
	// Name describes the strategy for logs, e.g. "data-testid".
	Name string
	// Selector is the CSS selector the strategy probes.
	Selector string
}

// Chain is the ordered list of strategies for a single page concept,
// most specific first. Later entries are fallbacks for markup drift.
type Chain struct {
	Concept    string
	Strategies []Strategy
}

// Policy controls how a resolution budget is spent across strategies.
type Policy int

const (
	// DividedBudget splits the budget evenly: each strategy gets its
	// slice and is abandoned when the slice expires. Used where the
	// total wait must stay bounded regardless of how many strategies
	// exist, such as popup dismissal.
	DividedBudget Policy = iota
	// SharedDeadline runs all strategies under one absolute deadline,
	// probing candidates in short rounds so an early dead selector
	// cannot starve later ones. Used for single-concept lookups where
	// any match is equally acceptable.
	SharedDeadline
)

// probeRound is how long a single candidate is watched per round under
// the SharedDeadline policy.
const probeRound = 500 * time.Millisecond

// NotFoundError reports that no strategy in a chain matched a visible
// element within its budget. It is the expected-absence outcome and is
// distinguishable from infrastructure failures.
type NotFoundError struct {
	Concept string
	Budget  time.Duration
	Tried   []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no visible element for %q within %s (tried: %s)",
		e.Concept, e.Budget, strings.Join(e.Tried, ", "))
}

// IsNotFound reports whether err is a resolution miss rather than an
// infrastructure failure.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Resolver finds page concepts by walking candidate strategy chains.
type Resolver struct {
	prober Prober
	logger *zap.Logger
}

// NewResolver creates a resolver over the given prober.
func NewResolver(prober Prober, logger *zap.Logger) *Resolver {
	return &Resolver{
		prober: prober,
		logger: logger.Named("locate"),
	}
}

// FirstVisible resolves the chain to the first strategy whose selector
// matches a visible element, spending at most budget according to the
// policy. A miss returns *NotFoundError; a canceled or expired parent
// context returns the context error untouched.
func (r *Resolver) FirstVisible(ctx context.Context, chain Chain, budget time.Duration, policy Policy) (Strategy, error) {
	if len(chain.Strategies) == 0 {
		return Strategy{}, &NotFoundError{Concept: chain.Concept, Budget: budget}
	}

	switch policy {
	case SharedDeadline:
		return r.resolveShared(ctx, chain, budget)
	default:
		return r.resolveDivided(ctx, chain, budget)
	}
}

func (r *Resolver) resolveDivided(ctx context.Context, chain Chain, budget time.Duration) (Strategy, error) {
	slice := budget / time.Duration(len(chain.Strategies))

	for i, s := range chain.Strategies {
		hit, err := r.probe(ctx, s.Selector, slice)
		if err != nil {
			return Strategy{}, err
		}
		if hit {
			r.logHit(chain, i)
			return s, nil
		}
		r.logger.Debug("Strategy missed, moving to next candidate.",
			zap.String("concept", chain.Concept),
			zap.String("strategy", s.Name))
	}

	return Strategy{}, r.miss(chain, budget)
}

func (r *Resolver) resolveShared(ctx context.Context, chain Chain, budget time.Duration) (Strategy, error) {
	deadline := time.Now().Add(budget)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Strategy{}, r.miss(chain, budget)
		}

		for i, s := range chain.Strategies {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return Strategy{}, r.miss(chain, budget)
			}
			slice := probeRound
			if remaining < slice {
				slice = remaining
			}

			hit, err := r.probe(ctx, s.Selector, slice)
			if err != nil {
				return Strategy{}, err
			}
			if hit {
				r.logHit(chain, i)
				return s, nil
			}
		}
	}
}

// probe watches a selector for up to slice. It reports presence, absence
// (false, nil), or a parent-context failure.
func (r *Resolver) probe(ctx context.Context, selector string, slice time.Duration) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, slice)
	err := r.prober.WaitVisible(probeCtx, selector)
	cancel()

	if err == nil {
		return true, nil
	}
	// The caller giving up is an infrastructure condition, not absence.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	return false, nil
}

func (r *Resolver) logHit(chain Chain, index int) {
	if index == 0 {
		r.logger.Debug("Resolved concept with primary strategy.",
			zap.String("concept", chain.Concept),
			zap.String("strategy", chain.Strategies[0].Name))
		return
	}
	// A fallback match usually means the primary selector has drifted.
	r.logger.Info("Resolved concept with fallback strategy.",
		zap.String("concept", chain.Concept),
		zap.String("strategy", chain.Strategies[index].Name),
		zap.Int("rank", index))
}

func (r *Resolver) miss(chain Chain, budget time.Duration) error {
	tried := make([]string, len(chain.Strategies))
	for i, s := range chain.Strategies {
		tried[i] = s.Name
	}
	r.logger.Debug("No strategy resolved the concept.",
		zap.String("concept", chain.Concept),
		zap.Duration("budget", budget))
	return &NotFoundError{Concept: chain.Concept, Budget: budget, Tried: tried}
}
