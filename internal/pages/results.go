// File: internal/pages/results.go
package pages

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/internal/locate"
)

// ErrNoProducts reports an empty results grid where the flow needed at
// least one product to continue.
var ErrNoProducts = errors.New("no products in results")

// Outcome records how a product page surfaced after clicking its card.
type Outcome int

const (
	// NavigatedInPlace means the results tab itself moved to the product.
	NavigatedInPlace Outcome = iota
	// OpenedNewSurface means the storefront opened a separate tab.
	OpenedNewSurface
)

func (o Outcome) String() string {
	if o == OpenedNewSurface {
		return "opened new surface"
	}
	return "navigated in place"
}

// Results is the search results surface.
type Results struct {
	env *Env
	ctx context.Context

	// cardSelector remembers which card strategy matched so OpenProduct
	// clicks the same elements Count counted.
	cardSelector string
}

func newResults(ctx context.Context, env *Env) *Results {
	return &Results{env: env, ctx: ctx}
}

// waitReady blocks until the grid shows cards or the lookup budget runs
// out. A card-less page is a legitimate zero-result search, so absence
// is logged and the page is still considered ready.
func (r *Results) waitReady() error {
	if _, err := r.env.lookup(r.ctx, productCard); err != nil {
		if !locate.IsNotFound(err) {
			return fmt.Errorf("results page: %w", err)
		}
		r.env.Logger.Info("No product cards surfaced after search.")
	}
	if err := r.env.Exec.Sleep(r.ctx, r.env.Cfg.Timeouts.ResultsSettle); err != nil {
		return err
	}
	r.env.Popups.Dismiss(r.ctx)
	return nil
}

// settle absorbs the re-render a filter triggers and sweeps for any
// overlay the refresh surfaced.
func (r *Results) settle() error {
	if err := r.env.Exec.Sleep(r.ctx, r.env.Cfg.Timeouts.FilterSettle); err != nil {
		return err
	}
	r.env.Popups.Dismiss(r.ctx)
	return nil
}

// Count reports how many product cards the grid currently shows.
// Absence of every card strategy is an ordinary zero, not an error.
func (r *Results) Count() (int, error) {
	for _, s := range productCard.Strategies {
		n, err := r.env.Exec.Count(r.ctx, s.Selector)
		if err != nil {
			return 0, fmt.Errorf("count product cards: %w", err)
		}
		if n > 0 {
			r.cardSelector = s.Selector
			return n, nil
		}
	}
	return 0, nil
}

// ApplyBrandFilter clicks the facet of the first preferred brand the
// page offers. None of them being offered is an expected outcome,
// reported as ok == false with no error.
func (r *Results) ApplyBrandFilter(brands []string) (string, bool, error) {
	if len(brands) == 0 {
		return "", false, nil
	}
	// The whole scan stays inside one lookup budget however long the
	// preference list is.
	perBrand := r.env.Cfg.Timeouts.Lookup / time.Duration(len(brands))
	for _, brand := range brands {
		hit, err := r.env.Resolver.FirstVisible(r.ctx, brandFacet(brand), perBrand, locate.DividedBudget)
		if err != nil {
			if locate.IsNotFound(err) {
				continue
			}
			return "", false, err
		}
		if err := r.env.Retry.Do(r.ctx, "click brand facet", func(ctx context.Context) error {
			return r.env.Exec.Click(ctx, hit.Selector)
		}); err != nil {
			return "", false, fmt.Errorf("select brand %s: %w", brand, err)
		}
		if err := r.settle(); err != nil {
			return "", false, err
		}
		r.env.Logger.Info("Brand filter applied.", zap.String("brand", brand))
		return brand, true, nil
	}
	r.env.Logger.Info("None of the preferred brands are offered for this query.",
		zap.Strings("brands", brands))
	return "", false, nil
}

// ApplyPriceFilter narrows the results to [min, max]. In-page inputs are
// preferred; when they never appear the same range is expressed through
// the price query parameter instead. Exactly one of the two paths runs
// per call and both end with a settle delay and one more popup sweep.
func (r *Results) ApplyPriceFilter(min, max float64) error {
	log := r.env.Logger.With(zap.Float64("min", min), zap.Float64("max", max))

	minInput, err := r.env.Resolver.FirstVisible(r.ctx, priceMinInput,
		r.env.Cfg.Timeouts.FilterInput, locate.SharedDeadline)
	switch {
	case err == nil:
		if err := r.fillPriceInputs(minInput, min, max); err != nil {
			return err
		}
		log.Info("Price filter applied through page controls.")
	case locate.IsNotFound(err):
		if err := r.navigateWithPriceParam(min, max); err != nil {
			return err
		}
		log.Info("Price filter applied through the address parameter.")
	default:
		return fmt.Errorf("price filter: %w", err)
	}
	return r.settle()
}

// fillPriceInputs is the in-page path. Unlike resolution misses, fill
// and click failures here are active errors and propagate.
func (r *Results) fillPriceInputs(minInput locate.Strategy, min, max float64) error {
	maxInput, err := r.env.lookup(r.ctx, priceMaxInput)
	if err != nil {
		return fmt.Errorf("price max input: %w", err)
	}
	if err := r.env.Retry.Do(r.ctx, "fill price min", func(ctx context.Context) error {
		return r.env.Exec.Fill(ctx, minInput.Selector, formatAmount(min))
	}); err != nil {
		return fmt.Errorf("fill price min: %w", err)
	}
	if err := r.env.Retry.Do(r.ctx, "fill price max", func(ctx context.Context) error {
		return r.env.Exec.Fill(ctx, maxInput.Selector, formatAmount(max))
	}); err != nil {
		return fmt.Errorf("fill price max: %w", err)
	}

	apply, err := r.env.lookupControl(r.ctx, priceApply)
	switch {
	case err == nil:
		if err := r.env.Retry.Do(r.ctx, "click price apply", func(ctx context.Context) error {
			return r.env.Exec.Click(ctx, apply.Selector)
		}); err != nil {
			return fmt.Errorf("apply price filter: %w", err)
		}
	case locate.IsNotFound(err):
		// No dedicated control; Enter on the min field confirms the range.
		if err := r.env.Exec.SendKeys(r.ctx, minInput.Selector, kb.Enter); err != nil {
			return fmt.Errorf("confirm price filter: %w", err)
		}
	default:
		return fmt.Errorf("price apply control: %w", err)
	}
	return nil
}

// navigateWithPriceParam is the address fallback path.
func (r *Results) navigateWithPriceParam(min, max float64) error {
	current, err := r.env.Exec.Location(r.ctx)
	if err != nil {
		return fmt.Errorf("read results address: %w", err)
	}
	mutated, err := withPriceParam(current, min, max)
	if err != nil {
		return err
	}
	return r.env.navigate(r.ctx, mutated)
}

// OpenProduct clicks the index-th product card and returns the page the
// storefront actually opened, in place or in a fresh tab. An index past
// the grid clamps to the last card; an empty grid is ErrNoProducts.
func (r *Results) OpenProduct(index int) (*Product, error) {
	count, err := r.Count()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoProducts
	}
	if index >= count {
		r.env.Logger.Warn("Product index exceeds grid, clamping to last card.",
			zap.Int("index", index), zap.Int("count", count))
		index = count - 1
	}
	if index < 0 {
		index = 0
	}

	// The listener must exist before the click or the event is lost.
	raceCtx, cancelRace := context.WithCancel(r.ctx)
	defer cancelRace()
	newTarget := r.env.Exec.WaitNewTarget(raceCtx)

	if err := r.env.Retry.Do(r.ctx, "click product card", func(ctx context.Context) error {
		return r.env.Exec.ClickNth(ctx, r.cardSelector, index)
	}); err != nil {
		return nil, fmt.Errorf("open product %d: %w", index, err)
	}

	product := &Product{env: r.env, ctx: r.ctx, outcome: NavigatedInPlace}
	select {
	case id := <-newTarget:
		tabCtx, tabCancel := r.env.Exec.AttachTarget(r.ctx, id)
		product.ctx = tabCtx
		product.cancel = tabCancel
		product.outcome = OpenedNewSurface
	case <-time.After(r.env.Cfg.Timeouts.NewTabWait):
		// No new surface fired in time; the results tab moved itself.
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
	r.env.Logger.Info("Product page opened.",
		zap.Int("index", index), zap.Stringer("outcome", product.outcome))

	if err := product.waitReady(); err != nil {
		product.Close()
		return nil, err
	}
	return product, nil
}

// formatAmount renders a price bound the way the storefront expects:
// integral values carry no decimal part.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// withPriceParam returns addr with its price query parameter set to the
// literal "{min}-{max}" encoding both filter paths share.
func withPriceParam(addr string, min, max float64) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("parse results address: %w", err)
	}
	q := u.Query()
	q.Set("price", fmt.Sprintf("%s-%s", formatAmount(min), formatAmount(max)))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
