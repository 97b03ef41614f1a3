// File: internal/scenario/flow.go
package scenario

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/api/schemas"
	"github.com/probeworks/shopflow-cli/internal/config"
	"github.com/probeworks/shopflow-cli/internal/pages"
)

// Flow drives one end-to-end shopping scenario: open the storefront,
// search, filter, open a product and verify what it shows. Every
// verification lands in the check list; hard-check failures abort the
// remaining steps.
type Flow struct {
	env        *pages.Env
	cfg        *config.Config
	logger     *zap.Logger
	scenarioID string
	keyword    string

	checks  []schemas.CheckResult
	product *schemas.ProductSummary
}

// NewFlow builds a scenario for one search keyword.
func NewFlow(env *pages.Env, keyword string, logger *zap.Logger) *Flow {
	return &Flow{
		env:        env,
		cfg:        env.Cfg,
		scenarioID: uuid.NewString(),
		keyword:    keyword,
		logger:     logger.Named("flow").With(zap.String("keyword", keyword)),
	}
}

// Run executes the scenario and always returns a populated result; the
// step error, if any, is folded into the result's status and message.
func (f *Flow) Run(ctx context.Context) schemas.ScenarioResult {
	started := time.Now().UTC()
	err := f.run(ctx)

	result := schemas.ScenarioResult{
		ScenarioID: f.scenarioID,
		Keyword:    f.keyword,
		Status:     Classify(err),
		Checks:     f.checks,
		Product:    f.product,
		StartedAt:  started,
		Duration:   time.Since(started),
	}
	if err != nil {
		result.FailureMessage = err.Error()
		f.logger.Warn("Scenario did not pass.",
			zap.String("status", string(result.Status)), zap.Error(err))
	} else {
		f.logger.Info("Scenario passed.", zap.Duration("duration", result.Duration))
	}
	return result
}

func (f *Flow) run(ctx context.Context) error {
	home := pages.NewHome(ctx, f.env)
	if err := home.Open(); err != nil {
		return err
	}
	results, err := home.Search(f.keyword)
	if err != nil {
		return err
	}

	count, err := results.Count()
	if err != nil {
		return err
	}
	if err := f.assertHard("product count after search",
		count >= f.cfg.Flow.MinProducts,
		fmt.Sprintf("at least %d", f.cfg.Flow.MinProducts), count); err != nil {
		return err
	}

	brand, ok, err := results.ApplyBrandFilter(f.cfg.Flow.Brands)
	if err != nil {
		return err
	}
	if ok {
		f.note("brand filter", brand, "first preferred brand offered by the page")
	} else {
		f.note("brand filter", "none", "no preferred brand offered; continuing unfiltered")
	}

	if err := results.ApplyPriceFilter(f.cfg.Flow.MinPrice, f.cfg.Flow.MaxPrice); err != nil {
		return err
	}

	count, err = results.Count()
	if err != nil {
		return err
	}
	if err := f.assertHard("product count after filters",
		count > 1, "more than 1", count); err != nil {
		return err
	}

	product, err := results.OpenProduct(f.cfg.Flow.ProductIndex)
	if err != nil {
		return err
	}
	defer product.Close()
	f.note("product open outcome", product.Outcome().String(), "")

	title, err := product.Title()
	if err != nil {
		return err
	}
	if err := f.assertHard("product title non-empty",
		strings.TrimSpace(title) != "", "non-empty title", title); err != nil {
		return err
	}

	info, err := product.Price()
	if err != nil {
		return err
	}
	if info.Known {
		if err := f.assertHard("product price positive",
			info.Value > 0, "price > 0", info.Value); err != nil {
			return err
		}
		f.checkSoft("product price within range",
			info.Value >= f.cfg.Flow.MinPrice && info.Value <= f.cfg.Flow.MaxPrice,
			fmt.Sprintf("%s to %s", trimAmount(f.cfg.Flow.MinPrice), trimAmount(f.cfg.Flow.MaxPrice)),
			info.Value, info.Raw)
	} else {
		// Unparsable price text is degraded information, not a failure.
		f.note("product price", "unknown", info.Raw)
	}

	free, err := product.FreeShipping()
	if err != nil {
		return err
	}
	f.recordCheck("free shipping available", schemas.CheckSoft, schemas.StatusPassed,
		"", strconv.FormatBool(free), "observed either way; availability is not required")

	cart, err := product.AddToCartVisible()
	if err != nil {
		return err
	}
	f.note("add to cart control", presence(cart), "sold-out items drop the control")

	addr, err := product.URL()
	if err != nil {
		return err
	}
	matched, host := hostMatchesTarget(f.cfg.Target.BaseURL, addr)
	if err := f.assertHard("product address host", matched,
		targetHost(f.cfg.Target.BaseURL), host); err != nil {
		return err
	}

	f.product = &schemas.ProductSummary{
		Title:        title,
		RawPrice:     info.Raw,
		Price:        info.Value,
		PriceKnown:   info.Known,
		FreeShipping: free,
		URL:          addr,
	}
	return nil
}

// -- check recording --

func (f *Flow) recordCheck(name string, kind schemas.CheckKind, status schemas.Status, expected, actual, detail string) {
	f.checks = append(f.checks, schemas.CheckResult{
		ScenarioID: f.scenarioID,
		Name:       name,
		Kind:       kind,
		Status:     status,
		Expected:   expected,
		Actual:     actual,
		Detail:     detail,
		ObservedAt: time.Now().UTC(),
	})
}

// assertHard records the check and, on failure, returns the abort signal.
func (f *Flow) assertHard(name string, pass bool, expected, actual interface{}) error {
	exp := fmt.Sprint(expected)
	act := fmt.Sprint(actual)
	if pass {
		f.recordCheck(name, schemas.CheckHard, schemas.StatusPassed, exp, act, "")
		return nil
	}
	f.recordCheck(name, schemas.CheckHard, schemas.StatusFailed, exp, act, "")
	return newAssertion(name, expected, actual)
}

// checkSoft records an expectation that never aborts the scenario.
func (f *Flow) checkSoft(name string, pass bool, expected string, actual interface{}, detail string) {
	status := schemas.StatusPassed
	if !pass {
		status = schemas.StatusFailed
	}
	f.recordCheck(name, schemas.CheckSoft, status, expected, fmt.Sprint(actual), detail)
}

// note records a plain observation.
func (f *Flow) note(name, actual, detail string) {
	f.recordCheck(name, schemas.CheckInfo, schemas.StatusPassed, "", actual, detail)
}

// -- helpers --

func presence(visible bool) string {
	if visible {
		return "present"
	}
	return "absent"
}

func trimAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// targetHost extracts the comparable host of the configured storefront,
// without a www prefix.
func targetHost(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// hostMatchesTarget reports whether addr stayed on the storefront's
// domain, tolerating subdomain hops like www → m.
func hostMatchesTarget(base, addr string) (bool, string) {
	want := targetHost(base)
	u, err := url.Parse(addr)
	if err != nil || u.Hostname() == "" {
		return false, addr
	}
	got := u.Hostname()
	return got == want || strings.HasSuffix(got, "."+want), got
}
