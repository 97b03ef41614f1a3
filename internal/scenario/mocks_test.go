// File: internal/scenario/mocks_test.go
package scenario

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/probeworks/shopflow-cli/internal/config"
	"github.com/probeworks/shopflow-cli/internal/pages"
)

// -- Mock Implementations --

// fakeStorefront scripts a whole storefront behind the executor
// interface: which selectors are visible, what text they hold, and how
// many product cards the grid shows.
type fakeStorefront struct {
	mu sync.Mutex

	visible  map[string]bool
	texts    map[string]string
	counts   map[string]int
	location string
	docTitle string

	// productURL is where a card click takes the page, mimicking the
	// storefront's navigation to the product detail address.
	productURL string

	navigateErr error

	navigations []string
	clicks      []string
	nthClicks   []string
	fills       map[string]string
	keys        map[string]string

	newTargets chan target.ID
}

func newFakeStorefront() *fakeStorefront {
	return &fakeStorefront{
		visible:    map[string]bool{"body": true},
		texts:      map[string]string{},
		counts:     map[string]int{},
		fills:      map[string]string{},
		keys:       map[string]string{},
		newTargets: make(chan target.ID, 1),
	}
}

// newHappyStorefront scripts a storefront on which every flow step
// succeeds: search works, a preferred brand facet exists, the price
// inputs and apply control are present, and the product page carries a
// title, a parsable price and a free-delivery banner.
func newHappyStorefront() *fakeStorefront {
	f := newFakeStorefront()
	f.visible[`input#q`] = true
	f.visible[`button[class*="search-box__button"]`] = true
	f.visible[`[data-qa-locator="product-item"]`] = true
	f.visible[`label[title="Xiaomi"]`] = true
	f.visible[`input[placeholder="Min"]`] = true
	f.visible[`input[placeholder="Max"]`] = true
	f.visible[`[class*="price"] button[class*="search"]`] = true
	f.visible[`.pdp-mod-product-badge-title`] = true
	f.visible[`.pdp-price_type_normal`] = true
	f.visible[`.delivery-option-item__title`] = true
	f.counts[`[data-qa-locator="product-item"]`] = 24
	f.texts[`.pdp-mod-product-badge-title`] = "Xiaomi Mi Band 9 Smart Bracelet"
	f.texts[`.pdp-price_type_normal`] = "PKR 3,499"
	f.texts[`.delivery-option-item__title`] = "Free Delivery"
	f.productURL = "https://shop.example.pk/products/xiaomi-mi-band-9-i10443.html"
	return f
}

func (f *fakeStorefront) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.navigateErr != nil {
		return f.navigateErr
	}
	f.navigations = append(f.navigations, url)
	f.location = url
	return nil
}

func (f *fakeStorefront) WaitVisible(ctx context.Context, selector string) error {
	f.mu.Lock()
	ok := f.visible[selector]
	f.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeStorefront) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakeStorefront) ClickNth(_ context.Context, selector string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nthClicks = append(f.nthClicks, fmt.Sprintf("%s#%d", selector, index))
	if f.productURL != "" {
		f.location = f.productURL
	}
	return nil
}

func (f *fakeStorefront) Fill(_ context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills[selector] = value
	return nil
}

func (f *fakeStorefront) SendKeys(_ context.Context, selector, keys string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[selector] = keys
	return nil
}

func (f *fakeStorefront) Text(_ context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.texts[selector], nil
}

func (f *fakeStorefront) Count(_ context.Context, selector string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[selector], nil
}

func (f *fakeStorefront) Location(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.location, nil
}

func (f *fakeStorefront) Title(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docTitle, nil
}

func (f *fakeStorefront) Evaluate(_ context.Context, _ string, _ interface{}) error {
	return nil
}

func (f *fakeStorefront) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeStorefront) WaitNewTarget(_ context.Context) <-chan target.ID {
	return f.newTargets
}

func (f *fakeStorefront) AttachTarget(ctx context.Context, id target.ID) (context.Context, context.CancelFunc) {
	return context.WithCancel(ctx)
}

// -- Test Fixtures --

func newFlowConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Target.BaseURL = "https://shop.example.pk"
	cfg.Flow.Keyword = "electronics"
	cfg.Flow.Brands = []string{"Samsung", "Xiaomi", "Audionic", "Anker", "Sony"}
	cfg.Flow.MinPrice = 500
	cfg.Flow.MaxPrice = 5000
	cfg.Flow.MinProducts = 2
	cfg.Flow.ProductIndex = 0
	cfg.Flow.RetryAttempts = 3
	cfg.Flow.Parallel = 2
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

func newFlowEnv(t *testing.T, exec *fakeStorefront, cfg *config.Config) *pages.Env {
	t.Helper()
	return pages.NewEnv(exec, cfg, rate.NewLimiter(rate.Inf, 1), zaptest.NewLogger(t))
}
