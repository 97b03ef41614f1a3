// File: internal/pages/results_test.go
package pages

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultsCountFallsThroughStrategies(t *testing.T) {
	exec := newMockExecutor()
	exec.counts[`[class*="gridItem"]`] = 7
	env := newTestEnv(t, exec)

	r := newResults(context.Background(), env)
	n, err := r.Count()
	require.NoError(t, err)

	assert.Equal(t, 7, n)
	assert.Equal(t, `[class*="gridItem"]`, r.cardSelector,
		"the matching strategy is remembered for card clicks")
}

func TestResultsCountEmptyGridIsZero(t *testing.T) {
	exec := newMockExecutor()
	env := newTestEnv(t, exec)

	n, err := newResults(context.Background(), env).Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApplyBrandFilterPicksFirstOffered(t *testing.T) {
	exec := newMockExecutor()
	exec.visible[`label[title="Xiaomi"]`] = true
	env := newTestEnv(t, exec)

	brand, ok, err := newResults(context.Background(), env).
		ApplyBrandFilter([]string{"Samsung", "Xiaomi", "Sony"})
	require.NoError(t, err)

	assert.True(t, ok)
	assert.Equal(t, "Xiaomi", brand)
	assert.Contains(t, exec.clicks, `label[title="Xiaomi"]`)
}

func TestApplyBrandFilterNoneOffered(t *testing.T) {
	exec := newMockExecutor()
	env := newTestEnv(t, exec)

	brand, ok, err := newResults(context.Background(), env).
		ApplyBrandFilter([]string{"Samsung", "Sony"})
	require.NoError(t, err, "a missing facet is expected absence, not an error")

	assert.False(t, ok)
	assert.Empty(t, brand)
	assert.Empty(t, exec.clicks)
}

func TestApplyPriceFilterFillsInputs(t *testing.T) {
	exec := newMockExecutor()
	exec.visible[`input[placeholder="Min"]`] = true
	exec.visible[`input[placeholder="Max"]`] = true
	exec.visible[`[class*="price"] button[class*="search"]`] = true
	env := newTestEnv(t, exec)

	require.NoError(t, newResults(context.Background(), env).ApplyPriceFilter(500, 5000))

	assert.Equal(t, "500", exec.fills[`input[placeholder="Min"]`])
	assert.Equal(t, "5000", exec.fills[`input[placeholder="Max"]`])
	assert.Contains(t, exec.clicks, `[class*="price"] button[class*="search"]`)
	assert.Empty(t, exec.navigations, "the in-page path must not navigate")
}

func TestApplyPriceFilterKeyboardFallback(t *testing.T) {
	exec := newMockExecutor()
	exec.visible[`input[placeholder="Min"]`] = true
	exec.visible[`input[placeholder="Max"]`] = true
	env := newTestEnv(t, exec)

	require.NoError(t, newResults(context.Background(), env).ApplyPriceFilter(500, 5000))

	assert.Equal(t, kb.Enter, exec.keys[`input[placeholder="Min"]`],
		"Enter on the min field confirms when no apply control exists")
	assert.Empty(t, exec.clicks)
	assert.Empty(t, exec.navigations)
}

func TestApplyPriceFilterURLFallback(t *testing.T) {
	exec := newMockExecutor()
	exec.location = "https://shop.example.pk/catalog/?q=electronics&page=2"
	env := newTestEnv(t, exec)

	require.NoError(t, newResults(context.Background(), env).ApplyPriceFilter(500, 5000))

	require.Len(t, exec.navigations, 1)
	u, err := url.Parse(exec.navigations[0])
	require.NoError(t, err)
	assert.Equal(t, "500-5000", u.Query().Get("price"))
	assert.Equal(t, "electronics", u.Query().Get("q"), "existing parameters survive")
	assert.Empty(t, exec.fills, "the address path must not touch inputs")
}

func TestApplyPriceFilterFillErrorPropagates(t *testing.T) {
	exec := newMockExecutor()
	exec.visible[`input[placeholder="Min"]`] = true
	exec.visible[`input[placeholder="Max"]`] = true
	exec.failFill[`input[placeholder="Min"]`] = errors.New("input rejected the value")
	env := newTestEnv(t, exec)

	err := newResults(context.Background(), env).ApplyPriceFilter(500, 5000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fill price min")
	assert.Empty(t, exec.navigations,
		"an active fill failure must not degrade to the address path")
}

func TestWithPriceParam(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		min, max float64
		want     string
	}{
		{"plain address", "https://shop.example.pk/catalog?q=tv", 500, 5000, "500-5000"},
		{"replaces existing range", "https://shop.example.pk/catalog?price=1-2&q=tv", 500, 5000, "500-5000"},
		{"fractional bounds", "https://shop.example.pk/catalog", 12.5, 99, "12.5-99"},
		{"integral bounds stay bare", "https://shop.example.pk/catalog", 1, 100000, "1-100000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := withPriceParam(tt.addr, tt.min, tt.max)
			require.NoError(t, err)
			u, err := url.Parse(got)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Query().Get("price"))
		})
	}
}

func TestOpenProductNoProducts(t *testing.T) {
	exec := newMockExecutor()
	env := newTestEnv(t, exec)

	_, err := newResults(context.Background(), env).OpenProduct(0)
	require.ErrorIs(t, err, ErrNoProducts)
	assert.Empty(t, exec.nthClicks)
}

func TestOpenProductClampsIndex(t *testing.T) {
	exec := newMockExecutor()
	exec.counts[`[data-qa-locator="product-item"]`] = 3
	env := newTestEnv(t, exec)

	p, err := newResults(context.Background(), env).OpenProduct(9)
	require.NoError(t, err)
	defer p.Close()

	require.Len(t, exec.nthClicks, 1)
	assert.Equal(t, `[data-qa-locator="product-item"]#2`, exec.nthClicks[0])
	assert.Equal(t, NavigatedInPlace, p.Outcome())
}

func TestOpenProductSameTab(t *testing.T) {
	exec := newMockExecutor()
	exec.counts[`[data-qa-locator="product-item"]`] = 2
	env := newTestEnv(t, exec)

	p, err := newResults(context.Background(), env).OpenProduct(0)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, NavigatedInPlace, p.Outcome())
	assert.Empty(t, exec.attached)
}

func TestOpenProductNewSurface(t *testing.T) {
	exec := newMockExecutor()
	exec.counts[`[data-qa-locator="product-item"]`] = 2
	exec.newTargets <- target.ID("tab-2")
	env := newTestEnv(t, exec)

	p, err := newResults(context.Background(), env).OpenProduct(0)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, OpenedNewSurface, p.Outcome())
	require.Len(t, exec.attached, 1)
	assert.Equal(t, target.ID("tab-2"), exec.attached[0])
}
