// File: internal/pages/home_test.go
package pages

import (
	"context"
	"testing"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeOpenLoadsBaseURL(t *testing.T) {
	exec := newMockExecutor()
	env := newTestEnv(t, exec)

	home := NewHome(context.Background(), env)
	require.NoError(t, home.Open())

	require.Len(t, exec.navigations, 1)
	assert.Equal(t, "https://shop.example.pk", exec.navigations[0])
}

func TestHomeSearchUsesSubmitButton(t *testing.T) {
	exec := newMockExecutor()
	exec.visible[`input#q`] = true
	exec.visible[`button[class*="search-box__button"]`] = true
	exec.visible[`[data-qa-locator="product-item"]`] = true
	env := newTestEnv(t, exec)

	results, err := NewHome(context.Background(), env).Search("electronics")
	require.NoError(t, err)
	require.NotNil(t, results)

	assert.Equal(t, "electronics", exec.fills[`input#q`])
	assert.Contains(t, exec.clicks, `button[class*="search-box__button"]`)
	assert.Empty(t, exec.keys, "button path must not also send Enter")
}

func TestHomeSearchFallsBackToEnter(t *testing.T) {
	exec := newMockExecutor()
	exec.visible[`input#q`] = true
	exec.visible[`[data-qa-locator="product-item"]`] = true
	env := newTestEnv(t, exec)

	_, err := NewHome(context.Background(), env).Search("electronics")
	require.NoError(t, err)

	assert.Equal(t, kb.Enter, exec.keys[`input#q`])
	assert.Empty(t, exec.clicks)
}

func TestHomeSearchMissingInputFails(t *testing.T) {
	exec := newMockExecutor()
	env := newTestEnv(t, exec)

	_, err := NewHome(context.Background(), env).Search("electronics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search input")
}

func TestHomeSearchToleratesEmptyResults(t *testing.T) {
	exec := newMockExecutor()
	exec.visible[`input#q`] = true
	// No card strategy ever resolves; the search itself still succeeds
	// and the caller sees the empty grid through Count.
	env := newTestEnv(t, exec)

	results, err := NewHome(context.Background(), env).Search("electronics")
	require.NoError(t, err)

	n, err := results.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}
