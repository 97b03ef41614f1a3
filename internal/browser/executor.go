// File: internal/browser/executor.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// Executor defines the contract for external browser interactions,
// allowing for mocking during tests. This interface is the cornerstone
// of the module's testability strategy: page objects speak to the
// browser only through it.
type Executor interface {
	// Navigate loads a URL and returns once the navigation commits.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the first element matched by the selector
	// is visible, or the context expires.
	WaitVisible(ctx context.Context, selector string) error

	// Click waits for the element to be visible and clicks it.
	Click(ctx context.Context, selector string) error

	// ClickNth clicks the index-th element (zero based) among all visible
	// matches of the selector. The click is a real input event so anchors
	// with target="_blank" behave as they would for a user.
	ClickNth(ctx context.Context, selector string, index int) error

	// Fill clears the matched input and types the value into it.
	Fill(ctx context.Context, selector, value string) error

	// SendKeys types raw keys (including control characters such as
	// kb.Enter) into the matched element.
	SendKeys(ctx context.Context, selector, keys string) error

	// Text returns the visible text of the first matched element.
	Text(ctx context.Context, selector string) (string, error)

	// Count returns how many elements currently match the selector.
	// Unlike the waiting primitives it never blocks on absence.
	Count(ctx context.Context, selector string) (int, error)

	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)

	// Title returns the document title of the current page.
	Title(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression, unmarshaling its result
	// into res when res is non-nil.
	Evaluate(ctx context.Context, expression string, res interface{}) error

	// Sleep pauses execution for a given duration (context-aware).
	Sleep(ctx context.Context, d time.Duration) error

	// WaitNewTarget starts listening for a new page target spawned by
	// the session. It must be called before the interaction that may
	// open the target; the returned channel yields at most one ID.
	WaitNewTarget(ctx context.Context) <-chan target.ID

	// AttachTarget derives a session context bound to the given target
	// so subsequent calls operate on that tab.
	AttachTarget(ctx context.Context, id target.ID) (context.Context, context.CancelFunc)
}

// CDPExecutor is the production implementation of the Executor interface.
// It wraps the real chromedp library calls.
type CDPExecutor struct{}

// NewCDPExecutor creates a new production-ready executor.
func NewCDPExecutor() *CDPExecutor {
	return &CDPExecutor{}
}

func (e *CDPExecutor) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx, chromedp.Navigate(url))
}

func (e *CDPExecutor) WaitVisible(ctx context.Context, selector string) error {
	return chromedp.Run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (e *CDPExecutor) Click(ctx context.Context, selector string) error {
	return chromedp.Run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (e *CDPExecutor) ClickNth(ctx context.Context, selector string, index int) error {
	var nodes []*cdp.Node
	return chromedp.Run(ctx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.NodeVisible),
		chromedp.ActionFunc(func(c context.Context) error {
			if index < 0 || index >= len(nodes) {
				return fmt.Errorf("element %d of %q out of range, %d matched", index, selector, len(nodes))
			}
			return chromedp.MouseClickNode(nodes[index]).Do(c)
		}),
	)
}

func (e *CDPExecutor) Fill(ctx context.Context, selector, value string) error {
	return chromedp.Run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (e *CDPExecutor) SendKeys(ctx context.Context, selector, keys string) error {
	return chromedp.Run(ctx, chromedp.SendKeys(selector, keys, chromedp.ByQuery))
}

func (e *CDPExecutor) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := chromedp.Run(ctx, chromedp.Text(selector, &text, chromedp.ByQuery))
	return text, err
}

func (e *CDPExecutor) Count(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf("document.querySelectorAll(%q).length", selector)
	err := chromedp.Run(ctx, chromedp.Evaluate(expr, &n))
	return n, err
}

func (e *CDPExecutor) Location(ctx context.Context) (string, error) {
	var url string
	err := chromedp.Run(ctx, chromedp.Location(&url))
	return url, err
}

func (e *CDPExecutor) Title(ctx context.Context) (string, error) {
	var title string
	err := chromedp.Run(ctx, chromedp.Title(&title))
	return title, err
}

func (e *CDPExecutor) Evaluate(ctx context.Context, expression string, res interface{}) error {
	return chromedp.Run(ctx, chromedp.Evaluate(expression, res))
}

func (e *CDPExecutor) Sleep(ctx context.Context, d time.Duration) error {
	return chromedp.Run(ctx, chromedp.Sleep(d))
}

func (e *CDPExecutor) WaitNewTarget(ctx context.Context) <-chan target.ID {
	// Targets appear with an empty URL first; waiting for a non-empty
	// URL skips the intermediate notification.
	return chromedp.WaitNewTarget(ctx, func(info *target.Info) bool {
		return info.URL != ""
	})
}

func (e *CDPExecutor) AttachTarget(ctx context.Context, id target.ID) (context.Context, context.CancelFunc) {
	return chromedp.NewContext(ctx, chromedp.WithTargetID(id))
}
