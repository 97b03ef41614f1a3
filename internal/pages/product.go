// File: internal/pages/product.go
package pages

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/probeworks/shopflow-cli/internal/locate"
	"github.com/probeworks/shopflow-cli/internal/price"
)

// PriceInfo carries the raw price text next to its parsed value. Known
// is false when the text held no numeric token; callers treat that as
// missing data, not as a failure.
type PriceInfo struct {
	Raw   string
	Value float64
	Known bool
}

// Product is the product detail surface. When the storefront opened it
// in a new tab the struct owns that tab's context and Close releases it.
type Product struct {
	env     *Env
	ctx     context.Context
	cancel  context.CancelFunc
	outcome Outcome
}

// Outcome reports whether the product surfaced in place or in a new tab.
func (p *Product) Outcome() Outcome { return p.outcome }

// Context exposes the tab context for lower-level access.
func (p *Product) Context() context.Context { return p.ctx }

// Close releases the extra tab when the product opened in one. Products
// that navigated in place share the results tab and close with it.
func (p *Product) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Product) waitReady() error {
	nctx, cancel := context.WithTimeout(p.ctx, p.env.Cfg.Timeouts.Navigation)
	defer cancel()
	if err := p.env.Exec.WaitVisible(nctx, "body"); err != nil {
		return fmt.Errorf("product page body: %w", err)
	}
	if err := p.env.Exec.Sleep(p.ctx, p.env.Cfg.Timeouts.PostLoadWait); err != nil {
		return err
	}
	p.env.Popups.Dismiss(p.ctx)
	return nil
}

// Title returns the product heading, falling back to the document title
// when the detail markup offers none.
func (p *Product) Title() (string, error) {
	hit, err := p.env.lookup(p.ctx, productTitle)
	if err == nil {
		text, terr := p.env.Exec.Text(p.ctx, hit.Selector)
		if terr != nil {
			return "", fmt.Errorf("product title: %w", terr)
		}
		if t := strings.TrimSpace(text); t != "" {
			return t, nil
		}
	} else if !locate.IsNotFound(err) {
		return "", err
	}
	// Page metadata keeps a usable name when the heading markup drifts.
	title, err := p.env.Exec.Title(p.ctx)
	if err != nil {
		return "", fmt.Errorf("document title: %w", err)
	}
	return strings.TrimSpace(title), nil
}

// Price extracts and parses the displayed price. Absent or unparsable
// price text comes back with Known == false and no error.
func (p *Product) Price() (PriceInfo, error) {
	hit, err := p.env.lookup(p.ctx, productPrice)
	if err != nil {
		if locate.IsNotFound(err) {
			p.env.Logger.Info("No price element on product page.")
			return PriceInfo{}, nil
		}
		return PriceInfo{}, err
	}
	raw, err := p.env.Exec.Text(p.ctx, hit.Selector)
	if err != nil {
		return PriceInfo{}, fmt.Errorf("price text: %w", err)
	}
	value, ok := price.Parse(raw)
	if !ok {
		p.env.Logger.Info("Price text held no numeric token.", zap.String("raw", raw))
	}
	return PriceInfo{Raw: raw, Value: value, Known: ok}, nil
}

// FreeShipping reports whether the delivery section, or failing that the
// page body, mentions free shipping. Soft information only.
func (p *Product) FreeShipping() (bool, error) {
	text, err := p.shippingText()
	if err != nil {
		return false, err
	}
	lowered := strings.ToLower(text)
	for _, kw := range freeShippingKeywords {
		if strings.Contains(lowered, kw) {
			return true, nil
		}
	}
	return false, nil
}

func (p *Product) shippingText() (string, error) {
	hit, err := p.env.lookup(p.ctx, shippingInfo)
	if err != nil {
		if locate.IsNotFound(err) {
			// Coarse fallback, matching how loose the keyword list is.
			return p.env.Exec.Text(p.ctx, "body")
		}
		return "", err
	}
	return p.env.Exec.Text(p.ctx, hit.Selector)
}

// AddToCartVisible reports whether the buy controls are on the page.
// Sold-out items drop the control; absence is information, not an error.
func (p *Product) AddToCartVisible() (bool, error) {
	_, err := p.env.lookupControl(p.ctx, addToCart)
	switch {
	case err == nil:
		return true, nil
	case locate.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// URL returns the product page address.
func (p *Product) URL() (string, error) {
	return p.env.Exec.Location(p.ctx)
}
