// File: internal/pages/selectors.go
package pages

import (
	"fmt"

	"github.com/probeworks/shopflow-cli/internal/locate"
)

// Selector chains for the storefront's page concepts. Most chains lead
// with the markup daraz.pk serves today and fall back to looser
// predicates that survive the class-hash churn of site releases.
var (
	searchInput = locate.Chain{
		Concept: "search input",
		Strategies: []locate.Strategy{
			{Name: "search id", Selector: `input#q`},
			{Name: "search box class", Selector: `input[class*="search-box__input"]`},
			{Name: "type search", Selector: `input[type="search"]`},
			{Name: "name q", Selector: `input[name="q"]`},
		},
	}

	searchSubmit = locate.Chain{
		Concept: "search submit",
		Strategies: []locate.Strategy{
			{Name: "search box button", Selector: `button[class*="search-box__button"]`},
			{Name: "header submit", Selector: `header button[type="submit"]`},
			{Name: "search form submit", Selector: `form[role="search"] button[type="submit"]`},
		},
	}

	productCard = locate.Chain{
		Concept: "product card",
		Strategies: []locate.Strategy{
			{Name: "qa locator", Selector: `[data-qa-locator="product-item"]`},
			{Name: "grid item class", Selector: `[class*="gridItem"]`},
			{Name: "generic card", Selector: `.product-card, [class*="product-item"]`},
		},
	}

	priceMinInput = locate.Chain{
		Concept: "price min input",
		Strategies: []locate.Strategy{
			{Name: "placeholder min", Selector: `input[placeholder="Min"]`},
			{Name: "name min", Selector: `input[name="minPrice"], input[name="min_price"]`},
			{Name: "filter first input", Selector: `[class*="price"] input:first-of-type`},
		},
	}

	priceMaxInput = locate.Chain{
		Concept: "price max input",
		Strategies: []locate.Strategy{
			{Name: "placeholder max", Selector: `input[placeholder="Max"]`},
			{Name: "name max", Selector: `input[name="maxPrice"], input[name="max_price"]`},
			{Name: "filter last input", Selector: `[class*="price"] input:last-of-type`},
		},
	}

	priceApply = locate.Chain{
		Concept: "price apply control",
		Strategies: []locate.Strategy{
			{Name: "filter search button", Selector: `[class*="price"] button[class*="search"]`},
			{Name: "apply aria label", Selector: `button[aria-label="Apply price filter"]`},
			{Name: "filter submit", Selector: `[class*="filter"] button[type="submit"]`},
		},
	}

	productTitle = locate.Chain{
		Concept: "product title",
		Strategies: []locate.Strategy{
			{Name: "pdp badge title", Selector: `.pdp-mod-product-badge-title`},
			{Name: "pdp title class", Selector: `[class*="pdp-title"]`},
			{Name: "main heading", Selector: `h1`},
		},
	}

	productPrice = locate.Chain{
		Concept: "product price",
		Strategies: []locate.Strategy{
			{Name: "pdp normal price", Selector: `.pdp-price_type_normal`},
			{Name: "pdp price class", Selector: `[class*="pdp-price"]`},
			{Name: "price span", Selector: `span[class*="price"]`},
		},
	}

	shippingInfo = locate.Chain{
		Concept: "shipping info",
		Strategies: []locate.Strategy{
			{Name: "delivery option title", Selector: `.delivery-option-item__title`},
			{Name: "delivery class", Selector: `[class*="delivery-option"]`},
			{Name: "shipping section", Selector: `[class*="shipping"], [class*="delivery"]`},
		},
	}

	addToCart = locate.Chain{
		Concept: "add to cart control",
		Strategies: []locate.Strategy{
			{Name: "pdp cart button", Selector: `[class*="add-to-cart"] button, button[class*="add-to-cart"]`},
			{Name: "cart aria label", Selector: `button[aria-label*="cart" i]`},
			{Name: "named cart button", Selector: `button[name="add-to-cart"], .btn-add-cart`},
		},
	}
)

// brandFacet builds the chain for one brand's filter control. Facets are
// the only concept whose selectors depend on runtime data, so the chain
// is assembled per brand instead of declared above.
func brandFacet(brand string) locate.Chain {
	return locate.Chain{
		Concept: fmt.Sprintf("brand facet %s", brand),
		Strategies: []locate.Strategy{
			{Name: "facet label title", Selector: fmt.Sprintf(`label[title=%q]`, brand)},
			{Name: "facet checkbox value", Selector: fmt.Sprintf(`input[type="checkbox"][value=%q]`, brand)},
			{Name: "facet data attribute", Selector: fmt.Sprintf(`[data-brand=%q]`, brand)},
		},
	}
}

// freeShippingKeywords feeds the shipping check, loosest phrase last.
// The bare "free" entry can match promo text like "Buy 1 Free 1"; the
// check it feeds is soft, so a false positive never fails a scenario.
var freeShippingKeywords = []string{"free shipping", "free delivery", "free"}
