package storefront

import (
	"fmt"
	"strings"
)

// Money is an amount in a currency as returned by the storefront API.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "$",
	"AUD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// String renders "$42.00" style for known symbols, "42.00 SEK" otherwise.
func (m Money) String() string {
	if m.Amount == "" {
		return ""
	}
	if sym, ok := currencySymbols[m.CurrencyCode]; ok {
		return sym + m.Amount
	}
	if m.CurrencyCode == "" {
		return m.Amount
	}
	return m.Amount + " " + m.CurrencyCode
}

type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type Seo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PageInfo carries the cursor state of a paginated connection.
type PageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	EndCursor       string `json:"endCursor"`
	StartCursor     string `json:"startCursor"`
}

// SelectedOption is one name/value pair identifying a variant axis.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OptionKind tags a product option so templates dispatch on the kind once
// instead of re-comparing the option name per value.
type OptionKind int

const (
	OptionGeneric OptionKind = iota
	OptionSize
	OptionColor
)

func (k OptionKind) String() string {
	switch k {
	case OptionSize:
		return "size"
	case OptionColor:
		return "color"
	default:
		return "generic"
	}
}

// KindOf classifies an option by its display name.
func KindOf(name string) OptionKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "size":
		return OptionSize
	case "color", "colour":
		return OptionColor
	default:
		return OptionGeneric
	}
}

type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Kind is resolved from the option name; see KindOf.
func (o ProductOption) Kind() OptionKind { return KindOf(o.Name) }

type ProductVariant struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	AvailableForSale  bool             `json:"availableForSale"`
	SKU               string           `json:"sku"`
	Price             Money            `json:"price"`
	CompareAtPrice    *Money           `json:"compareAtPrice"`
	SelectedOptions   []SelectedOption `json:"selectedOptions"`
	Image             *Image           `json:"image"`
}

// Matches reports whether the variant's option set covers every selected
// name/value pair. Comparison is case-insensitive on names, exact on values.
func (v ProductVariant) Matches(selected []SelectedOption) bool {
	for _, want := range selected {
		found := false
		for _, have := range v.SelectedOptions {
			if strings.EqualFold(have.Name, want.Name) && have.Value == want.Value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type Product struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Handle          string          `json:"handle"`
	Vendor          string          `json:"vendor"`
	Description     string          `json:"description"`
	DescriptionHTML string          `json:"descriptionHtml"`
	Options         []ProductOption `json:"options"`
	FeaturedImage   *Image          `json:"featuredImage"`
	Seo             Seo             `json:"seo"`

	// SelectedVariant is the server-side match for the request's selected
	// options; nil when no variant matches.
	SelectedVariant *ProductVariant `json:"selectedVariant"`

	// FirstVariant is always present for a published product and is the
	// redirect target when the selection matches nothing.
	FirstVariant *ProductVariant `json:"firstVariant"`
}

// CanonicalURL is the product URL carrying exactly the given variant's
// options as query parameters.
func (p Product) CanonicalURL(v *ProductVariant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/products/%s", p.Handle)
	if v == nil {
		return b.String()
	}
	sep := "?"
	for _, opt := range v.SelectedOptions {
		fmt.Fprintf(&b, "%s%s=%s", sep, queryEscape(opt.Name), queryEscape(opt.Value))
		sep = "&"
	}
	return b.String()
}

type ProductSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Handle        string `json:"handle"`
	FeaturedImage *Image `json:"featuredImage"`
	PriceRange    struct {
		MinVariantPrice Money `json:"minVariantPrice"`
	} `json:"priceRange"`
}

type Collection struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Handle          string           `json:"handle"`
	Description     string           `json:"description"`
	DescriptionHTML string           `json:"descriptionHtml"`
	Image           *Image           `json:"image"`
	Seo             Seo              `json:"seo"`
	Products        []ProductSummary `json:"-"`
	ProductsPage    PageInfo         `json:"-"`
}

type CollectionSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
	Image  *Image `json:"image"`
}

type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Handle      string `json:"handle"`
	ContentHTML string `json:"contentHtml"`
	Excerpt     string `json:"excerpt"`
	PublishedAt string `json:"publishedAt"`
	AuthorName  string `json:"-"`
	Image       *Image `json:"image"`
	Seo         Seo    `json:"seo"`
}

type Policy struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
	Body   string `json:"body"`
}
