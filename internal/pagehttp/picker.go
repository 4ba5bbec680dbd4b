package pagehttp

import (
	"net/url"
	"strings"

	"github.com/harborgoods/storefront-web/internal/storefront"
)

// pickerView is the variant_picker partial's data in both states. Pending
// means only the active variant is known, so every value links but none is
// marked unavailable yet.
type pickerView struct {
	Pending bool
	Options []pickerOption
}

type pickerOption struct {
	Name   string
	Kind   string
	Values []pickerValue
}

type pickerValue struct {
	Label     string
	URL       string
	Selected  bool
	Available bool
}

// buildPicker renders the option matrix around the active variant. Each
// value links to the product URL with that single axis swapped; once the
// full variant list is known, values whose target variant is missing or
// sold out are marked unavailable.
func buildPicker(p *storefront.Product, active *storefront.ProductVariant, variants []storefront.ProductVariant, pending bool) pickerView {
	view := pickerView{Pending: pending}

	for _, opt := range p.Options {
		po := pickerOption{
			Name: opt.Name,
			Kind: opt.Kind().String(),
		}
		for _, val := range opt.Values {
			target := swapAxis(active.SelectedOptions, opt.Name, val)
			po.Values = append(po.Values, pickerValue{
				Label:     val,
				URL:       productURL(p.Handle, target),
				Selected:  hasOption(active.SelectedOptions, opt.Name, val),
				Available: pending || variantAvailable(variants, target),
			})
		}
		view.Options = append(view.Options, po)
	}
	return view
}

// swapAxis returns the selection with one option name set to a new value,
// leaving every other axis untouched.
func swapAxis(sel []storefront.SelectedOption, name, value string) []storefront.SelectedOption {
	out := make([]storefront.SelectedOption, 0, len(sel)+1)
	replaced := false
	for _, s := range sel {
		if strings.EqualFold(s.Name, name) {
			out = append(out, storefront.SelectedOption{Name: s.Name, Value: value})
			replaced = true
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, storefront.SelectedOption{Name: name, Value: value})
	}
	return out
}

func hasOption(sel []storefront.SelectedOption, name, value string) bool {
	for _, s := range sel {
		if strings.EqualFold(s.Name, name) && s.Value == value {
			return true
		}
	}
	return false
}

func variantAvailable(variants []storefront.ProductVariant, target []storefront.SelectedOption) bool {
	for _, v := range variants {
		if v.Matches(target) {
			return v.AvailableForSale
		}
	}
	return false
}

func productURL(handle string, sel []storefront.SelectedOption) string {
	var b strings.Builder
	b.WriteString("/products/")
	b.WriteString(handle)
	sep := "?"
	for _, s := range sel {
		b.WriteString(sep)
		b.WriteString(url.QueryEscape(s.Name))
		b.WriteString("=")
		b.WriteString(url.QueryEscape(s.Value))
		sep = "&"
	}
	return b.String()
}
