package storefront

import (
	"net/url"
	"sort"
	"strings"

	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// ignoredParamPrefixes are tracking/search parameters that must never be
// interpreted as variant option selections.
var ignoredParamPrefixes = []string{
	"utm_",
	"_kx",
	"ref",
	"fbclid",
	"gclid",
	"msclkid",
	"srsltid",
	"localization",
	"preview_theme_id",
}

// reservedParams are used by our own routes and are likewise not options.
var reservedParams = map[string]bool{
	"cursor": true,
	"q":      true,
}

// SelectedOptionsFromQuery converts URL query parameters into variant
// option selections, dropping tracking and reserved parameters. The result
// is sorted by name so selections compare stably.
func SelectedOptionsFromQuery(values url.Values) []SelectedOption {
	var out []SelectedOption
	for name, vals := range values {
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		if isIgnoredParam(name) {
			continue
		}
		out = append(out, SelectedOption{Name: name, Value: vals[0]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func isIgnoredParam(name string) bool {
	low := strings.ToLower(name)
	if reservedParams[low] {
		return true
	}
	for _, prefix := range ignoredParamPrefixes {
		if strings.HasPrefix(low, prefix) {
			return true
		}
	}
	return false
}

func queryEscape(s string) string { return url.QueryEscape(s) }

func xerrorsRequired(param string) error {
	return xerrors.Newf("storefront: missing required parameter %s", param)
}
