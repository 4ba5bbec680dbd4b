package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborgoods/storefront-web/internal/csp"
	"github.com/harborgoods/storefront-web/internal/health"
	"github.com/harborgoods/storefront-web/internal/httpmw"
	"github.com/harborgoods/storefront-web/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()

	MetricsMW   func(http.Handler) http.Handler
	RateLimitMW func(http.Handler) http.Handler

	ClientIPOpts httpmw.ClientIPOptions

	Health    health.Probe
	Readiness health.Probe

	// ThemeInfo drives the X-Theme-Version and X-Theme-Hash response headers.
	ThemeInfo httpmw.ThemeInfo

	// CSP is the content security policy applied to page routes. Each request
	// gets a fresh nonce; asset and health routes are not covered.
	CSP csp.Policy

	// PageRoutes registers the storefront page handlers on the router group
	// that carries the CSP nonce middleware.
	PageRoutes func(chi.Router)

	// AssetHandler serves the active theme bundle under /assets/*.
	AssetHandler http.Handler

	// NotFound renders the storefront 404 page for unmatched routes.
	NotFound http.Handler
}
