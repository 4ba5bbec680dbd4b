// Package csp generates per-request content-security-policy nonces and
// builds the policy header the page routes send with every HTML response.
//
// The nonce authorizes the inline swap scripts the streaming renderer
// emits, so the policy and the rendered markup must agree on the value.
// The nonce travels in the request context between the middleware and the
// renderer.
package csp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
)

type nonceKey struct{}

// NewNonce returns a fresh 128-bit base64 nonce.
func NewNonce() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// an empty nonce fails closed because no script will match it
		return ""
	}
	return base64.StdEncoding.EncodeToString(b[:])
}

// WithNonce attaches a nonce to the context.
func WithNonce(ctx context.Context, nonce string) context.Context {
	if nonce == "" {
		return ctx
	}
	return context.WithValue(ctx, nonceKey{}, nonce)
}

// NonceFromContext gets the nonce from context, or "" if none.
func NonceFromContext(ctx context.Context) string {
	v, _ := ctx.Value(nonceKey{}).(string)
	return v
}

// Policy describes the source directives allowed by the storefront.
type Policy struct {
	// Dev additionally permits local websocket origins for live reload.
	Dev bool

	// CDNHost is the image/media CDN the storefront serves assets from,
	// e.g. "cdn.harborgoods.com". Empty means same-origin only.
	CDNHost string
}

// Header renders the Content-Security-Policy header value for one request.
func (p Policy) Header(nonce string) string {
	self := "'self'"

	img := []string{self, "data:"}
	connect := []string{self}
	media := []string{self}
	if p.CDNHost != "" {
		host := "https://" + p.CDNHost
		img = append(img, host)
		media = append(media, host)
		connect = append(connect, host)
	}
	if p.Dev {
		// live-reload websockets from the local dev tooling
		connect = append(connect, "ws://localhost:*", "ws://127.0.0.1:*")
	}

	script := []string{self}
	if nonce != "" {
		script = append(script, "'nonce-"+nonce+"'")
	}

	directives := []string{
		"default-src " + self,
		"script-src " + strings.Join(script, " "),
		"style-src " + self + " 'unsafe-inline'",
		"img-src " + strings.Join(img, " "),
		"media-src " + strings.Join(media, " "),
		"connect-src " + strings.Join(connect, " "),
		"font-src " + self,
		"base-uri " + self,
		"form-action " + self,
		"frame-ancestors 'none'",
		"object-src 'none'",
	}
	if !p.Dev {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}

// Middleware generates a nonce per request, stores it in the context, and
// sets the Content-Security-Policy header before the handler runs so the
// header is present even when the response streams.
func Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := NewNonce()
			w.Header().Set("Content-Security-Policy", p.Header(nonce))
			next.ServeHTTP(w, r.WithContext(WithNonce(r.Context(), nonce)))
		})
	}
}
