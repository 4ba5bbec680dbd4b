package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ThemeInfo provides theme version information for headers.
// Implemented by theme.Manager.
type ThemeInfo interface {
	ThemeVersion() string
	ThemeHash() string
}

// ThemeHeaders adds X-Theme-Version and X-Theme-Hash headers to responses
// so deploys and cache behavior can be correlated with the active theme
// bundle.
func ThemeHeaders(info ThemeInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info != nil {
				v := info.ThemeVersion()
				h := info.ThemeHash()
				if v != "" {
					w.Header().Set("X-Theme-Version", v)
				}
				if h != "" {
					// short hash in the header
					if len(h) > 12 {
						h = h[:12]
					}
					w.Header().Set("X-Theme-Hash", h)
				}
				if span := trace.SpanFromContext(r.Context()); span != nil && span.IsRecording() {
					if v != "" {
						span.SetAttributes(attribute.String("theme.version", v))
					}
					if h != "" {
						span.SetAttributes(attribute.String("theme.hash", h))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
