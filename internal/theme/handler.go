package theme

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// HandlerOptions configures the theme asset handler.
type HandlerOptions struct {
	// Manager supplies the active theme snapshot.
	Manager *Manager

	// SeedFS serves assets missing from the active bundle, and
	// everything when no bundle is active. Usually the embedded seed
	// theme.
	SeedFS fs.FS

	// BundleCacheControl applies to assets served from a remote bundle.
	// Bundle URLs are hash-addressed releases, so the default is a long
	// immutable policy.
	BundleCacheControl string

	// SeedCacheControl applies to assets served from the seed fallback,
	// which changes with every deploy.
	SeedCacheControl string
}

func (o *HandlerOptions) setDefaults() {
	if o.BundleCacheControl == "" {
		o.BundleCacheControl = "public, max-age=31536000, immutable"
	}
	if o.SeedCacheControl == "" {
		o.SeedCacheControl = "public, max-age=300"
	}
}

func (o *HandlerOptions) validate() error {
	if o.Manager == nil {
		return xerrors.New("theme handler: Manager is required")
	}
	if o.SeedFS == nil {
		return xerrors.New("theme handler: SeedFS is required")
	}
	return nil
}

// Handler serves theme assets from the active bundle with seed fallback.
// Mount behind http.StripPrefix so r.URL.Path is the asset name.
type Handler struct {
	opts HandlerOptions
}

func NewHandler(opts *HandlerOptions) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: *opts}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := cleanAssetPath(r.URL.Path)
	if name == "" {
		h.notFound(w)
		return
	}

	// prefer the active bundle; fall back to the embedded seed so a
	// bundle that drops a file cannot break the layout
	if snap, ok := h.opts.Manager.Get(); ok {
		if existsFile(snap.FS, name) {
			w.Header().Set("Cache-Control", h.opts.BundleCacheControl)
			if hash := h.opts.Manager.ThemeHash(); hash != "" {
				w.Header().Set("ETag", `"`+hash+`"`)
			}
			http.ServeFileFS(w, r, snap.FS, name)
			return
		}
	}

	if existsFile(h.opts.SeedFS, name) {
		w.Header().Set("Cache-Control", h.opts.SeedCacheControl)
		http.ServeFileFS(w, r, h.opts.SeedFS, name)
		return
	}

	h.notFound(w)
}

func (h *Handler) notFound(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("404 page not found"))
}

// cleanAssetPath normalizes a request path to an fs.FS name, rejecting
// anything that escapes the bundle root.
func cleanAssetPath(p string) string {
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." || strings.HasPrefix(p, "..") {
		return ""
	}
	return p
}

func existsFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
