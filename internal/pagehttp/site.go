// Package pagehttp holds the storefront page routes. Each handler follows
// the same shape: parse inputs, await the critical query, decide any
// redirect, start deferred queries, and hand a render.Page to the
// streaming renderer. Short-circuit results (not found, redirect) are
// plain error values translated at one boundary.
package pagehttp

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/harborgoods/storefront-web/internal/log"
	"github.com/harborgoods/storefront-web/internal/pageload"
	"github.com/harborgoods/storefront-web/internal/render"
	"github.com/harborgoods/storefront-web/internal/storefront"
	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// API is the slice of the storefront client the page routes consume.
// *storefront.Client satisfies it; tests substitute fakes.
type API interface {
	FeaturedCollection(ctx context.Context) (*storefront.CollectionSummary, error)
	RecommendedProducts(ctx context.Context, count int) ([]storefront.ProductSummary, error)
	ProductByHandle(ctx context.Context, handle string, selected []storefront.SelectedOption) (*storefront.Product, error)
	ProductAllVariants(ctx context.Context, handle string) ([]storefront.ProductVariant, error)
	CollectionByHandle(ctx context.Context, handle string, first int, cursor string) (*storefront.Collection, error)
	Collections(ctx context.Context, first int, cursor string) ([]storefront.CollectionSummary, storefront.PageInfo, error)
	ArticleByHandle(ctx context.Context, blogHandle, articleHandle string) (*storefront.Article, error)
	Articles(ctx context.Context, blogHandle string, first int, cursor string) (*storefront.Blog, error)
	Policies(ctx context.Context) ([]storefront.Policy, error)
	PolicyByHandle(ctx context.Context, handle string) (*storefront.Policy, error)
	Search(ctx context.Context, query string, first int) ([]storefront.ProductSummary, storefront.PageInfo, error)
	SitemapEntries(ctx context.Context, first int) (products, collections []storefront.SitemapEntry, err error)
}

type Options struct {
	API      API
	Renderer *render.Renderer
	Logger   log.Logger

	// BaseURL is the absolute site origin ("https://shop.example.com")
	// used in robots.txt and sitemap.xml. No trailing slash.
	BaseURL string
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
}

func (o *Options) validate() error {
	if o.API == nil {
		return xerrors.New("pagehttp: API is required")
	}
	if o.Renderer == nil {
		return xerrors.New("pagehttp: Renderer is required")
	}
	return nil
}

// Site carries the shared dependencies of every page handler.
type Site struct {
	api     API
	rnd     *render.Renderer
	logger  log.Logger
	baseURL string
}

func New(opts Options) (*Site, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Site{
		api:     opts.API,
		rnd:     opts.Renderer,
		logger:  opts.Logger,
		baseURL: opts.BaseURL,
	}, nil
}

// renderError is the loader error boundary: redirects pass through,
// missing entities become the 404 page, anything else is a 500 page.
func (s *Site) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if re, ok := pageload.AsRedirect(err); ok {
		http.Redirect(w, r, re.URL, re.Code)
		return
	}
	if errors.Is(err, storefront.ErrNotFound) || errors.Is(err, pageload.ErrNotFound) {
		s.NotFound(w, r)
		return
	}
	s.logger.Error(r.Context(), err, "page load failed", "url.path", r.URL.Path)
	s.rnd.Render(w, r, &render.Page{
		Template: "server_error",
		Title:    "Something went wrong",
		Status:   http.StatusInternalServerError,
	})
}

type notFoundData struct {
	Message string
}

// NotFound renders the 404 page; it doubles as the router's fallback.
func (s *Site) NotFound(w http.ResponseWriter, r *http.Request) {
	s.rnd.Render(w, r, &render.Page{
		Template: "not_found",
		Title:    "Not found",
		Data:     notFoundData{},
		Status:   http.StatusNotFound,
	})
}
