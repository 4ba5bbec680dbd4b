package pagehttp

import (
	"github.com/go-chi/chi/v5"
)

// Routes registers every page handler on the given router group. The
// caller decides which middleware the group carries; NotFound stays the
// caller's to mount since chi scopes fallbacks to the whole router.
func (s *Site) Routes(r chi.Router) {
	r.Get("/", s.Home)
	r.Get("/products/{handle}", s.Product)
	r.Get("/collections", s.CollectionsIndex)
	r.Get("/collections/{handle}", s.Collection)
	r.Get("/blogs/{blog}", s.Blog)
	r.Get("/blogs/{blog}/{article}", s.Article)
	r.Get("/policies", s.Policies)
	r.Get("/policies/{handle}", s.Policy)
	r.Get("/search", s.Search)
	r.Get("/robots.txt", s.Robots)
	r.Get("/sitemap.xml", s.Sitemap)
}
