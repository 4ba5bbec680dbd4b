package pagehttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborgoods/storefront-web/internal/pageload"
	"github.com/harborgoods/storefront-web/internal/render"
	"github.com/harborgoods/storefront-web/internal/storefront"
)

// gridView feeds the product_grid partial.
type gridView struct {
	Products []storefront.ProductSummary
}

type collectionData struct {
	Title       string
	Handle      string
	Description string
	Grid        gridView
	HasNextPage bool
	EndCursor   string
}

func (s *Site) Collection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		s.renderError(w, r, pageload.ErrNotFound)
		return
	}
	cursor := r.URL.Query().Get("cursor")

	col, err := s.api.CollectionByHandle(ctx, handle, storefront.DefaultPageSize, cursor)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	title := col.Seo.Title
	if title == "" {
		title = col.Title
	}

	s.rnd.Render(w, r, &render.Page{
		Template: "collection",
		Title:    title,
		Data: collectionData{
			Title:       col.Title,
			Handle:      col.Handle,
			Description: col.Description,
			Grid:        gridView{Products: col.Products},
			HasNextPage: col.ProductsPage.HasNextPage,
			EndCursor:   col.ProductsPage.EndCursor,
		},
	})
}

type collectionsIndexData struct {
	Collections []storefront.CollectionSummary
	HasNextPage bool
	EndCursor   string
}

func (s *Site) CollectionsIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cursor := r.URL.Query().Get("cursor")

	cols, page, err := s.api.Collections(ctx, storefront.DefaultPageSize, cursor)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	s.rnd.Render(w, r, &render.Page{
		Template: "collections_index",
		Title:    "Collections",
		Data: collectionsIndexData{
			Collections: cols,
			HasNextPage: page.HasNextPage,
			EndCursor:   page.EndCursor,
		},
	})
}
