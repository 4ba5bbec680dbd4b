package pagehttp

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborgoods/storefront-web/internal/pageload"
	"github.com/harborgoods/storefront-web/internal/render"
	"github.com/harborgoods/storefront-web/internal/storefront"
)

type blogData struct {
	Title       string
	Handle      string
	Articles    []storefront.Article
	HasNextPage bool
	EndCursor   string
}

func (s *Site) Blog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	handle := chi.URLParam(r, "blog")
	if handle == "" {
		s.renderError(w, r, pageload.ErrNotFound)
		return
	}
	cursor := r.URL.Query().Get("cursor")

	blog, err := s.api.Articles(ctx, handle, storefront.DefaultPageSize, cursor)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	s.rnd.Render(w, r, &render.Page{
		Template: "blog",
		Title:    blog.Title,
		Data: blogData{
			Title:       blog.Title,
			Handle:      handle,
			Articles:    blog.Articles,
			HasNextPage: blog.Page.HasNextPage,
			EndCursor:   blog.Page.EndCursor,
		},
	})
}

type articleData struct {
	Title       string
	Author      string
	Published   string
	Image       *storefront.Image
	ContentHTML template.HTML
}

func (s *Site) Article(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	blogHandle := chi.URLParam(r, "blog")
	articleHandle := chi.URLParam(r, "article")
	if blogHandle == "" || articleHandle == "" {
		s.renderError(w, r, pageload.ErrNotFound)
		return
	}

	a, err := s.api.ArticleByHandle(ctx, blogHandle, articleHandle)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	related := pageload.Go(ctx, func(ctx context.Context) ([]storefront.ProductSummary, error) {
		return s.api.RecommendedProducts(ctx, recommendedCount)
	})

	title := a.Seo.Title
	if title == "" {
		title = a.Title
	}

	s.rnd.Render(w, r, &render.Page{
		Template: "article",
		Title:    title,
		Data: articleData{
			Title:       a.Title,
			Author:      a.AuthorName,
			Published:   formatDate(a.PublishedAt),
			Image:       a.Image,
			ContentHTML: template.HTML(a.ContentHTML),
		},
		Regions: []render.Region{{
			Name:     "related",
			Template: "product_rail",
			Fallback: pendingRail(recommendedCount),
			ErrText:  "Related products are unavailable right now.",
			Resolve: func(ctx context.Context) (any, error) {
				products, err := related.Wait(ctx)
				if err != nil {
					return nil, err
				}
				return railView{Products: products}, nil
			},
		}},
	})
}

// formatDate turns the API's RFC3339 timestamp into a byline date, passing
// unparseable values through untouched.
func formatDate(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("January 2, 2006")
}
