package pagehttp

import (
	"context"
	"net/http"

	"github.com/harborgoods/storefront-web/internal/pageload"
	"github.com/harborgoods/storefront-web/internal/render"
	"github.com/harborgoods/storefront-web/internal/storefront"
)

// recommendedCount is how many products the home and article rails show.
const recommendedCount = 4

type homeData struct {
	Featured *storefront.CollectionSummary
}

// railView feeds the product_rail partial in both its states: skeleton
// cards while pending, real product cards once resolved.
type railView struct {
	Pending      bool
	Placeholders []struct{}
	Products     []storefront.ProductSummary
}

func pendingRail(n int) railView {
	return railView{Pending: true, Placeholders: make([]struct{}, n)}
}

func (s *Site) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	featured, err := s.api.FeaturedCollection(ctx)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	// deferred query starts now; the renderer awaits it after the first flush
	rec := pageload.Go(ctx, func(ctx context.Context) ([]storefront.ProductSummary, error) {
		return s.api.RecommendedProducts(ctx, recommendedCount)
	})

	s.rnd.Render(w, r, &render.Page{
		Template: "home",
		Data:     homeData{Featured: featured},
		Regions: []render.Region{{
			Name:     "recommended",
			Template: "product_rail",
			Fallback: pendingRail(recommendedCount),
			ErrText:  "Recommendations are unavailable right now.",
			Resolve: func(ctx context.Context) (any, error) {
				products, err := rec.Wait(ctx)
				if err != nil {
					return nil, err
				}
				return railView{Products: products}, nil
			},
		}},
	})
}
