package pagehttp

import (
	"context"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborgoods/storefront-web/internal/pageload"
	"github.com/harborgoods/storefront-web/internal/render"
	"github.com/harborgoods/storefront-web/internal/storefront"
)

type productData struct {
	Title           string
	Vendor          string
	Image           *storefront.Image
	Price           storefront.Money
	CompareAt       *storefront.Money
	Available       bool
	DescriptionHTML template.HTML
}

func (s *Site) Product(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		s.renderError(w, r, pageload.ErrNotFound)
		return
	}

	selected := storefront.SelectedOptionsFromQuery(r.URL.Query())

	p, err := s.api.ProductByHandle(ctx, handle, selected)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if p.FirstVariant == nil {
		// a product with no purchasable variants is not a page
		s.renderError(w, r, pageload.ErrNotFound)
		return
	}

	// A selection that matches no variant normalizes to the first variant's
	// canonical URL. This decision happens before the deferred variant
	// query is started, so the aborted response does no extra work.
	if len(selected) > 0 && p.SelectedVariant == nil {
		s.renderError(w, r, pageload.Redirect(p.CanonicalURL(p.FirstVariant), http.StatusFound))
		return
	}

	active := p.SelectedVariant
	if active == nil {
		active = p.FirstVariant
	}

	variants := pageload.Go(ctx, func(ctx context.Context) ([]storefront.ProductVariant, error) {
		return s.api.ProductAllVariants(ctx, handle)
	})

	image := active.Image
	if image == nil {
		image = p.FeaturedImage
	}

	title := p.Seo.Title
	if title == "" {
		title = p.Title
	}

	s.rnd.Render(w, r, &render.Page{
		Template: "product",
		Title:    title,
		Data: productData{
			Title:           p.Title,
			Vendor:          p.Vendor,
			Image:           image,
			Price:           active.Price,
			CompareAt:       active.CompareAtPrice,
			Available:       active.AvailableForSale,
			DescriptionHTML: template.HTML(p.DescriptionHTML),
		},
		Regions: []render.Region{{
			Name:     "variants",
			Template: "variant_picker",
			Fallback: buildPicker(p, active, nil, true),
			ErrText:  "Variant options failed to load. The first variant is shown.",
			Resolve: func(ctx context.Context) (any, error) {
				all, err := variants.Wait(ctx)
				if err != nil {
					return nil, err
				}
				return buildPicker(p, active, all, false), nil
			},
		}},
	})
}
