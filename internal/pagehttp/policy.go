package pagehttp

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/harborgoods/storefront-web/internal/pageload"
	"github.com/harborgoods/storefront-web/internal/render"
	"github.com/harborgoods/storefront-web/internal/storefront"
)

type policiesData struct {
	Policies []storefront.Policy
}

func (s *Site) Policies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.api.Policies(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.rnd.Render(w, r, &render.Page{
		Template: "policies",
		Title:    "Policies",
		Data:     policiesData{Policies: policies},
	})
}

type policyData struct {
	Title string
	Body  template.HTML
}

func (s *Site) Policy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		s.renderError(w, r, pageload.ErrNotFound)
		return
	}

	// canonical policy handles are lowercase kebab-case; non-canonical
	// casing redirects before any query runs
	canonical := strings.ToLower(handle)
	if handle != canonical {
		s.renderError(w, r, pageload.Redirect("/policies/"+canonical, http.StatusFound))
		return
	}

	p, err := s.api.PolicyByHandle(ctx, canonical)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	s.rnd.Render(w, r, &render.Page{
		Template: "policy",
		Title:    p.Title,
		Data: policyData{
			Title: p.Title,
			Body:  template.HTML(p.Body),
		},
	})
}
