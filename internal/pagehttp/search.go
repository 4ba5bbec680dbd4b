package pagehttp

import (
	"net/http"
	"strings"

	"github.com/harborgoods/storefront-web/internal/render"
)

// searchPageSize is larger than the collection page size: search has no
// pagination control, so one page carries the whole result set shown.
const searchPageSize = 24

type searchData struct {
	Query string
	Grid  gridView
}

func (s *Site) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	data := searchData{Query: query}
	if query != "" {
		products, _, err := s.api.Search(ctx, query, searchPageSize)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		data.Grid = gridView{Products: products}
	}

	title := "Search"
	if query != "" {
		title = query + " · Search"
	}

	s.rnd.Render(w, r, &render.Page{
		Template: "search",
		Title:    title,
		Data:     data,
	})
}
