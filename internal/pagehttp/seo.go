package pagehttp

import (
	"encoding/xml"
	"fmt"
	"net/http"
)

func (s *Site) Robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "User-agent: *")
	fmt.Fprintln(w, "Allow: /")
	fmt.Fprintln(w, "Disallow: /search")
	if s.baseURL != "" {
		fmt.Fprintf(w, "Sitemap: %s/sitemap.xml\n", s.baseURL)
	}
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *Site) Sitemap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, collections, err := s.api.SitemapEntries(ctx, 250)
	if err != nil {
		s.logger.Error(ctx, err, "sitemap query failed")
		http.Error(w, "sitemap unavailable", http.StatusInternalServerError)
		return
	}

	set := sitemapSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: s.baseURL + "/"},
			{Loc: s.baseURL + "/collections"},
			{Loc: s.baseURL + "/policies"},
		},
	}
	for _, p := range products {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     s.baseURL + "/products/" + p.Handle,
			LastMod: p.UpdatedAt,
		})
	}
	for _, c := range collections {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     s.baseURL + "/collections/" + c.Handle,
			LastMod: c.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	fmt.Fprint(w, xml.Header)
	if err := xml.NewEncoder(w).Encode(set); err != nil {
		s.logger.Warn(ctx, "sitemap encode failed", "error", err.Error())
	}
}
