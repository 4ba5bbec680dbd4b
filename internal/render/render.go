// Package render turns route data into streamed HTML. The critical part of
// a page is rendered and flushed immediately with one placeholder region
// per deferred field; each region's resolved markup is then streamed as an
// out-of-order completion chunk swapped in by a nonce-authorized inline
// script. Crawlers get the fully-rendered document in a single buffered
// response with no scripts.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/harborgoods/storefront-web/internal/crawler"
	"github.com/harborgoods/storefront-web/internal/csp"
	"github.com/harborgoods/storefront-web/internal/log"
	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// Region is one suspension boundary: a named placeholder in the page that
// later swaps to resolved content, or to ErrText if resolution fails.
// Regions are independent; one resolving never blocks another.
type Region struct {
	Name string

	// Template renders the resolved data.
	Template string

	// FallbackTemplate renders the placeholder state; defaults to Template.
	// Fallback markup must be structurally compatible with the resolved
	// markup (same layout, placeholder data) to avoid layout shift.
	FallbackTemplate string
	Fallback         any

	// ErrText is the short human-readable text shown in the region when
	// the deferred value rejects. The rest of the page is unaffected.
	ErrText string

	// Resolve blocks until the region's deferred value is available.
	Resolve func(ctx context.Context) (any, error)
}

// Page is the renderer's input: critical data plus deferred regions.
type Page struct {
	Template string
	Title    string
	Data     any
	Regions  []Region

	// Status defaults to 200. Error pages set 404/500 and render through
	// the same pipeline.
	Status int
}

// Metrics receives render observability signals; implemented by the
// metrics package.
type Metrics interface {
	IncRegionResolved()
	IncRegionError(region string)
	IncCrawlerBuffered()
	IncRenderError()
}

type nopMetrics struct{}

func (nopMetrics) IncRegionResolved()    {}
func (nopMetrics) IncRegionError(string) {}
func (nopMetrics) IncCrawlerBuffered()   {}
func (nopMetrics) IncRenderError()       {}

type Options struct {
	// Templates is the parsed template source tree (webassets.Templates).
	Templates fs.FS

	// StoreName appears in the layout header and <title>.
	StoreName string

	Logger  log.Logger
	Metrics Metrics
}

type Renderer struct {
	t         *template.Template
	storeName string
	logger    log.Logger
	metrics   Metrics
}

func New(opts Options) (*Renderer, error) {
	if opts.Templates == nil {
		return nil, xerrors.New("render: Templates is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.StoreName == "" {
		opts.StoreName = "Storefront"
	}

	t, err := template.New("root").ParseFS(opts.Templates, "templates/*.tmpl")
	if err != nil {
		return nil, xerrors.Wrap(err, "parse templates")
	}

	return &Renderer{
		t:         t,
		storeName: opts.StoreName,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// view is the data every template executes against.
type view struct {
	Title     string
	StoreName string
	Nonce     string
	Data      any

	// Regions maps region name to its current markup: placeholder markup
	// when streaming, final markup when buffered for crawlers.
	Regions map[string]template.HTML
}

type chunkView struct {
	Name  string
	HTML  template.HTML
	Nonce string
}

type regionResult struct {
	name string
	html template.HTML
}

// Render writes the page. It never panics past this boundary: template
// failures before the first byte produce a 500, failures mid-stream are
// logged and truncate the stream.
func (rr *Renderer) Render(w http.ResponseWriter, r *http.Request, p *Page) {
	ctx := r.Context()

	if crawler.IsBot(r.UserAgent()) {
		rr.renderBuffered(ctx, w, r, p)
		return
	}
	rr.renderStreaming(ctx, w, r, p)
}

// renderBuffered resolves every region first and returns one complete
// document, so crawlers that do not execute scripts see finished HTML.
func (rr *Renderer) renderBuffered(ctx context.Context, w http.ResponseWriter, r *http.Request, p *Page) {
	v := rr.newView(ctx, p)

	for _, rg := range p.Regions {
		v.Regions[rg.Name] = rr.resolveRegion(ctx, rg)
	}

	var buf bytes.Buffer
	if err := rr.writeDocument(&buf, p, v); err != nil {
		rr.fail(ctx, w, err)
		return
	}
	buf.WriteString("</body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusOf(p))
	_, _ = w.Write(buf.Bytes())
	rr.metrics.IncCrawlerBuffered()
}

// renderStreaming flushes the critical document with placeholders, then
// streams one completion chunk per region as each resolves.
func (rr *Renderer) renderStreaming(ctx context.Context, w http.ResponseWriter, r *http.Request, p *Page) {
	v := rr.newView(ctx, p)

	for _, rg := range p.Regions {
		ph, err := rr.placeholder(rg)
		if err != nil {
			rr.fail(ctx, w, err)
			return
		}
		v.Regions[rg.Name] = ph
	}

	// render the critical document to a buffer first so a template error
	// can still become a clean 500
	var buf bytes.Buffer
	if err := rr.writeDocument(&buf, p, v); err != nil {
		rr.fail(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusOf(p))
	if _, err := w.Write(buf.Bytes()); err != nil {
		return
	}
	flush(w)

	if len(p.Regions) > 0 {
		results := make(chan regionResult, len(p.Regions))
		for _, rg := range p.Regions {
			rg := rg
			go func() {
				results <- regionResult{name: rg.Name, html: rr.resolveRegion(ctx, rg)}
			}()
		}

		pending := len(p.Regions)
		for pending > 0 {
			select {
			case res := <-results:
				pending--
				if err := rr.writeChunk(w, v.Nonce, res); err != nil {
					return
				}
				flush(w)
			case <-ctx.Done():
				// client went away or request aborted: stop producing output
				return
			}
		}
	}

	_, _ = fmt.Fprint(w, "</body></html>")
	flush(w)
}

func (rr *Renderer) newView(ctx context.Context, p *Page) *view {
	return &view{
		Title:     p.Title,
		StoreName: rr.storeName,
		Nonce:     csp.NonceFromContext(ctx),
		Data:      p.Data,
		Regions:   make(map[string]template.HTML, len(p.Regions)),
	}
}

// writeDocument renders layout open + page content + layout close, leaving
// body/html unclosed for streaming chunks.
func (rr *Renderer) writeDocument(buf *bytes.Buffer, p *Page, v *view) error {
	if err := rr.t.ExecuteTemplate(buf, "layout_open", v); err != nil {
		return xerrors.Wrap(err, "layout_open")
	}
	if err := rr.t.ExecuteTemplate(buf, p.Template, v); err != nil {
		return xerrors.Wrapf(err, "page template %s", p.Template)
	}
	if err := rr.t.ExecuteTemplate(buf, "layout_close", v); err != nil {
		return xerrors.Wrap(err, "layout_close")
	}
	return nil
}

// resolveRegion waits for the deferred value and renders the resolved
// template, degrading to ErrText when the query rejected. Failures here
// are contained to the region.
func (rr *Renderer) resolveRegion(ctx context.Context, rg Region) template.HTML {
	data, err := rg.Resolve(ctx)
	if err != nil {
		rr.metrics.IncRegionError(rg.Name)
		rr.logger.Warn(ctx, "deferred region failed",
			"region", rg.Name,
			"error", err.Error(),
		)
		return errorHTML(rg.ErrText)
	}

	html, rerr := rr.partial(rg.Template, data)
	if rerr != nil {
		rr.metrics.IncRegionError(rg.Name)
		rr.logger.Error(ctx, rerr, "region template failed", "region", rg.Name)
		return errorHTML(rg.ErrText)
	}
	rr.metrics.IncRegionResolved()
	return html
}

func (rr *Renderer) placeholder(rg Region) (template.HTML, error) {
	name := rg.FallbackTemplate
	if name == "" {
		name = rg.Template
	}
	inner, err := rr.partial(name, rg.Fallback)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<div data-region=%q data-pending>`, rg.Name)
	buf.WriteString(string(inner))
	buf.WriteString(`</div>`)
	return template.HTML(buf.String()), nil
}

func (rr *Renderer) partial(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := rr.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", xerrors.Wrapf(err, "partial %s", name)
	}
	return template.HTML(buf.String()), nil
}

func (rr *Renderer) writeChunk(w http.ResponseWriter, nonce string, res regionResult) error {
	return rr.t.ExecuteTemplate(w, "region_chunk", chunkView{
		Name:  res.name,
		HTML:  res.html,
		Nonce: nonce,
	})
}

// fail is the render-error boundary: log, force 500, still answer.
func (rr *Renderer) fail(ctx context.Context, w http.ResponseWriter, err error) {
	rr.metrics.IncRenderError()
	rr.logger.Error(ctx, err, "render failed")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("<!doctype html><html><body><h1>Something went wrong</h1></body></html>"))
}

func errorHTML(errText string) template.HTML {
	if errText == "" {
		errText = "This section failed to load."
	}
	var buf bytes.Buffer
	buf.WriteString(`<p class="region-error">`)
	template.HTMLEscape(&buf, []byte(errText))
	buf.WriteString(`</p>`)
	return template.HTML(buf.String())
}

func statusOf(p *Page) int {
	if p.Status == 0 {
		return http.StatusOK
	}
	return p.Status
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
