package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/local/homeworkhero/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

type Web struct {
	tpl     *template.Template
	catalog config.Catalog
}

func New(catalog config.Catalog) *Web {
	tpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	return &Web{tpl: tpl, catalog: catalog}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", w.handleIndex)
	mux.HandleFunc("/about", w.handleAbout)
}

type pageData struct {
	Config config.Catalog
	Theme  config.Theme
}

// page picks the UI theme from ?theme=, falling back to the first one.
func (w *Web) page(r *http.Request) pageData {
	d := pageData{Config: w.catalog}
	if t, ok := w.catalog.Theme(r.URL.Query().Get("theme")); ok {
		d.Theme = t
	} else if len(w.catalog.Themes) > 0 {
		d.Theme = w.catalog.Themes[0]
	}
	return d
}

func (w *Web) render(wr http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := w.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(wr, "render failed", http.StatusInternalServerError)
		return
	}
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(wr)
}

func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(wr, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.render(wr, "index.html", w.page(r))
}

func (w *Web) handleAbout(wr http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		wr.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.render(wr, "about.html", w.page(r))
}
