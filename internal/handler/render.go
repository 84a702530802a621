// Package handler contains the HTTP handlers of the web site.
//
// Handlers parse forms, call a service, and either render a page or redirect
// with a flash message. They hold no business rules. Gated handlers receive
// the caller as an explicit *model.Viewer through Site.RequireViewer and
// Site.RequireRole.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/nowastemate/internal/model"
)

// pages lists every template rendered on its own inside base.html.
var pages = []string{
	"home",
	"register",
	"login",
	"contact",
	"post_donation",
	"donor_dashboard",
	"ngo_dashboard",
	"view_donations",
	"add_review",
	"impact",
	"error",
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("Jan 2, 2006 15:04")
	},
	"rating": func(f float64) string {
		return fmt.Sprintf("%.1f", f)
	},
	"categories": func() []model.Category {
		return model.Categories
	},
	"ratings": func() []int {
		out := make([]int, 0, model.MaxRating-model.MinRating+1)
		for r := model.MaxRating; r >= model.MinRating; r-- {
			out = append(out, r)
		}
		return out
	},
}

// Renderer holds one parsed template set per page. Each set is base.html
// plus the page, so every page can define its own "content" block.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses all pages from files once at startup.
func NewRenderer(files fs.FS, logger *slog.Logger) (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages)), logger: logger}
	for _, name := range pages {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(files, "base.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("handler: parsing %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Render executes page into a buffer first, so a template error still
// produces a clean 500 instead of a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown template", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		r.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
