package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"

	"github.com/labstack/echo/v4"
)

//go:embed templates static
var FS embed.FS

// Static is the embedded static asset tree served under /static.
func Static() fs.FS {
	return echo.MustSubFS(FS, "static")
}

// Renderer renders the embedded page templates. Every page is parsed together
// with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer(funcs template.FuncMap) (*Renderer, error) {
	pages, err := fs.Glob(FS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(FS, "templates/layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", page, err)
		}
		r.pages[path.Base(page)] = tmpl
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout.html", data)
}
