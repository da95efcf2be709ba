package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kjstillabower/climate-forecast-service/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names served by the renderer.
const (
	Index = "index"
	About = "about"
)

// Target is a display row for one predicted variable.
type Target struct {
	Field string
	Label string
	Unit  string
}

type pageData struct {
	Year             int
	Targets          []Target
	MaxDays          int
	DefaultLatitude  float64
	DefaultLongitude float64
}

var units = map[string]string{
	"temperature":   "°C",
	"humidity":      "%",
	"precipitation": "mm",
	"wind_speed":    "km/h",
}

var funcs = template.FuncMap{
	// seq returns 1..n for option lists.
	"seq": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	},
}

// Renderer renders the static pages with the current year injected.
type Renderer struct {
	pages map[string]*template.Template
	now   func() time.Time
	base  pageData
}

// Options configures page content.
type Options struct {
	Now              func() time.Time
	MaxDays          int
	DefaultLatitude  float64
	DefaultLongitude float64
}

// New parses the embedded templates.
func New(opts Options) (*Renderer, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Renderer{
		pages: make(map[string]*template.Template, 2),
		now:   opts.Now,
		base: pageData{
			Targets:          targetLabels(models.TargetNames),
			MaxDays:          opts.MaxDays,
			DefaultLatitude:  opts.DefaultLatitude,
			DefaultLongitude: opts.DefaultLongitude,
		},
	}
	for _, name := range []string{Index, About} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes the named page. Output is buffered so a template error never sends a partial page.
func (r *Renderer) Render(w io.Writer, name string) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	data := r.base
	data.Year = r.now().Year()
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// targetLabels turns field names such as wind_speed into "Wind Speed".
func targetLabels(names []string) []Target {
	title := cases.Title(language.English)
	out := make([]Target, 0, len(names))
	for _, n := range names {
		out = append(out, Target{
			Field: n,
			Label: title.String(strings.ReplaceAll(n, "_", " ")),
			Unit:  units[n],
		})
	}
	return out
}
