package web

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

//go:embed assets/index.html
var dashboardHTML []byte

//go:embed assets/help.md
var helpMarkdown []byte

var helpTemplate = template.Must(template.New("help").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
code, pre { background: #f4f4f4; }
pre { padding: .75rem; overflow-x: auto; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: .25rem .5rem; }
</style>
</head>
<body>
<p><a href="/">&larr; Dashboard</a></p>
{{.Body}}
</body>
</html>
`))

// helpMeta is the front matter of the help page.
type helpMeta struct {
	Title string `yaml:"title"`
}

// renderHelp converts the embedded Markdown help into an HTML page.
func renderHelp(src []byte) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&frontmatter.Extender{},
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)

	var body bytes.Buffer
	ctx := parser.NewContext()
	if err := md.Convert(src, &body, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("cannot render help: %w", err)
	}

	meta := helpMeta{Title: "Help"}
	if fm := frontmatter.Get(ctx); fm != nil {
		if err := fm.Decode(&meta); err != nil {
			return nil, fmt.Errorf("cannot get frontmatter: %w", err)
		}
	}

	var page bytes.Buffer
	err := helpTemplate.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{meta.Title, template.HTML(body.String())})
	if err != nil {
		return nil, fmt.Errorf("cannot render help: %w", err)
	}
	return page.Bytes(), nil
}

// NewHelpHandler serves the help page. It is rendered once, up front.
func NewHelpHandler(log *slog.Logger) (http.HandlerFunc, error) {
	page, err := renderHelp(helpMarkdown)
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}, nil
}

func NewDashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(dashboardHTML)
	}
}
