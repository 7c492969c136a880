package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// HTMLConfig configures HTMLRenderer.
type HTMLConfig struct {
	Stylesheet string // optional CSS file inlined after the built-in style
	Logger     *slog.Logger
}

// HTMLRenderer renders annotated Markdown to a standalone HTML page with a
// generated table of contents and lists of figures and tables.
type HTMLRenderer struct {
	cfg      HTMLConfig
	md       goldmark.Markdown
	sanitize *bluemonday.Policy
}

func NewHTMLRenderer(cfg HTMLConfig) *HTMLRenderer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &HTMLRenderer{
		cfg: cfg,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		sanitize: bluemonday.UGCPolicy(),
	}
}

// Render reads input and writes the HTML page to output.
func (h *HTMLRenderer) Render(ctx context.Context, input, output string, opts Options) error {
	src, err := os.ReadFile(input)
	if err != nil {
		return &RenderError{Op: "convert", Target: output, Err: err}
	}
	page, err := h.Convert(src, opts)
	if err != nil {
		return &RenderError{Op: "convert", Target: output, Err: err}
	}
	if err := os.WriteFile(output, page, 0o644); err != nil {
		return &RenderError{Op: "write", Target: output, Err: err}
	}
	h.cfg.Logger.Info("html written", "output", output, "bytes", len(page))
	return nil
}

type entry struct {
	ID    string
	Title string
	Level int
}

type pageData struct {
	Title          string
	Style          template.CSS
	NumberSections bool
	TOC            []entry
	Figures        []entry
	Tables         []entry
	Body           template.HTML
}

var (
	labelRe   = regexp.MustCompile(`\\label\{([A-Za-z0-9:_.-]+)\}`)
	pagerefRe = regexp.MustCompile(`\\pageref\{([A-Za-z0-9:_.-]+)\}`)
)

// Convert renders Markdown source to a complete HTML page.
func (h *HTMLRenderer) Convert(src []byte, opts Options) ([]byte, error) {
	src = labelRe.ReplaceAll(src, []byte(`<a id="$1"></a>`))
	src = pagerefRe.ReplaceAll(src, []byte(`<a href="#$1">see</a>`))

	doc := h.md.Parser().Parse(text.NewReader(src))

	maxLevel := opts.MaxHeadingLevel
	if maxLevel <= 0 {
		maxLevel = 3
	}
	data := pageData{Title: opts.Title, NumberSections: opts.NumberSections}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level <= maxLevel {
				id, _ := node.AttributeString("id")
				idBytes, _ := id.([]byte)
				data.TOC = append(data.TOC, entry{ID: string(idBytes), Title: plainText(node, src), Level: node.Level})
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if img := soleImage(node, src); img != nil {
				id := fmt.Sprintf("figure-%d", len(data.Figures)+1)
				node.SetAttributeString("id", []byte(id))
				data.Figures = append(data.Figures, entry{ID: id, Title: plainText(img, src)})
				return ast.WalkSkipChildren, nil
			}
			if t := plainText(node, src); strings.HasPrefix(t, "Table:") {
				id := fmt.Sprintf("table-%d", len(data.Tables)+1)
				node.SetAttributeString("id", []byte(id))
				data.Tables = append(data.Tables, entry{ID: id, Title: strings.TrimSpace(strings.TrimPrefix(t, "Table:"))})
				return ast.WalkSkipChildren, nil
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk document: %w", err)
	}

	var body bytes.Buffer
	if err := h.md.Renderer().Render(&body, src, doc); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	data.Body = template.HTML(h.sanitize.SanitizeBytes(body.Bytes()))

	if !opts.TableOfContents {
		data.TOC = nil
	}
	if !opts.ListOfFigures {
		data.Figures = nil
	}
	if !opts.ListOfTables {
		data.Tables = nil
	}

	style := baseStyle
	if opts.MarginInches > 0 {
		style += fmt.Sprintf("@page { margin: %gin; }\n", opts.MarginInches)
	}
	if h.cfg.Stylesheet != "" {
		css, err := os.ReadFile(h.cfg.Stylesheet)
		if err != nil {
			return nil, fmt.Errorf("read stylesheet: %w", err)
		}
		style += string(css)
	}
	data.Style = template.CSS(style)

	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("execute page template: %w", err)
	}
	return out.Bytes(), nil
}

// soleImage returns the image of a paragraph holding nothing else.
func soleImage(p *ast.Paragraph, src []byte) *ast.Image {
	var img *ast.Image
	for c := p.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Image:
			if img != nil {
				return nil
			}
			img = node
		case *ast.Text:
			if len(bytes.TrimSpace(node.Segment.Value(src))) != 0 {
				return nil
			}
		default:
			return nil
		}
	}
	return img
}

// plainText concatenates the text below n.
func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

const baseStyle = `body { font-family: "DejaVu Serif", Georgia, serif; max-width: 52em; margin: 2em auto; line-height: 1.5; }
img { max-width: 100%; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #999; padding: 0.3em 0.6em; }
nav ul { list-style: none; }
nav.toc li.l2 { margin-left: 1.5em; }
nav.toc li.l3 { margin-left: 3em; }
nav.toc li.l4, nav.toc li.l5, nav.toc li.l6 { margin-left: 4.5em; }
body.numbered main { counter-reset: h1; }
body.numbered main h1 { counter-reset: h2; }
body.numbered main h2 { counter-reset: h3; }
body.numbered main h1::before { counter-increment: h1; content: counter(h1) " "; }
body.numbered main h2::before { counter-increment: h2; content: counter(h1) "." counter(h2) " "; }
body.numbered main h3::before { counter-increment: h3; content: counter(h1) "." counter(h2) "." counter(h3) " "; }
`

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{if .Title}}{{.Title}}{{else}}Document{{end}}</title>
<style>
{{.Style}}</style>
</head>
<body{{if .NumberSections}} class="numbered"{{end}}>
{{- if .Title}}
<header><h1 class="title">{{.Title}}</h1></header>
{{- end}}
{{- if .TOC}}
<nav class="toc"><h2>Contents</h2><ul>
{{- range .TOC}}
<li class="l{{.Level}}"><a href="#{{.ID}}">{{.Title}}</a></li>
{{- end}}
</ul></nav>
{{- end}}
{{- if .Figures}}
<nav class="lof"><h2>List of Figures</h2><ul>
{{- range $i, $f := .Figures}}
<li><a href="#{{$f.ID}}">Figure {{inc $i}}: {{$f.Title}}</a></li>
{{- end}}
</ul></nav>
{{- end}}
{{- if .Tables}}
<nav class="lot"><h2>List of Tables</h2><ul>
{{- range $i, $t := .Tables}}
<li><a href="#{{$t.ID}}">Table {{inc $i}}: {{$t.Title}}</a></li>
{{- end}}
</ul></nav>
{{- end}}
<main>
{{.Body}}</main>
</body>
</html>
`))
