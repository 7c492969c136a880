package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const annotated = "# Intro\n\nSome text.\n\n\n\n![Flow](doc-01-intro.png)\n\n## Data\n\n\nTable: Data\n\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n" +
	"TODO: fix this \\label{todo-item-1}\n\n# TODO List\n\nOpen items\n\n| Section | TODO Item | Page |\n|---------|-----------|------|\n| Data | fix this | \\pageref{todo-item-1} |\n"

func TestHTMLConvert(t *testing.T) {
	h := NewHTMLRenderer(HTMLConfig{})
	opts := DefaultOptions()
	opts.Title = "Guide"

	out, err := h.Convert([]byte(annotated), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page := string(out)

	for _, want := range []string{
		"<title>Guide</title>",
		`<body class="numbered">`,
		`<a href="#intro">Intro</a>`,
		`<a href="#data">Data</a>`,
		`<a href="#figure-1">Figure 1: Flow</a>`,
		`<a href="#table-1">Table 1: Data</a>`,
		`<p id="figure-1"><img src="doc-01-intro.png" alt="Flow"`,
		`<p id="table-1">Table: Data</p>`,
		`<table>`,
		`<a id="todo-item-1"></a>`,
		`href="#todo-item-1"`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("expected %q in page:\n%s", want, page)
		}
	}
	if strings.Contains(page, `\label`) || strings.Contains(page, `\pageref`) {
		t.Errorf("expected LaTeX references to be converted")
	}
}

func TestHTMLConvert_OptionsOff(t *testing.T) {
	h := NewHTMLRenderer(HTMLConfig{})
	out, err := h.Convert([]byte(annotated), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page := string(out)
	for _, absent := range []string{`class="toc"`, `class="lof"`, `class="lot"`, `class="numbered"`, "@page"} {
		if strings.Contains(page, absent) {
			t.Errorf("unexpected %q in page", absent)
		}
	}
	if !strings.Contains(page, "<title>Document</title>") {
		t.Errorf("expected fallback title")
	}
}

func TestHTMLConvert_Sanitizes(t *testing.T) {
	h := NewHTMLRenderer(HTMLConfig{})
	out, err := h.Convert([]byte("# T\n\n<script>alert(1)</script>\n\n<p onclick=\"x()\">hi</p>\n"), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(out), "alert(1)") || strings.Contains(string(out), "onclick") {
		t.Errorf("expected script and handlers removed, got:\n%s", out)
	}
}

func TestHTMLRender_Files(t *testing.T) {
	dir := t.TempDir()
	css := filepath.Join(dir, "extra.css")
	if err := os.WriteFile(css, []byte("body { color: #333; }"), 0o644); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(in, []byte(annotated), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "doc.html")

	h := NewHTMLRenderer(HTMLConfig{Stylesheet: css})
	if err := h.Render(context.Background(), in, out, DefaultOptions()); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "color: #333") {
		t.Errorf("expected stylesheet to be inlined")
	}
}

func TestNewDocumentRenderer(t *testing.T) {
	for _, engine := range []string{"", EnginePandoc, EngineHTML} {
		if _, err := NewDocumentRenderer(engine, EngineConfig{}); err != nil {
			t.Errorf("engine %q: unexpected error %v", engine, err)
		}
	}
	if _, err := NewDocumentRenderer(EngineChrome, EngineConfig{}); err == nil {
		t.Error("expected chrome engine without browser to fail")
	}
	if _, err := NewDocumentRenderer("troff", EngineConfig{}); err == nil {
		t.Error("expected unknown engine to fail")
	}
}
