package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docuwrite/internal/config"
	"github.com/dgallion1/docuwrite/internal/render"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DOCUWRITE_CACHE_PATH", "")
	t.Setenv("DOCUWRITE_ORDER_FILE", "")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--color", "off", "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func writeSources(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "src")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"01-intro.md": "# Intro\n\nHello.\n\nTODO: write more\n",
		"02-data.md":  "# Data\n\n| k | v |\n|---|---|\n| a | 1 |\n",
		".hidden.md":  "# Hidden\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		format, level string
		wantErr       bool
		wantJSON      bool
	}{
		{"text", "info", false, false},
		{"", "debug", false, false},
		{"json", "WARN", false, true},
		{"xml", "info", true, false},
		{"text", "loud", true, false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		log, err := newLogger(&buf, tt.format, tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s/%s: expected error %v, got %v", tt.format, tt.level, tt.wantErr, err)
			continue
		}
		if err != nil {
			continue
		}
		log.Error("hello")
		if got := strings.HasPrefix(buf.String(), "{"); got != tt.wantJSON {
			t.Errorf("%s/%s: expected json %v, got %q", tt.format, tt.level, tt.wantJSON, buf.String())
		}
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		engine, output, want string
	}{
		{render.EnginePandoc, "output.pdf", "output.pdf"},
		{render.EngineHTML, "output.pdf", "output.html"},
		{render.EngineHTML, "book.PDF", "book.html"},
		{render.EngineHTML, "page.html", "page.html"},
		{render.EngineChrome, "output.pdf", "output.pdf"},
	}
	for _, tt := range tests {
		got := outputName(config.Config{Engine: tt.engine, Output: tt.output})
		if got != tt.want {
			t.Errorf("%s %s: expected %q, got %q", tt.engine, tt.output, tt.want, got)
		}
	}
}

func TestBuildOptions(t *testing.T) {
	cfg := config.Config{
		Input:                "docs",
		OrderFile:            ".order",
		OutputDir:            "out",
		Output:               "output.pdf",
		Engine:               render.EngineHTML,
		TOC:                  true,
		TOCDepth:             2,
		NumberSections:       true,
		MarginInches:         0.75,
		Jobs:                 3,
		PDFFallbackPdftotext: true,
	}
	opts := buildOptions(cfg)
	if opts.Output != "output.html" {
		t.Errorf("expected output.html, got %q", opts.Output)
	}
	if opts.Jobs != 3 || opts.Input != "docs" || opts.OutputDir != "out" {
		t.Errorf("unexpected options %+v", opts)
	}
	if !opts.Document.TableOfContents || opts.Document.MaxHeadingLevel != 2 || opts.Document.ListOfFigures {
		t.Errorf("unexpected document options %+v", opts.Document)
	}
	if opts.Document.MarginInches != 0.75 {
		t.Errorf("expected margin 0.75, got %v", opts.Document.MarginInches)
	}
	if !opts.Parser.PDFFallbackPdftotext {
		t.Error("expected pdftotext fallback")
	}
}

func TestApplyBuildFlags(t *testing.T) {
	cmd := newBuildCmd()
	err := cmd.Flags().Parse([]string{
		"--no-toc", "--jobs", "8", "-o", "dist", "--extension", "+emoji,+smart",
		"--margin", "0.5", "--no-sandbox",
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{TOC: true, ListOfTables: true, Jobs: 4, OutputDir: "output", Title: "Docs"}
	applyBuildFlags(cmd.Flags(), &cfg)

	if cfg.TOC {
		t.Error("expected TOC disabled")
	}
	if !cfg.ListOfTables {
		t.Error("expected unset flag to keep list of tables")
	}
	if cfg.Jobs != 8 {
		t.Errorf("expected 8 jobs, got %d", cfg.Jobs)
	}
	if cfg.OutputDir != "dist" {
		t.Errorf("expected dist, got %q", cfg.OutputDir)
	}
	if cfg.Title != "Docs" {
		t.Errorf("expected title kept, got %q", cfg.Title)
	}
	if len(cfg.Extensions) != 2 || cfg.Extensions[1] != "+smart" {
		t.Errorf("unexpected extensions %v", cfg.Extensions)
	}
	if cfg.MarginInches != 0.5 || !cfg.NoSandbox {
		t.Errorf("unexpected margin %v or sandbox %v", cfg.MarginInches, cfg.NoSandbox)
	}
}

func TestCacheVariant(t *testing.T) {
	a := cacheVariant(config.Config{MermaidTheme: "default"})
	b := cacheVariant(config.Config{MermaidTheme: "dark"})
	c := cacheVariant(config.Config{MermaidTheme: "default", MermaidScript: "/opt/mermaid.js"})
	if a == b || a == c {
		t.Errorf("expected distinct variants, got %q %q %q", a, b, c)
	}
	if !strings.Contains(a, render.DefaultMermaidURL) {
		t.Errorf("expected default bundle in %q", a)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "docuwrite "+version+"\n" {
		t.Errorf("expected version line, got %q", out)
	}
}

func TestColorFlagRejectsUnknown(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"version", "--color", "sometimes"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for unknown color mode")
	}
}

func TestTodosCmd(t *testing.T) {
	dir := writeSources(t)

	out, err := execute(t, "todos", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Intro") || !strings.Contains(out, "write more") {
		t.Errorf("expected intro todo, got %q", out)
	}
	if strings.Contains(out, "Hidden") {
		t.Errorf("dot-files must be skipped, got %q", out)
	}

	out, err = execute(t, "todos", dir, "--markdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "# TODO List\n") {
		t.Errorf("expected TODO List section, got %q", out)
	}
}

func TestTodosCmd_NoInput(t *testing.T) {
	t.Setenv("DOCUWRITE_INPUT", "")
	if _, err := execute(t, "todos"); err == nil {
		t.Fatal("expected error without input")
	}
}

func TestBuildCmd_HTML(t *testing.T) {
	dir := writeSources(t)
	outDir := filepath.Join(filepath.Dir(dir), "out")

	out, err := execute(t, "build", dir, "-o", outDir, "--engine", "html", "--title", "Handbook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The appended TODO List is a table too.
	for _, want := range []string{"Sources", "01-intro.md", "no diagrams", "tables: 2", "todos:  1", "output.html"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q: %q", want, out)
		}
	}

	page, err := os.ReadFile(filepath.Join(outDir, "output.html"))
	if err != nil {
		t.Fatalf("expected rendered page: %v", err)
	}
	if !strings.Contains(string(page), "Handbook") {
		t.Error("expected title in page")
	}

	doc, err := os.ReadFile(filepath.Join(outDir, "temp_processed.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc), "# TODO List") {
		t.Errorf("expected TODO list appended, got %q", doc)
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	var manifest map[string]any
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("manifest is not JSON: %v", err)
	}
}

func TestBuildCmd_InvalidEngine(t *testing.T) {
	dir := writeSources(t)
	if _, err := execute(t, "build", dir, "--engine", "latex"); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestServeCmd_RequiresAPIKey(t *testing.T) {
	t.Setenv("DOCUWRITE_API_KEY", "")
	if _, err := execute(t, "serve"); err == nil {
		t.Fatal("expected error without API key")
	}
}
