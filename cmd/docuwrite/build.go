package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dgallion1/docuwrite/internal/config"
	"github.com/dgallion1/docuwrite/internal/pipeline"
	"github.com/dgallion1/docuwrite/internal/publish"
	"github.com/dgallion1/docuwrite/internal/report"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [input]",
		Short: "Assemble sources and render the document",
		Long: "build reads a file, or a directory ordered by its .order file, rasterizes mermaid diagrams, " +
			"captions tables, labels TODOs, appends the TODO list and renders the document into the output directory.",
		Args: cobra.MaximumNArgs(1),
		RunE: runBuild,
	}
	f := cmd.Flags()
	f.String("order-file", "", "order file inside a directory input")
	f.StringP("output-dir", "o", "", "output directory, emptied first")
	f.String("output", "", "rendered file name inside the output directory")
	f.String("title", "", "document title")
	f.String("todo-message", "", "text above the TODO list")
	f.String("engine", "", "document engine (pandoc|html|chrome)")
	f.String("pdf-engine", "", "pandoc PDF engine")
	f.StringSlice("header-include", nil, "raw LaTeX added to the preamble (repeatable)")
	f.StringSlice("extension", nil, "pandoc markdown extension such as +emoji (repeatable)")
	f.String("stylesheet", "", "CSS file for the html and chrome engines")
	f.Int("jobs", 0, "units processed concurrently")
	f.Int("render-workers", 0, "concurrent diagram renders")
	f.Int("toc-depth", 0, "deepest heading level in the table of contents")
	f.Float64("margin", 0, "page margin in inches")
	f.Bool("no-toc", false, "omit the table of contents")
	f.Bool("no-lof", false, "omit the list of figures")
	f.Bool("no-lot", false, "omit the list of tables")
	f.Bool("no-number-sections", false, "do not number sections")
	f.String("mermaid-url", "", "mermaid bundle URL")
	f.String("mermaid-script", "", "local mermaid bundle")
	f.String("mermaid-theme", "", "mermaid theme")
	f.String("browser-url", "", "DevTools URL of a running Chrome")
	f.Bool("no-sandbox", false, "disable the Chrome sandbox")
	f.String("cache", "", "SQLite figure cache path")
	f.String("publish-url", "", "store the manifest at this pathstore URL")
	return cmd
}

// applyBuildFlags overlays the build flags that were set explicitly.
func applyBuildFlags(f *pflag.FlagSet, cfg *config.Config) {
	for name, dst := range map[string]*string{
		"order-file":     &cfg.OrderFile,
		"output-dir":     &cfg.OutputDir,
		"output":         &cfg.Output,
		"title":          &cfg.Title,
		"todo-message":   &cfg.TodoMessage,
		"engine":         &cfg.Engine,
		"pdf-engine":     &cfg.PDFEngine,
		"stylesheet":     &cfg.Stylesheet,
		"mermaid-url":    &cfg.MermaidURL,
		"mermaid-script": &cfg.MermaidScript,
		"mermaid-theme":  &cfg.MermaidTheme,
		"browser-url":    &cfg.BrowserURL,
		"cache":          &cfg.CachePath,
		"publish-url":    &cfg.PublishURL,
	} {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	for name, dst := range map[string]*int{
		"jobs":           &cfg.Jobs,
		"render-workers": &cfg.RenderWorkers,
		"toc-depth":      &cfg.TOCDepth,
	} {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	for name, dst := range map[string]*bool{
		"no-toc":             &cfg.TOC,
		"no-lof":             &cfg.ListOfFigures,
		"no-lot":             &cfg.ListOfTables,
		"no-number-sections": &cfg.NumberSections,
	} {
		if f.Changed(name) {
			v, _ := f.GetBool(name)
			*dst = !v
		}
	}
	if f.Changed("no-sandbox") {
		cfg.NoSandbox, _ = f.GetBool("no-sandbox")
	}
	if f.Changed("margin") {
		cfg.MarginInches, _ = f.GetFloat64("margin")
	}
	if f.Changed("header-include") {
		cfg.HeaderIncludes, _ = f.GetStringSlice("header-include")
	}
	if f.Changed("extension") {
		cfg.Extensions, _ = f.GetStringSlice("extension")
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyBuildFlags(cmd.Flags(), &cfg)
	if len(args) == 1 {
		cfg.Input = args[0]
	}
	if cfg.Input == "" {
		return fmt.Errorf("no input: pass a file or directory, or set DOCUWRITE_INPUT")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	res, buildErr := rt.builder().Build(ctx, buildOptions(cfg))
	if res != nil {
		report.Summary(cmd.OutOrStdout(), res.Manifest)
		if cfg.PublishURL != "" {
			publishManifest(ctx, cfg, res, log)
		}
	}
	return buildErr
}

func publishManifest(ctx context.Context, cfg config.Config, res *pipeline.Result, log *slog.Logger) {
	id := pipeline.NewJobID()
	client := publish.NewClient(cfg.PublishURL, cfg.PublishAPIKey)
	if err := client.Publish(ctx, id, res.Manifest); err != nil {
		log.Warn("publish manifest failed", "error", err)
		return
	}
	log.Info("manifest published", "key", client.ManifestKey(id))
}
