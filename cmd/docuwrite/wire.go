package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docuwrite/internal/annotate"
	"github.com/dgallion1/docuwrite/internal/config"
	"github.com/dgallion1/docuwrite/internal/figcache"
	"github.com/dgallion1/docuwrite/internal/parser"
	"github.com/dgallion1/docuwrite/internal/pipeline"
	"github.com/dgallion1/docuwrite/internal/render"
)

// runtime owns the long-lived collaborators of a build or of the service:
// the shared browser, the figure cache and the rasterizer stack on top.
type runtime struct {
	browser  *render.Browser
	cache    *figcache.Cache
	cached   *figcache.Rasterizer
	stats    *render.Stats
	raster   annotate.Rasterizer
	renderer render.DocumentRenderer
	log      *slog.Logger
}

// newRuntime wires mermaid rendering as
// limit(cache(retry(mermaid))) and the configured document engine. Chrome
// starts only when a diagram or the chrome engine needs it.
func newRuntime(cfg config.Config, log *slog.Logger) (*runtime, error) {
	rt := &runtime{log: log, stats: render.NewStats(time.Hour)}
	rt.browser = render.NewBrowser(render.BrowserConfig{
		RemoteURL: cfg.BrowserURL,
		Bin:       cfg.BrowserBin,
		NoSandbox: cfg.NoSandbox,
		Logger:    log.With("component", "browser"),
	})

	mermaid := render.NewMermaidRasterizer(rt.browser, render.MermaidConfig{
		ScriptURL:  cfg.MermaidURL,
		ScriptPath: cfg.MermaidScript,
		Theme:      cfg.MermaidTheme,
		Timeout:    cfg.RenderTimeout,
		Stats:      rt.stats,
		Logger:     log.With("component", "mermaid"),
	})
	var raster annotate.Rasterizer = &pipeline.RetryRasterizer{
		Next:     mermaid,
		Attempts: cfg.RenderRetries,
		Log:      log,
	}

	if cfg.CachePath != "" {
		cache, err := figcache.Open(cfg.CachePath, log.With("component", "figcache"))
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.cache = cache
		if cfg.CacheMaxAge > 0 {
			n, err := cache.Prune(context.Background(), time.Now().Add(-cfg.CacheMaxAge))
			if err != nil {
				log.Warn("prune figure cache", "error", err)
			} else if n > 0 {
				log.Info("pruned figure cache", "removed", n)
			}
		}
		rt.cached = cache.Wrap(raster, cacheVariant(cfg))
		raster = rt.cached
	}
	rt.raster = pipeline.NewLimitRasterizer(raster, cfg.RenderWorkers)

	renderer, err := render.NewDocumentRenderer(cfg.Engine, render.EngineConfig{
		Pandoc: render.PandocConfig{
			Bin:            cfg.PandocBin,
			PDFEngine:      cfg.PDFEngine,
			HeaderIncludes: cfg.HeaderIncludes,
			Extensions:     cfg.Extensions,
			Logger:         log.With("component", "pandoc"),
		},
		HTML: render.HTMLConfig{
			Stylesheet: cfg.Stylesheet,
			Logger:     log.With("component", "html"),
		},
		Browser: rt.browser,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.renderer = renderer
	return rt, nil
}

// cacheVariant separates cached images drawn with different mermaid
// bundles or themes.
func cacheVariant(cfg config.Config) string {
	script := cfg.MermaidScript
	if script == "" {
		script = cfg.MermaidURL
	}
	if script == "" {
		script = render.DefaultMermaidURL
	}
	return cfg.MermaidTheme + "|" + script
}

func (rt *runtime) builder() *pipeline.Builder {
	return pipeline.NewBuilder(rt.raster, rt.renderer, rt.log)
}

// Close releases the browser and the cache.
func (rt *runtime) Close() error {
	var errs []error
	if rt.cached != nil {
		hits, misses := rt.cached.Stats()
		rt.log.Debug("figure cache", "hits", hits, "misses", misses)
	}
	if rt.browser != nil {
		if err := rt.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

// outputName adjusts the output extension to the engine: the html engine
// never writes a .pdf.
func outputName(cfg config.Config) string {
	if cfg.Engine == render.EngineHTML && strings.EqualFold(filepath.Ext(cfg.Output), ".pdf") {
		return strings.TrimSuffix(cfg.Output, filepath.Ext(cfg.Output)) + ".html"
	}
	return cfg.Output
}

// buildOptions maps the configuration onto one build.
func buildOptions(cfg config.Config) pipeline.BuildOptions {
	return pipeline.BuildOptions{
		Input:         cfg.Input,
		OrderFile:     cfg.OrderFile,
		OutputDir:     cfg.OutputDir,
		Output:        outputName(cfg),
		Title:         cfg.Title,
		TodoMessage:   cfg.TodoMessage,
		Jobs:          cfg.Jobs,
		RenderWorkers: cfg.RenderWorkers,
		WriteSource:   cfg.WriteSource,
		Parser:        parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
		Document: render.Options{
			TableOfContents: cfg.TOC,
			ListOfFigures:   cfg.ListOfFigures,
			ListOfTables:    cfg.ListOfTables,
			NumberSections:  cfg.NumberSections,
			MarginInches:    cfg.MarginInches,
			MaxHeadingLevel: cfg.TOCDepth,
			ResourcePaths:   cfg.ResourcePaths,
		},
	}
}
