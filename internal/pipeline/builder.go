package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docuwrite/internal/annotate"
	"github.com/dgallion1/docuwrite/internal/markdown"
	"github.com/dgallion1/docuwrite/internal/parser"
	"github.com/dgallion1/docuwrite/internal/render"
	"github.com/dgallion1/docuwrite/internal/source"
)

// DocumentFile is the annotated Markdown written into the output directory.
const DocumentFile = "temp_processed.md"

// ErrEmptyDocument is returned when the merged sources contain no text.
var ErrEmptyDocument = errors.New("assembled document is empty")

// ErrUnsafeOutputDir is returned when cleaning the output directory would
// remove the working directory, the filesystem root or the input.
var ErrUnsafeOutputDir = errors.New("refusing to clean output directory")

// Phase names reported to BuildOptions.OnPhase.
const (
	PhaseAssembling = "assembling"
	PhaseRendering  = "rendering"
)

// BuildOptions describes one build.
type BuildOptions struct {
	Input       string // file, or directory of units
	OrderFile   string // order file inside a directory input
	OutputDir   string // emptied at the start of the build
	Output      string // rendered file name inside OutputDir; empty skips rendering
	Title       string
	TodoMessage string

	Jobs          int  // units read and annotated concurrently
	RenderWorkers int  // concurrent rasterizations per unit
	WriteSource   bool // write .mmd sidecars

	Parser   parser.Options
	Document render.Options

	OnPhase func(phase string)
}

// Result is the outcome of a build.
type Result struct {
	Manifest   *annotate.Manifest
	Duplicates []string // TODO items that occur more than once
}

// Builder assembles sources into one annotated document and renders it.
type Builder struct {
	raster   annotate.Rasterizer
	renderer render.DocumentRenderer
	log      *slog.Logger
}

// NewBuilder returns a Builder. renderer may be nil when no build renders.
func NewBuilder(raster annotate.Rasterizer, renderer render.DocumentRenderer, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{raster: raster, renderer: renderer, log: log}
}

// Build runs the whole pipeline: clean the output directory, read every unit,
// rasterize its diagrams, merge, extract and label TODOs, caption tables,
// write the annotated document and manifest, then render.
//
// Unreadable units are replaced by a stub and recorded as skipped. A render
// failure is returned after the manifest has been written.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*Result, error) {
	log := b.log.With("input", opts.Input)
	phase(opts, PhaseAssembling)

	if err := PrepareOutputDir(opts.OutputDir, opts.Input); err != nil {
		return nil, err
	}

	units, err := source.Resolve(opts.Input, opts.OrderFile)
	if err != nil {
		return nil, fmt.Errorf("resolve sources: %w", err)
	}
	log.Info("resolved sources", "units", len(units))

	texts, skipped := ReadUnits(ctx, units, opts.Jobs, opts.Parser, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest := &annotate.Manifest{Title: opts.Title, Skipped: skipped}
	for _, u := range units {
		if !isSkipped(skipped, u.Path) {
			manifest.Processed = append(manifest.Processed, u.Path)
		}
	}

	// Numbering is fixed before any rasterization starts.
	starts := make([]int, len(units))
	next := 0
	for i, text := range texts {
		starts[i] = next
		next += annotate.CountFigures(text)
	}

	unitFigures := make([][]annotate.Figure, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Jobs, 1))
	for i, u := range units {
		g.Go(func() error {
			out, figs, err := annotate.Figures(gctx, texts[i], b.raster, annotate.FigureOptions{
				Unit:        u.Name,
				OutputDir:   opts.OutputDir,
				Start:       starts[i],
				Workers:     opts.RenderWorkers,
				WriteSource: opts.WriteSource,
				Log:         log.With("unit", u.Name),
			})
			if err != nil {
				return err
			}
			texts[i] = out
			unitFigures[i] = figs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("annotate figures: %w", err)
	}
	for _, figs := range unitFigures {
		manifest.Figures = append(manifest.Figures, figs...)
	}
	manifest.SortFigures()

	doc := strings.Join(texts, "\n")
	if strings.TrimSpace(doc) == "" {
		return nil, ErrEmptyDocument
	}

	doc, todos, dups := annotateTodos(doc, opts.TodoMessage)
	for _, item := range dups {
		log.Warn("duplicate TODO shares one label", "item", item)
	}
	manifest.Todos = todos

	doc, manifest.Tables, err = annotate.Tables(doc)
	if err != nil {
		return nil, err
	}

	docPath := filepath.Join(opts.OutputDir, DocumentFile)
	if err := os.WriteFile(docPath, []byte(doc), 0o644); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	manifest.Document = docPath
	res := &Result{Manifest: manifest, Duplicates: dups}

	var renderErr error
	if opts.Output != "" && b.renderer != nil {
		phase(opts, PhaseRendering)
		docOpts := opts.Document
		docOpts.Title = opts.Title
		docOpts.ResourcePaths = append(append([]string(nil), docOpts.ResourcePaths...), opts.OutputDir)

		output := filepath.Join(opts.OutputDir, opts.Output)
		if err := b.renderer.Render(ctx, docPath, output, docOpts); err != nil {
			renderErr = fmt.Errorf("render document: %w", err)
		} else {
			manifest.Output = output
			if strings.EqualFold(filepath.Ext(output), ".pdf") {
				if n, err := render.PageCount(output); err != nil {
					log.Warn("count pages", "output", output, "error", err)
				} else {
					manifest.Pages = n
				}
			}
		}
	}

	if err := manifest.WriteFile(filepath.Join(opts.OutputDir, annotate.ManifestFile)); err != nil {
		return res, err
	}
	if renderErr != nil {
		return res, renderErr
	}

	log.Info("build complete",
		"processed", len(manifest.Processed),
		"skipped", len(manifest.Skipped),
		"figures", len(manifest.Figures),
		"failed_figures", len(manifest.FailedFigures()),
		"tables", len(manifest.Tables),
		"todos", len(manifest.Todos),
		"output", manifest.Output,
	)
	return res, nil
}

// annotateTodos extracts and labels TODOs and appends the TODO list when
// there is at least one.
func annotateTodos(doc, message string) (string, []annotate.Todo, []string) {
	todos := annotate.ExtractTodos(doc)
	if len(todos) == 0 {
		return doc, nil, nil
	}
	doc = annotate.LabelTodos(doc, todos)
	doc += "\n\n" + annotate.FormatTodoList(todos, message)
	return doc, todos, annotate.DuplicateTodos(todos)
}

// ReadUnits reads every unit with at most jobs in flight and normalizes
// heading spacing. A unit that fails to read is replaced by an error stub
// and reported as skipped. Order follows units.
func ReadUnits(ctx context.Context, units []source.Unit, jobs int, popts parser.Options, log *slog.Logger) ([]string, []annotate.SkippedUnit) {
	texts := make([]string, len(units))
	errs := make([]error, len(units))

	var g errgroup.Group
	g.SetLimit(max(jobs, 1))
	for i, u := range units {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			text, err := source.Read(u, popts)
			if err != nil {
				errs[i] = err
				return nil
			}
			texts[i] = markdown.NormalizeHeadingSpacing(text)
			return nil
		})
	}
	_ = g.Wait()

	var skipped []annotate.SkippedUnit
	for i, u := range units {
		if errs[i] == nil {
			log.Debug("read unit", "unit", u.Name, "bytes", len(texts[i]))
			continue
		}
		log.Error("unit skipped", "unit", u.Path, "error", errs[i])
		texts[i] = source.ErrorStub(u)
		skipped = append(skipped, annotate.SkippedUnit{Path: u.Path, Reason: errs[i].Error()})
	}
	return texts, skipped
}

// CollectTodos reads the sources of input and returns their TODOs without
// rasterizing or rendering anything.
func CollectTodos(ctx context.Context, input, orderFile string, jobs int, popts parser.Options, log *slog.Logger) ([]annotate.Todo, error) {
	units, err := source.Resolve(input, orderFile)
	if err != nil {
		return nil, fmt.Errorf("resolve sources: %w", err)
	}
	texts, _ := ReadUnits(ctx, units, jobs, popts, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return annotate.ExtractTodos(strings.Join(texts, "\n")), nil
}

// PrepareOutputDir empties dir and recreates it. It refuses when dir is the
// working directory or one of its parents, the filesystem root, or contains
// input.
func PrepareOutputDir(dir, input string) error {
	if dir == "" {
		return fmt.Errorf("%w: empty path", ErrUnsafeOutputDir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if filepath.Dir(absDir) == absDir {
		return fmt.Errorf("%w: %s is the filesystem root", ErrUnsafeOutputDir, absDir)
	}
	if cwd, err := os.Getwd(); err == nil && within(cwd, absDir) {
		return fmt.Errorf("%w: %s contains the working directory", ErrUnsafeOutputDir, absDir)
	}
	if input != "" {
		absInput, err := filepath.Abs(input)
		if err != nil {
			return fmt.Errorf("resolve input: %w", err)
		}
		if within(absInput, absDir) {
			return fmt.Errorf("%w: %s contains the input", ErrUnsafeOutputDir, absDir)
		}
	}

	if err := os.RemoveAll(absDir); err != nil {
		return fmt.Errorf("clean output dir: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

// within reports whether path equals dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func isSkipped(skipped []annotate.SkippedUnit, path string) bool {
	for _, s := range skipped {
		if s.Path == path {
			return true
		}
	}
	return false
}

func phase(opts BuildOptions, name string) {
	if opts.OnPhase != nil {
		opts.OnPhase(name)
	}
}
