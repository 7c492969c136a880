// Package annotate runs the annotation passes over assembled Markdown:
// diagram figures, table captions and TODO extraction and labeling.
package annotate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docuwrite/internal/markdown"
)

// Rasterizer renders one diagram payload to an image file at dest.
type Rasterizer interface {
	Render(ctx context.Context, payload, dest string) error
}

// Figure records the outcome of one diagram block.
type Figure struct {
	Number int    `json:"number"`
	Unit   string `json:"unit"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// FigureOptions controls a Figures pass over one unit.
type FigureOptions struct {
	Unit        string // base name used in image file names
	OutputDir   string // images and sidecars are written here
	Start       int    // figures are numbered Start+1, Start+2, ...
	Workers     int    // concurrent rasterizer calls; <= 0 means 1
	WriteSource bool   // write a .mmd sidecar next to each image
	Log         *slog.Logger
}

// Figures replaces every mermaid block of text whose rasterization succeeds
// with an image reference and returns the rewritten text and one Figure per
// block in document order.
//
// Rasterization runs concurrently. Rewriting happens afterwards in document
// order, so figure numbers and output are independent of completion order.
// A failed block stays in the text unchanged. The returned error is non-nil
// only when ctx is done or offset bookkeeping broke.
func Figures(ctx context.Context, text string, r Rasterizer, opts FigureOptions) (string, []Figure, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	blocks := markdown.ScanDiagrams(text)
	if len(blocks) == 0 {
		return text, nil, nil
	}
	markdown.NameBlocks(blocks, markdown.ParseHeadings(text))

	figures := make([]Figure, len(blocks))
	for i, b := range blocks {
		number := opts.Start + b.Seq
		figures[i] = Figure{
			Number: number,
			Unit:   opts.Unit,
			Kind:   markdown.DiagramKind(b.Payload),
			Name:   b.Name,
			Image:  markdown.FigureFileName(opts.Unit, number, b.Name),
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	renderErrs := make([]error, len(blocks))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range blocks {
		payload := blocks[i].Payload
		dest := filepath.Join(opts.OutputDir, figures[i].Image)
		if opts.WriteSource {
			if err := writeSidecar(dest, payload); err != nil {
				log.Warn("write diagram source", "figure", figures[i].Number, "error", err)
			}
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				renderErrs[i] = err
				return nil
			}
			renderErrs[i] = r.Render(ctx, payload, dest)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return text, nil, fmt.Errorf("render figures of %s: %w", opts.Unit, err)
	}

	out, err := markdown.Rewrite(text, blocks, func(b *markdown.Block) (string, string, error) {
		i := b.Seq - 1
		if renderErrs[i] != nil {
			return "", "", renderErrs[i]
		}
		return fmt.Sprintf("\n\n![%s](%s)\n", b.Name, figures[i].Image), figures[i].Image, nil
	})
	if err != nil {
		return text, nil, fmt.Errorf("rewrite figures of %s: %w", opts.Unit, err)
	}

	for i, b := range blocks {
		figures[i].OK = b.OK
		if b.Err != nil {
			figures[i].Error = b.Err.Error()
			log.Warn("figure failed", "figure", figures[i].Number, "kind", figures[i].Kind, "name", figures[i].Name, "error", b.Err)
			continue
		}
		log.Debug("figure rendered", "figure", figures[i].Number, "image", figures[i].Image)
	}

	return out, figures, nil
}

// CountFigures returns the number of diagram blocks Figures would process.
func CountFigures(text string) int {
	return len(markdown.ScanDiagrams(text))
}

func writeSidecar(imagePath, payload string) error {
	path := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".mmd"
	return os.WriteFile(path, []byte(payload), 0o644)
}
