package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// PandocConfig configures PandocRenderer.
type PandocConfig struct {
	Bin            string   // pandoc executable, "pandoc" when empty
	PDFEngine      string   // LaTeX engine, "xelatex" when empty
	HeaderIncludes []string // raw LaTeX lines added to the preamble
	Extensions     []string // markdown extensions such as "+pipe_tables"
	Logger         *slog.Logger
}

// PandocRenderer renders documents with the pandoc command line tool.
type PandocRenderer struct {
	cfg PandocConfig
}

func NewPandocRenderer(cfg PandocConfig) *PandocRenderer {
	if cfg.Bin == "" {
		cfg.Bin = "pandoc"
	}
	if cfg.PDFEngine == "" {
		cfg.PDFEngine = "xelatex"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PandocRenderer{cfg: cfg}
}

// Args returns the pandoc arguments for rendering input to output.
func (p *PandocRenderer) Args(input, output string, opts Options) []string {
	args := []string{input, "-o", output, "--standalone"}

	paths := append([]string{filepath.Dir(input)}, opts.ResourcePaths...)
	args = append(args, "--resource-path="+strings.Join(paths, string(filepath.ListSeparator)))

	if opts.Title != "" {
		args = append(args, "--metadata", "title="+opts.Title)
	}
	if strings.EqualFold(filepath.Ext(output), ".pdf") {
		args = append(args, "--pdf-engine="+p.cfg.PDFEngine)
	}
	if opts.MarginInches > 0 {
		args = append(args, "-V", "geometry:margin="+strconv.FormatFloat(opts.MarginInches, 'f', -1, 64)+"in")
	}
	if opts.TableOfContents {
		args = append(args, "--toc")
		if opts.MaxHeadingLevel > 0 {
			args = append(args, "--toc-depth="+strconv.Itoa(opts.MaxHeadingLevel))
		}
	}
	if opts.ListOfTables {
		args = append(args, "-V", "lot")
	}
	if opts.ListOfFigures {
		args = append(args, "-V", "lof")
	}
	if opts.NumberSections {
		args = append(args, "--number-sections")
	}
	if len(p.cfg.Extensions) > 0 {
		args = append(args, "--from=markdown"+strings.Join(p.cfg.Extensions, ""))
	}
	if len(p.cfg.HeaderIncludes) > 0 {
		args = append(args, "-V", "header-includes="+strings.Join(p.cfg.HeaderIncludes, "\n"))
	}
	return args
}

// Render runs pandoc in the directory of input.
func (p *PandocRenderer) Render(ctx context.Context, input, output string, opts Options) error {
	args := p.Args(input, output, opts)
	p.cfg.Logger.Info("running pandoc", "bin", p.cfg.Bin, "args", args)

	cmd := exec.CommandContext(ctx, p.cfg.Bin, args...)
	cmd.Dir = filepath.Dir(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &RenderError{Op: "convert", Target: output, Err: err}
	}
	return nil
}
