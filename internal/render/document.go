package render

import (
	"context"
	"fmt"
)

// Options are the document-level settings passed to a DocumentRenderer.
type Options struct {
	Title           string
	TableOfContents bool
	ListOfFigures   bool
	ListOfTables    bool
	NumberSections  bool
	MarginInches    float64
	MaxHeadingLevel int      // deepest heading level listed in the table of contents
	ResourcePaths   []string // directories searched for images
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		TableOfContents: true,
		ListOfFigures:   true,
		ListOfTables:    true,
		NumberSections:  true,
		MarginInches:    1,
		MaxHeadingLevel: 3,
	}
}

// DocumentRenderer turns an annotated Markdown file into a finished document.
type DocumentRenderer interface {
	Render(ctx context.Context, input, output string, opts Options) error
}

// Engine names accepted by NewDocumentRenderer.
const (
	EnginePandoc = "pandoc"
	EngineHTML   = "html"
	EngineChrome = "chrome"
)

// EngineConfig holds the settings of every engine. Only the chosen
// engine's fields are used.
type EngineConfig struct {
	Pandoc  PandocConfig
	HTML    HTMLConfig
	Browser *Browser // required by EngineChrome
}

// NewDocumentRenderer returns the renderer for engine.
func NewDocumentRenderer(engine string, cfg EngineConfig) (DocumentRenderer, error) {
	switch engine {
	case EnginePandoc, "":
		return NewPandocRenderer(cfg.Pandoc), nil
	case EngineHTML:
		return NewHTMLRenderer(cfg.HTML), nil
	case EngineChrome:
		if cfg.Browser == nil {
			return nil, fmt.Errorf("engine %q needs a browser", engine)
		}
		return NewChromeRenderer(cfg.Browser, NewHTMLRenderer(cfg.HTML)), nil
	default:
		return nil, fmt.Errorf("unknown render engine %q", engine)
	}
}
