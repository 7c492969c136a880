package render

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// ChromeRenderer prints the HTML rendering of a document to PDF with
// headless Chrome.
type ChromeRenderer struct {
	browser *Browser
	html    *HTMLRenderer
}

func NewChromeRenderer(b *Browser, h *HTMLRenderer) *ChromeRenderer {
	return &ChromeRenderer{browser: b, html: h}
}

// Render writes an intermediate .html file next to input, so relative image
// references resolve, and prints it to output.
func (c *ChromeRenderer) Render(ctx context.Context, input, output string, opts Options) error {
	htmlPath := strings.TrimSuffix(input, filepath.Ext(input)) + ".html"
	if err := c.html.Render(ctx, input, htmlPath, opts); err != nil {
		return err
	}
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return &RenderError{Op: "convert", Target: output, Err: err}
	}

	page, err := c.browser.Page(ctx)
	if err != nil {
		return &RenderError{Op: "launch", Target: output, Err: err, Retryable: true}
	}
	defer page.Close()

	fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	if err := page.Navigate(fileURL); err != nil {
		return &RenderError{Op: "render", Target: output, Err: err, Retryable: true}
	}
	if err := page.WaitLoad(); err != nil {
		return &RenderError{Op: "render", Target: output, Err: err, Retryable: true}
	}

	margin := opts.MarginInches
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		MarginTop:       &margin,
		MarginBottom:    &margin,
		MarginLeft:      &margin,
		MarginRight:     &margin,
	})
	if err != nil {
		return &RenderError{Op: "render", Target: output, Err: err, Retryable: true}
	}
	defer stream.Close()

	f, err := os.Create(output)
	if err != nil {
		return &RenderError{Op: "write", Target: output, Err: err}
	}
	if _, err := io.Copy(f, stream); err != nil {
		f.Close()
		return &RenderError{Op: "write", Target: output, Err: err}
	}
	if err := f.Close(); err != nil {
		return &RenderError{Op: "write", Target: output, Err: err}
	}
	return nil
}
