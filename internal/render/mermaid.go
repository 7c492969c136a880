package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultMermaidURL is where the mermaid bundle is fetched from when no local
// script is configured.
const DefaultMermaidURL = "https://cdn.jsdelivr.net/npm/mermaid@11.3.0/dist/mermaid.min.js"

const scriptFetchTimeout = 60 * time.Second

// Rasterizer renders one diagram payload to an image file at dest.
type Rasterizer interface {
	Render(ctx context.Context, payload, dest string) error
}

// MermaidConfig configures MermaidRasterizer.
type MermaidConfig struct {
	ScriptURL  string // mermaid bundle URL, DefaultMermaidURL when empty
	ScriptPath string // local mermaid bundle; wins over ScriptURL
	Theme      string // mermaid theme, "default" when empty
	Timeout    time.Duration
	HTTPClient *http.Client
	Stats      *Stats
	Logger     *slog.Logger
}

// MermaidRasterizer renders mermaid diagrams to PNG in headless Chrome.
type MermaidRasterizer struct {
	browser *Browser
	cfg     MermaidConfig

	scriptMu sync.Mutex
	script   string // cached once loaded successfully
}

func NewMermaidRasterizer(b *Browser, cfg MermaidConfig) *MermaidRasterizer {
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = DefaultMermaidURL
	}
	if cfg.Theme == "" {
		cfg.Theme = "default"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: scriptFetchTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &MermaidRasterizer{browser: b, cfg: cfg}
}

const mermaidPage = `<!DOCTYPE html><html><head><meta charset="utf-8"></head>` +
	`<body style="margin:0;background:#ffffff"><div id="diagram"></div></body></html>`

const mermaidEval = `async (source, theme) => {
	mermaid.initialize({ startOnLoad: false, theme: theme, securityLevel: "strict" });
	const { svg } = await mermaid.render("docuwrite-diagram", source);
	document.getElementById("diagram").innerHTML = svg;
	return "ok";
}`

// Render draws payload and writes the PNG to dest.
func (m *MermaidRasterizer) Render(ctx context.Context, payload, dest string) (err error) {
	start := time.Now()
	defer func() { m.cfg.Stats.Record(time.Since(start), err) }()

	script, err := m.loadScript(ctx)
	if err != nil {
		return &RenderError{Op: "script", Target: dest, Err: err, Retryable: m.cfg.ScriptPath == ""}
	}

	page, err := m.browser.Page(ctx)
	if err != nil {
		return &RenderError{Op: "launch", Target: dest, Err: err, Retryable: !errors.Is(err, ErrBrowserClosed)}
	}
	defer page.Close()
	page = page.Timeout(m.cfg.Timeout)

	if err := page.SetDocumentContent(mermaidPage); err != nil {
		return &RenderError{Op: "render", Target: dest, Err: err, Retryable: true}
	}
	if err := page.AddScriptTag("", script); err != nil {
		return &RenderError{Op: "script", Target: dest, Err: err, Retryable: true}
	}
	if _, err := page.Eval(mermaidEval, payload, m.cfg.Theme); err != nil {
		var evalErr *rod.EvalError
		return &RenderError{Op: "render", Target: dest, Err: err, Retryable: !errors.As(err, &evalErr)}
	}

	el, err := page.Element("#diagram svg")
	if err != nil {
		return &RenderError{Op: "capture", Target: dest, Err: err, Retryable: true}
	}
	png, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return &RenderError{Op: "capture", Target: dest, Err: err, Retryable: true}
	}
	if err := os.WriteFile(dest, png, 0o644); err != nil {
		return &RenderError{Op: "write", Target: dest, Err: err}
	}

	m.cfg.Logger.Debug("diagram rendered", "dest", dest, "bytes", len(png), "duration", time.Since(start))
	return nil
}

// loadScript returns the mermaid bundle. Only a successful load is cached;
// a failed fetch is attempted again by the next render. The fetch is
// detached from ctx so one canceled build cannot fail it for the others.
func (m *MermaidRasterizer) loadScript(ctx context.Context) (string, error) {
	m.scriptMu.Lock()
	defer m.scriptMu.Unlock()
	if m.script != "" {
		return m.script, nil
	}

	var script string
	if m.cfg.ScriptPath != "" {
		data, err := os.ReadFile(m.cfg.ScriptPath)
		if err != nil {
			return "", fmt.Errorf("read mermaid script: %w", err)
		}
		script = string(data)
	} else {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scriptFetchTimeout)
		defer cancel()
		var err error
		if script, err = fetchScript(fetchCtx, m.cfg.HTTPClient, m.cfg.ScriptURL); err != nil {
			m.cfg.Logger.Warn("mermaid script unavailable", "url", m.cfg.ScriptURL, "error", err)
			return "", err
		}
	}
	if script == "" {
		return "", errors.New("mermaid script is empty")
	}
	m.script = script
	return script, nil
}

func fetchScript(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch mermaid script: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch mermaid script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch mermaid script: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch mermaid script: %w", err)
	}
	return string(data), nil
}
