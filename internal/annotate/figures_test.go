package annotate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const scenarioDoc = "# A\n\n```mermaid\ngraph TD;\na-->b\n```\n\n## B\n\nTODO: fix this\n"

// fakeRasterizer writes the payload to dest and fails payloads containing
// "bad".
type fakeRasterizer struct {
	mu      sync.Mutex
	calls   []string
	active  int
	peak    int
	latency time.Duration
}

func (f *fakeRasterizer) Render(ctx context.Context, payload, dest string) error {
	f.mu.Lock()
	f.calls = append(f.calls, payload)
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	if strings.Contains(payload, "bad") {
		return errors.New("syntax error in diagram")
	}
	return os.WriteFile(dest, []byte(payload), 0o644)
}

func TestFigures_Scenario(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRasterizer{}

	got, figures, err := Figures(context.Background(), scenarioDoc, r, FigureOptions{Unit: "doc", OutputDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "# A\n" + "\n\n![A](doc-01-a.png)\n" + "\n\n## B\n\nTODO: fix this\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if len(figures) != 1 {
		t.Fatalf("expected 1 figure, got %d", len(figures))
	}
	f := figures[0]
	if f.Number != 1 || f.Kind != "graph" || f.Name != "A" || !f.OK {
		t.Errorf("unexpected figure %+v", f)
	}
	if _, err := os.Stat(filepath.Join(dir, "doc-01-a.png")); err != nil {
		t.Errorf("expected image to be written: %v", err)
	}
}

func TestFigures_FailureThenSuccess(t *testing.T) {
	doc := "# Flow\n\n```mermaid\nbad graph\n```\n\n# Sequence\n\n```mermaid\nsequenceDiagram\n  A->>B: hi\n```\n"
	r := &fakeRasterizer{}

	got, figures, err := Figures(context.Background(), doc, r, FigureOptions{Unit: "doc", OutputDir: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(figures) != 2 {
		t.Fatalf("expected 2 figures, got %d", len(figures))
	}

	if figures[0].OK || figures[0].Error == "" {
		t.Errorf("expected first figure to fail, got %+v", figures[0])
	}
	if !strings.Contains(got, "```mermaid\nbad graph\n```") {
		t.Errorf("expected failed block to stay in place, got %q", got)
	}

	if !figures[1].OK || figures[1].Number != 2 {
		t.Errorf("expected second figure to succeed as number 2, got %+v", figures[1])
	}
	if !strings.Contains(got, "![Sequence](doc-02-sequence.png)") {
		t.Errorf("expected image reference for second figure, got %q", got)
	}
	if strings.Contains(got, "sequenceDiagram") {
		t.Errorf("expected second block to be replaced, got %q", got)
	}
	if !strings.HasSuffix(got, "![Sequence](doc-02-sequence.png)\n\n") {
		t.Errorf("unexpected tail in %q", got)
	}
}

func TestFigures_NumbersFollowPosition(t *testing.T) {
	var sb strings.Builder
	for _, h := range []string{"One", "Two", "Three", "Four", "Five", "Six"} {
		sb.WriteString("## " + h + "\n\n```mermaid\npie\n\"" + h + "\": 1\n```\n\n")
	}
	r := &fakeRasterizer{latency: 5 * time.Millisecond}

	got, figures, err := Figures(context.Background(), sb.String(), r, FigureOptions{
		Unit:      "part",
		OutputDir: t.TempDir(),
		Start:     4,
		Workers:   2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.peak > 2 {
		t.Errorf("expected at most 2 concurrent renders, saw %d", r.peak)
	}

	want := []string{
		"part-05-one.png", "part-06-two.png", "part-07-three.png",
		"part-08-four.png", "part-09-five.png", "part-10-six.png",
	}
	last := -1
	for i, f := range figures {
		if f.Number != 5+i {
			t.Errorf("figure %d: expected number %d, got %d", i, 5+i, f.Number)
		}
		if f.Image != want[i] {
			t.Errorf("figure %d: expected image %q, got %q", i, want[i], f.Image)
		}
		pos := strings.Index(got, want[i])
		if pos <= last {
			t.Errorf("figure %d: image reference out of order", i)
		}
		last = pos
	}
}

func TestFigures_WritesSource(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Figures(context.Background(), scenarioDoc, &fakeRasterizer{}, FigureOptions{
		Unit:        "doc",
		OutputDir:   dir,
		WriteSource: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "doc-01-a.mmd"))
	if err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	if string(data) != "graph TD;\na-->b" {
		t.Errorf("unexpected sidecar content %q", data)
	}
}

func TestFigures_NoDiagrams(t *testing.T) {
	r := &fakeRasterizer{}
	doc := "# Title\n\nJust text.\n"
	got, figures, err := Figures(context.Background(), doc, r, FigureOptions{Unit: "doc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != doc || figures != nil {
		t.Errorf("expected unchanged text and no figures, got %q %v", got, figures)
	}
	if len(r.calls) != 0 {
		t.Errorf("expected no render calls, got %d", len(r.calls))
	}
}

func TestFigures_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, _, err := Figures(ctx, scenarioDoc, &fakeRasterizer{}, FigureOptions{Unit: "doc", OutputDir: t.TempDir()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got != scenarioDoc {
		t.Errorf("expected text unchanged on cancel")
	}
}

func TestCountFigures(t *testing.T) {
	if n := CountFigures(scenarioDoc); n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
	if n := CountFigures("no diagrams"); n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}
