package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dgallion1/docuwrite/internal/render"
)

// fakeRasterizer writes a placeholder image and fails payloads containing
// "bad".
type fakeRasterizer struct {
	calls   atomic.Int64
	active  atomic.Int64
	peak    atomic.Int64
	release chan struct{} // when set, Render blocks until it is closed
}

func (f *fakeRasterizer) Render(ctx context.Context, payload, dest string) error {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if strings.Contains(payload, "bad") {
		return &render.RenderError{Op: "render", Target: dest, Err: errors.New("parse error in diagram")}
	}
	return os.WriteFile(dest, []byte("png:"+payload), 0o644)
}

// fakeRenderer records its calls and writes a marker output file.
type fakeRenderer struct {
	mu    sync.Mutex
	calls []renderCall
	err   error
}

type renderCall struct {
	input, output string
	opts          render.Options
}

func (f *fakeRenderer) Render(ctx context.Context, input, output string, opts render.Options) error {
	f.mu.Lock()
	f.calls = append(f.calls, renderCall{input, output, opts})
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(output, []byte("%PDF"), 0o644)
}
