package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docuwrite/internal/annotate"
	"github.com/dgallion1/docuwrite/internal/render"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	return render.IsRetryable(err)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// RetryRasterizer retries retryable rasterization failures with backoff.
type RetryRasterizer struct {
	Next     annotate.Rasterizer
	Attempts int                            // total attempts, MaxRetries when <= 0
	Backoff  func(attempt int) time.Duration // Backoff when nil
	Log      *slog.Logger
}

func (r *RetryRasterizer) Render(ctx context.Context, payload, dest string) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = MaxRetries
	}
	backoff := r.Backoff
	if backoff == nil {
		backoff = Backoff
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	var lastErr error
	for attempt := range attempts {
		lastErr = r.Next.Render(ctx, payload, dest)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == attempts-1 {
			break
		}
		log.Warn("retryable render error", "dest", dest, "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// LimitRasterizer bounds the number of concurrent Render calls across every
// caller sharing it.
type LimitRasterizer struct {
	next annotate.Rasterizer
	sem  chan struct{}
}

// NewLimitRasterizer allows at most n concurrent renders; n <= 0 means 1.
func NewLimitRasterizer(next annotate.Rasterizer, n int) *LimitRasterizer {
	if n <= 0 {
		n = 1
	}
	return &LimitRasterizer{next: next, sem: make(chan struct{}, n)}
}

func (l *LimitRasterizer) Render(ctx context.Context, payload, dest string) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.next.Render(ctx, payload, dest)
}
