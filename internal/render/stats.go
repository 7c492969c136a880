package render

import (
	"errors"
	"slices"
	"sync"
	"time"
)

// statsCapacity bounds the samples kept regardless of the window.
const statsCapacity = 1024

// Stats keeps the outcome of recent diagram renders: at most statsCapacity
// samples, none older than the window. A nil *Stats records nothing.
type Stats struct {
	mu     sync.Mutex
	window time.Duration
	ring   []renderSample
	next   int
}

type renderSample struct {
	at  time.Time
	dur time.Duration
	op  string // failing operation, empty on success
}

// StatsSnapshot summarizes the renders inside the window. Latencies cover
// successful renders only.
type StatsSnapshot struct {
	Renders   int            `json:"renders"`
	Failed    int            `json:"failed"`
	FailedOps map[string]int `json:"failed_ops,omitempty"`
	P50Ms     int64          `json:"p50_ms"`
	P95Ms     int64          `json:"p95_ms"`
	MaxMs     int64          `json:"max_ms"`
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{window: window}
}

// Record adds one render that took d. err is the render's error, nil on
// success; failures are grouped by RenderError.Op.
func (s *Stats) Record(d time.Duration, err error) {
	if s == nil {
		return
	}
	sm := renderSample{at: time.Now(), dur: max(d, 0)}
	if err != nil {
		sm.op = "other"
		var re *RenderError
		if errors.As(err, &re) && re.Op != "" {
			sm.op = re.Op
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ring) < statsCapacity {
		s.ring = append(s.ring, sm)
		return
	}
	s.ring[s.next] = sm
	s.next = (s.next + 1) % statsCapacity
}

func (s *Stats) Snapshot() StatsSnapshot {
	var snap StatsSnapshot
	if s == nil {
		return snap
	}
	cutoff := time.Now().Add(-s.window)

	s.mu.Lock()
	var ok []time.Duration
	for _, sm := range s.ring {
		if sm.at.Before(cutoff) {
			continue
		}
		snap.Renders++
		if sm.op == "" {
			ok = append(ok, sm.dur)
			continue
		}
		snap.Failed++
		if snap.FailedOps == nil {
			snap.FailedOps = make(map[string]int)
		}
		snap.FailedOps[sm.op]++
	}
	s.mu.Unlock()

	if len(ok) == 0 {
		return snap
	}
	slices.Sort(ok)
	snap.P50Ms = nearestRank(ok, 50).Milliseconds()
	snap.P95Ms = nearestRank(ok, 95).Milliseconds()
	snap.MaxMs = ok[len(ok)-1].Milliseconds()
	return snap
}

// nearestRank returns the pct percentile of sorted, which must not be empty.
func nearestRank(sorted []time.Duration, pct int) time.Duration {
	rank := (pct*len(sorted) + 99) / 100
	return sorted[max(rank, 1)-1]
}
