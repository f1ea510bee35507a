package catalog

import (
	"sort"
	"sync"
	"time"
)

type call struct {
	at       time.Time
	duration time.Duration
	failed   bool
}

// OpStats aggregates the calls of one catalog operation.
type OpStats struct {
	Calls  int     `json:"calls"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
}

// Stats keeps per-operation catalog latencies for a rolling window.
type Stats struct {
	mu     sync.Mutex
	calls  map[string][]call
	window time.Duration
	now    func() time.Time
}

// NewStats returns stats that forget calls older than window.
func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{calls: map[string][]call{}, window: window, now: time.Now}
}

// Record adds one call of op. A nil receiver is a no-op.
func (s *Stats) Record(op string, d time.Duration, err error) {
	if s == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.calls[op] = append(prune(s.calls[op], now.Add(-s.window)), call{at: now, duration: d, failed: err != nil})
}

// Snapshot returns the aggregate of every operation seen in the window.
func (s *Stats) Snapshot() map[string]OpStats {
	out := map[string]OpStats{}
	if s == nil {
		return out
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)
	for op, calls := range s.calls {
		calls = prune(calls, cutoff)
		s.calls[op] = calls
		if len(calls) == 0 {
			delete(s.calls, op)
			continue
		}
		out[op] = aggregate(calls)
	}
	return out
}

func prune(calls []call, cutoff time.Time) []call {
	kept := calls[:0]
	for _, c := range calls {
		if !c.at.Before(cutoff) {
			kept = append(kept, c)
		}
	}
	return kept
}

func aggregate(calls []call) OpStats {
	ms := make([]int64, 0, len(calls))
	var sum int64
	st := OpStats{Calls: len(calls)}
	for _, c := range calls {
		if c.failed {
			st.Errors++
		}
		v := c.duration.Milliseconds()
		ms = append(ms, v)
		sum += v
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
	st.MinMs = ms[0]
	st.MaxMs = ms[len(ms)-1]
	st.AvgMs = float64(sum) / float64(len(ms))
	st.P50Ms = percentile(ms, 50)
	st.P95Ms = percentile(ms, 95)
	return st
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 1 || pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}
	idx := float64(len(sorted)-1) * pct / 100
	lo := int(idx)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := idx - float64(lo)
	return float64(sorted[lo]) + float64(sorted[lo+1]-sorted[lo])*frac
}
