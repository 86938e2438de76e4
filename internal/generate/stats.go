package generate

import (
	"sort"
	"sync"
	"time"
)

// StatsSnapshot is a point-in-time aggregate of recent draft calls.
type StatsSnapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    int64   `json:"p50_ms"`
	P95Ms    int64   `json:"p95_ms"`
}

type sample struct {
	at time.Time
	ms int64
	ok bool
}

// LLMStats keeps a rolling window of draft-call latencies and failures.
type LLMStats struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample
}

func NewLLMStats(window time.Duration) *LLMStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LLMStats{window: window}
}

// Record adds one successful call's latency.
func (s *LLMStats) Record(ms int64) { s.add(ms, true) }

// RecordFailure adds one failed call's latency.
func (s *LLMStats) RecordFailure(ms int64) { s.add(ms, false) }

func (s *LLMStats) add(ms int64, ok bool) {
	if ms < 0 {
		ms = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(time.Now())
	s.samples = append(s.samples, sample{at: time.Now(), ms: ms, ok: ok})
}

// Snapshot aggregates the samples still inside the window. Percentiles use
// nearest-rank over successful calls only.
func (s *LLMStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(time.Now())

	var snap StatsSnapshot
	var ok []int64
	var sum int64
	for _, sm := range s.samples {
		if !sm.ok {
			snap.Failures++
			continue
		}
		ok = append(ok, sm.ms)
		sum += sm.ms
	}
	snap.Count = len(ok)
	if len(ok) == 0 {
		return snap
	}
	sort.Slice(ok, func(i, j int) bool { return ok[i] < ok[j] })
	snap.MinMs = ok[0]
	snap.MaxMs = ok[len(ok)-1]
	snap.AvgMs = float64(sum) / float64(len(ok))
	snap.P50Ms = ok[rank(len(ok), 50)]
	snap.P95Ms = ok[rank(len(ok), 95)]
	return snap
}

func (s *LLMStats) prune(now time.Time) {
	cutoff := now.Add(-s.window)
	w := 0
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			s.samples[w] = sm
			w++
		}
	}
	s.samples = s.samples[:w]
}

func rank(n int, pct int) int {
	i := (n*pct + 99) / 100
	if i > 0 {
		i--
	}
	return i
}
