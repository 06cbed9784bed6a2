package pipeline

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/stat"

	"firestige.xyz/edie/pkg/novatel"
)

const (
	maxIntervalSamples = 1024
	msPerWeek          = 604800000
)

// Metrics contains per-pipeline counters.
type Metrics struct {
	BytesRead    atomic.Uint64
	Received     atomic.Uint64
	Messages     atomic.Uint64
	Unknown      atomic.Uint64
	UnknownBytes atomic.Uint64
	Skipped      atomic.Uint64
	Reported     atomic.Uint64
	ReportErrors atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.BytesRead.Store(0)
	m.Received.Store(0)
	m.Messages.Store(0)
	m.Unknown.Store(0)
	m.UnknownBytes.Store(0)
	m.Skipped.Store(0)
	m.Reported.Store(0)
	m.ReportErrors.Store(0)
}

// IntervalStats summarises the receiver-time spacing of one message.
type IntervalStats struct {
	Message string
	Count   int
	MeanMs  float64
	StdMs   float64
	MinMs   float64
	MaxMs   float64
}

// intervalTracker records the GPS-time gap between consecutive messages of
// the same name, keeping the most recent samples.
type intervalTracker struct {
	mu      sync.Mutex
	last    map[string]float64
	samples map[string][]float64
}

func newIntervalTracker() *intervalTracker {
	return &intervalTracker{
		last:    make(map[string]float64),
		samples: make(map[string][]float64),
	}
}

func (t *intervalTracker) observe(meta *novatel.MetaData) {
	if meta.MessageName == "" || meta.TimeStatus == novatel.TimeUnknown {
		return
	}
	now := float64(meta.Week)*msPerWeek + meta.Milliseconds
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, seen := t.last[meta.MessageName]
	t.last[meta.MessageName] = now
	if !seen || now <= prev {
		return
	}
	s := append(t.samples[meta.MessageName], now-prev)
	if len(s) > maxIntervalSamples {
		s = s[len(s)-maxIntervalSamples:]
	}
	t.samples[meta.MessageName] = s
}

func (t *intervalTracker) snapshot() []IntervalStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]IntervalStats, 0, len(t.samples))
	for name, s := range t.samples {
		mean, std := stat.MeanStdDev(s, nil)
		if math.IsNaN(std) {
			std = 0
		}
		lo, hi := s[0], s[0]
		for _, v := range s[1:] {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		out = append(out, IntervalStats{Message: name, Count: len(s), MeanMs: mean, StdMs: std, MinMs: lo, MaxMs: hi})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Message < out[j].Message })
	return out
}
