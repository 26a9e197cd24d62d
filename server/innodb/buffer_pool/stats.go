package buffer_pool

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Stats is the pool's running counters, each updated with a plain
// atomic add so the fix/unfix hot path never takes a lock just to
// record telemetry (the teacher's BufferPoolStats follows the same
// atomic-counter shape).
type Stats struct {
	Fetches     int64
	Hits        int64
	Misses      int64
	Reads       int64
	Writes      int64
	Evictions   int64
	WaitTimeouts int64
	Interrupts   int64
}

func newStats() *Stats { return &Stats{} }

func (s *Stats) recordFetch(hit bool) {
	atomic.AddInt64(&s.Fetches, 1)
	if hit {
		atomic.AddInt64(&s.Hits, 1)
	} else {
		atomic.AddInt64(&s.Misses, 1)
	}
}

func (s *Stats) recordRead()      { atomic.AddInt64(&s.Reads, 1) }
func (s *Stats) recordWrite()     { atomic.AddInt64(&s.Writes, 1) }
func (s *Stats) recordEviction()  { atomic.AddInt64(&s.Evictions, 1) }
func (s *Stats) recordTimeout()   { atomic.AddInt64(&s.WaitTimeouts, 1) }
func (s *Stats) recordInterrupt() { atomic.AddInt64(&s.Interrupts, 1) }

// HitRatio reports the fraction of fetches that found the page already
// buffered, rendered as a decimal.Decimal rather than a bare float64 so the
// debug/attribution view (spec.md §3) can format it to a fixed number
// of places without binary-float rounding artifacts creeping into a
// percentage shown to an operator.
func (s *Stats) HitRatio() decimal.Decimal {
	fetches := atomic.LoadInt64(&s.Fetches)
	if fetches == 0 {
		return decimal.Zero
	}
	hits := atomic.LoadInt64(&s.Hits)
	return decimal.New(hits, 0).DivRound(decimal.New(fetches, 0), 4)
}

// HitPercent is HitRatio scaled to a 0-100 percentage string, e.g.
// "99.12".
func (s *Stats) HitPercent() string {
	return s.HitRatio().Mul(decimal.New(100, 0)).StringFixed(2)
}

// Snapshot returns a point-in-time copy safe to log or serialize.
type Snapshot struct {
	Fetches, Hits, Misses                   int64
	Reads, Writes, Evictions                int64
	WaitTimeouts, Interrupts                int64
	HitPercent                              string
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Fetches:      atomic.LoadInt64(&s.Fetches),
		Hits:         atomic.LoadInt64(&s.Hits),
		Misses:       atomic.LoadInt64(&s.Misses),
		Reads:        atomic.LoadInt64(&s.Reads),
		Writes:       atomic.LoadInt64(&s.Writes),
		Evictions:    atomic.LoadInt64(&s.Evictions),
		WaitTimeouts: atomic.LoadInt64(&s.WaitTimeouts),
		Interrupts:   atomic.LoadInt64(&s.Interrupts),
		HitPercent:   s.HitPercent(),
	}
}

// Stats exposes the pool's live counters.
func (p *BufferPool) Stats() Snapshot { return p.stats.Snapshot() }
