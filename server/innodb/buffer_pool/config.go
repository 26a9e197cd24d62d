package buffer_pool

import (
	"time"

	"github.com/naver/rye-pgbuf/server/conf"
)

// Config is the narrow set of buffer pool tunables the spec names
// (spec.md §2 Config); everything else a running pool needs (disk
// layer, log manager, thread registry) is wired in as a dependency on
// New, not configured here.
type Config struct {
	// PageSize is the fixed size, in bytes, of every page this pool
	// manages, header included.
	PageSize int

	// NumBuffers is the number of BCBs the pool allocates up front —
	// the pool never grows this table at runtime.
	NumBuffers int

	// NumLRULists partitions the BCB table into that many independent
	// LRU lists, chosen per page by PageID mod NumLRULists, so victim
	// selection on different pages doesn't contend on one list mutex.
	NumLRULists int

	// HotRatio is the fraction (0,1) of each LRU list's length that
	// forms the hot zone; the remainder is the cold zone new pages
	// enter at (spec.md §4.5 "hot_count").
	HotRatio float64

	// NumHashBuckets sizes the hash index; should be a prime roughly
	// 1.5x NumBuffers to keep chains short.
	NumHashBuckets int

	// FlushRatio is the fraction of one LRU list's capacity that each
	// background flush_victim_candidate sweep scans from the list's
	// bottom (spec.md §4.7); the sweep runs every CheckpointInterval
	// regardless of how many pages are dirty.
	FlushRatio float64

	// CheckpointInterval is how often an unconditional waiter with no
	// other wakeup source re-checks IsInterruptPending while blocked.
	CheckpointInterval time.Duration

	// DebugPageValidationLevel gates the optional debug checks
	// (spec.md §4.8): at >=1, a fix of an existing (non-new) page runs
	// the check_page_type check and Invalidate scrambles the freed
	// page's body; 0 disables both.
	DebugPageValidationLevel int
}

// DefaultConfig mirrors the teacher's conf package convention of a
// zero-value-safe default that New() falls back to per missing field,
// rather than requiring every caller to fill in every tunable. The
// exception is DebugPageValidationLevel: a zero there is kept (checks
// off), not replaced by this default.
func DefaultConfig() Config {
	return Config{
		PageSize:                 16 * 1024,
		NumBuffers:               4096,
		NumLRULists:              8,
		HotRatio:                 0.625,
		NumHashBuckets:           8191,
		FlushRatio:               0.25,
		CheckpointInterval:       3 * time.Second,
		DebugPageValidationLevel: 1,
	}
}

// ConfigFromFile translates the ini-loaded conf.Cfg surface (spec.md §6
// configuration keys) into a Config, deriving the tunables the config
// file doesn't expose (HotRatio, NumHashBuckets) from defaults.
func ConfigFromFile(cfg *conf.Cfg) Config {
	d := DefaultConfig()
	c := Config{
		PageSize:                 cfg.PageSize,
		NumBuffers:               cfg.PageBufferSize,
		NumLRULists:              cfg.NumLRULists,
		HotRatio:                 d.HotRatio,
		NumHashBuckets:           d.NumHashBuckets,
		FlushRatio:               cfg.BufferFlushRatio,
		CheckpointInterval:       cfg.CheckpointIntervalDuration,
		DebugPageValidationLevel: cfg.DebugPageValidationLevel,
	}
	if c.NumBuffers > 0 {
		c.NumHashBuckets = c.NumBuffers*3/2 + 1
	}
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.NumBuffers <= 0 {
		c.NumBuffers = d.NumBuffers
	}
	if c.NumLRULists <= 0 {
		c.NumLRULists = d.NumLRULists
	}
	if c.HotRatio <= 0 || c.HotRatio >= 1 {
		c.HotRatio = d.HotRatio
	}
	if c.NumHashBuckets <= 0 {
		c.NumHashBuckets = d.NumHashBuckets
	}
	if c.FlushRatio <= 0 || c.FlushRatio >= 1 {
		c.FlushRatio = d.FlushRatio
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = d.CheckpointInterval
	}
	return c
}
