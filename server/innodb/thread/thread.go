// Package thread is the buffer pool's thin adapter onto the thread
// runtime (spec.md §6): a stable per-caller index used to address
// fixed-size per-thread tables (the buffer-lock chain, the holder
// table), a polled interrupt flag, and a suspension status used by
// timed waits.
package thread

import (
	"sync"
	"sync/atomic"

	"github.com/shirou/gopsutil/mem"
)

// Status mirrors the suspension states a timed wait can observe on
// wakeup (spec.md §6 "Thread runtime").
type Status int32

const (
	StatusRunning Status = iota
	StatusSuspended
	StatusResumed
	StatusInterrupted
)

// Entry is one caller's thread-local state as seen by the buffer pool.
// It is not tied to a goroutine: callers obtain one from a Registry and
// pass it explicitly into every Fix/Unfix call, the way the original
// threads a THREAD_ENTRY* through every call.
type Entry struct {
	id          uint64
	idx         int
	interrupted int32
	status      int32
}

func (e *Entry) ID() uint64 { return e.id }

// Index is the stable small integer used to address this thread's slot
// in the buffer-lock and holder tables.
func (e *Entry) Index() int { return e.idx }

func (e *Entry) Interrupt() {
	atomic.StoreInt32(&e.interrupted, 1)
}

func (e *Entry) ClearInterrupt() {
	atomic.StoreInt32(&e.interrupted, 0)
}

func (e *Entry) IsInterrupted() bool {
	return atomic.LoadInt32(&e.interrupted) == 1
}

func (e *Entry) SetStatus(s Status) {
	atomic.StoreInt32(&e.status, int32(s))
}

func (e *Entry) GetStatus() Status {
	return Status(atomic.LoadInt32(&e.status))
}

// Registry assigns and recycles stable indices to Entries. Capacity grows
// monotonically; released indices are reused so the per-thread tables
// that size themselves off Capacity don't grow without bound under
// steady-state connect/disconnect churn.
type Registry struct {
	mu   sync.Mutex
	free []int
	next int

	// forcePoll is flipped by ForceInterruptPolling and observed by
	// every Entry's IsInterruptPending query (spec.md
	// pgbuf_force_to_check_for_interrupts).
	forcePoll int32
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) NewEntry() *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idx int
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = r.next
		r.next++
	}
	return &Entry{idx: idx, id: uint64(idx) + 1}
}

func (r *Registry) Release(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.free = append(r.free, e.idx)
}

// Capacity is the largest index ever handed out, plus one: the size any
// fixed-size per-thread table must be allocated to.
func (r *Registry) Capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

func (r *Registry) ForceInterruptPolling() {
	atomic.StoreInt32(&r.forcePoll, 1)
}

func (r *Registry) IsInterruptPending(e *Entry) bool {
	return e.IsInterrupted() || atomic.LoadInt32(&r.forcePoll) == 1
}

// MemorySnapshot reports host memory pressure as the used percentage of
// virtual memory (spec.md §3 "Thread holder"). Nothing in the module
// calls it; the buffer pool's DebugSnapshot does not include it.
func MemorySnapshot() (usedPercent float64, err error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
