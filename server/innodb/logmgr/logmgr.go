// Package logmgr is the buffer pool's thin adapter onto the log manager
// (spec.md §6): the WAL barrier every flush must call before writing a
// dirty page, the durability query the victim flusher consults, and the
// checkpoint-redo and recovery-state queries set_dirty and
// check_page_type consult. The real log manager (append, group commit, log
// file layout) is out of scope — see DESIGN.md; this package only
// specifies the four calls the buffer pool actually makes, grounded on
// the shape of the teacher's RedoLogManager (server/innodb/manager).
package logmgr

import "github.com/naver/rye-pgbuf/server/innodb/common"

// Manager is consulted on every WAL-respecting flush and at checkpoint.
type Manager interface {
	// FlushLogUpTo blocks until the log is durable at least through lsa
	// (the WAL barrier, spec.md §5 "WAL rule").
	FlushLogUpTo(lsa common.LSA) error

	// NeedWAL reports whether lsa has not yet been durably logged, used
	// by the background flusher's two-pass scheme (spec.md §4.7) to
	// defer forcing a barrier for as long as possible.
	NeedWAL(lsa common.LSA) bool

	// CheckpointRedoLSA is the current checkpoint's redo LSA, the floor
	// against which set_dirty validates a page's LSA (spec.md §4.9);
	// flush_checkpoint takes its previous redo LSA as an argument instead
	// of calling this.
	CheckpointRedoLSA() common.LSA

	// IsRecoveryRedo reports whether the system is currently replaying
	// the redo log; check_page_type always returns true during
	// recovery (spec.md §4.8).
	IsRecoveryRedo() bool
}
