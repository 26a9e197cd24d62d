package buffer_pool

import (
	"github.com/naver/rye-pgbuf/server/innodb/common"
	"github.com/naver/rye-pgbuf/server/innodb/iopage"
	"github.com/naver/rye-pgbuf/server/innodb/latch"
)

// PageHandle is what Fix hands back to a caller: the latched page plus
// enough of the BCB's identity to pass to Unfix/SetDirty/SetLSA without
// re-resolving the hash index. A handle is only valid for the thread
// that obtained it and must not be shared across goroutines.
type PageHandle struct {
	bcb  *bcb
	mode latch.Mode
}

// Page is the latched page's bytes. The returned *iopage.Page aliases
// the BCB's slot directly — no copy — so the caller must not retain it
// past the matching Unfix.
func (h *PageHandle) Page() *iopage.Page { return h.bcb.page }

// Mode is the latch mode this handle was granted under.
func (h *PageHandle) Mode() latch.Mode { return h.mode }

// VPID is the page identity this handle latches.
func (h *PageHandle) VPID() common.VPID { return h.bcb.vpid() }
