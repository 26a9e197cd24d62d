// Package txnctx is the buffer pool's thin adapter onto the transaction
// layer (spec.md §6): the wait-msec policy that governs how long an
// unconditional latch request blocks, and the caller identity logged
// when a PageTimeout occurs.
package txnctx

// WaitMsec mirrors the transaction layer's wait_msec_setting: either a
// positive millisecond bound, or one of the two sentinels below.
type WaitMsec int

const (
	// WaitInfinite blocks on the BCB's condition variable with periodic
	// checkpoint-interval wakeups rather than timing out.
	WaitInfinite WaitMsec = -1
	// WaitZero (a no-wait transaction) never queues: a conditional
	// request is forced even when the caller asked for unconditional.
	WaitZero WaitMsec = 0
)

// ClientInfo identifies the session behind a transaction, logged with a
// PageTimeout (spec.md §7, S5); the returned error does not carry it.
type ClientInfo struct {
	Program string
	User    string
	Host    string
	PID     int
}

// Context is the per-call transaction context the buffer pool consults.
type Context interface {
	TranIndex() int
	WaitMsec() WaitMsec
	IsCurrentActive() bool
	ClientInfo() ClientInfo
}

// Background is a Context for internal callers (checkpoint thread,
// background flusher) that always wait unconditionally and carry no
// client identity.
type Background struct{}

func (Background) TranIndex() int          { return -1 }
func (Background) WaitMsec() WaitMsec      { return WaitInfinite }
func (Background) IsCurrentActive() bool   { return true }
func (Background) ClientInfo() ClientInfo  { return ClientInfo{Program: "pgbuf-internal"} }
