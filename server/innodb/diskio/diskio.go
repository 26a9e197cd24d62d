// Package diskio is the buffer pool's thin adapter onto the disk layer
// (spec.md §6): the four calls a miss fill, a flush, and a validity
// check make. The real disk-file manager (volume allocation, extent
// bookkeeping, space maps) is out of scope — see DESIGN.md; this
// package only specifies the read/write/validity contract, grounded on
// the shape of the teacher's basic.StorageProvider/basic.Space
// (server/innodb/basic).
package diskio

import "github.com/naver/rye-pgbuf/server/innodb/common"

// Validity is the answer disk_is_page_sane gives for a VPID that hashed
// in but was never brought into memory (spec.md §4.2 miss path).
type Validity int

const (
	// PageValid means the page exists on disk and may be read in.
	PageValid Validity = iota
	// PageUnformatted means the slot is within the volume's allocated
	// range but was never written — the caller gets back a zeroed page
	// without an I/O.
	PageUnformatted
	// PageOutOfBounds means pageID is beyond the volume's current size.
	PageOutOfBounds
)

// Descriptor is the per-volume metadata the buffer pool needs to decide
// whether a VPID is in range and to label pages it fetches.
type Descriptor struct {
	VolumeID common.VolumeID
	Label    string
	NumPages common.PageID
	// Temporary is the flag the volume was added or opened with
	// (AddVolume/OpenVolume). The buffer pool does not read it; its own
	// temporary-volume set (spec.md §4.9 "volume temporary-use set") is
	// kept separately.
	Temporary bool
}

// Manager is the disk layer the buffer pool reads from and writes to.
// All methods must be safe for concurrent use.
type Manager interface {
	// GetVolumeDescriptor returns the descriptor for volid, or an error
	// if volid names no known volume.
	GetVolumeDescriptor(volid common.VolumeID) (Descriptor, error)

	// IsPageValid reports whether pageID within volid can be read in,
	// without performing the read.
	IsPageValid(volid common.VolumeID, pageID common.PageID) (Validity, error)

	// Read fills out (exactly one page's worth of bytes, header and
	// body) from disk. Called only after IsPageValid reported PageValid.
	Read(vpid common.VPID, out []byte) error

	// Write persists buf (one page's worth of bytes, header and body)
	// to vpid. Called only after the caller's WAL barrier has returned.
	Write(vpid common.VPID, buf []byte) error

	// VolumeLabel is a short human-readable tag for log lines and the
	// debug/attribution view (spec.md §3).
	VolumeLabel(volid common.VolumeID) string
}
