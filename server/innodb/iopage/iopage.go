// Package iopage implements the fixed-size on-disk page image the buffer
// pool caches one of per frame: a small reserved header (volume, page id,
// page LSA, page type, flags) followed by the page body. The buffer pool
// promises only to preserve this header and stamp it at the documented
// offsets; body layout is the file layer's business.
package iopage

import (
	"encoding/binary"

	"github.com/naver/rye-pgbuf/server/innodb/common"
)

// Flags live in the reserved header alongside the page type.
type Flags uint8

const (
	FlagNone      Flags = 0
	FlagTemporary Flags = 1 << 0
)

// Reserved header layout, little-endian:
//
//	offset 0  : volume id      (int16)
//	offset 2  : page id        (int32)
//	offset 6  : page LSA pageid(int64)
//	offset 14 : page LSA offset(int32)
//	offset 18 : page type      (uint8)
//	offset 19 : flags          (uint8)
//	offset 20 : reserved padding, zero
const (
	offVolume  = 0
	offPage    = 2
	offLSAPage = 6
	offLSAOff  = 14
	offType    = 18
	offFlags   = 19

	// ReservedHeaderSize is the number of bytes at the front of every
	// page reserved for the header above; the rest is user payload.
	ReservedHeaderSize = 32
)

// Page is a fixed-size byte image: reserved header + body.
type Page struct {
	buf []byte
}

// New allocates a zeroed page of the given total size (header + body).
// pageSize must be at least ReservedHeaderSize.
func New(pageSize uint32) *Page {
	return &Page{buf: make([]byte, pageSize)}
}

// Wrap adapts an existing byte slice (e.g. one just read from disk) as a
// Page without copying.
func Wrap(buf []byte) *Page {
	return &Page{buf: buf}
}

func (p *Page) Size() uint32 {
	return uint32(len(p.buf))
}

// Raw returns the whole backing buffer, header included.
func (p *Page) Raw() []byte {
	return p.buf
}

// Body returns the user payload, i.e. everything after the reserved header.
func (p *Page) Body() []byte {
	return p.buf[ReservedHeaderSize:]
}

func (p *Page) VPID() common.VPID {
	return common.VPID{
		Volume: common.VolumeID(int16(binary.LittleEndian.Uint16(p.buf[offVolume:]))),
		Page:   common.PageID(int32(binary.LittleEndian.Uint32(p.buf[offPage:]))),
	}
}

func (p *Page) SetVPID(v common.VPID) {
	binary.LittleEndian.PutUint16(p.buf[offVolume:], uint16(v.Volume))
	binary.LittleEndian.PutUint32(p.buf[offPage:], uint32(v.Page))
}

func (p *Page) LSA() common.LSA {
	return common.LSA{
		PageID: int64(binary.LittleEndian.Uint64(p.buf[offLSAPage:])),
		Offset: int32(binary.LittleEndian.Uint32(p.buf[offLSAOff:])),
	}
}

func (p *Page) SetLSA(a common.LSA) {
	binary.LittleEndian.PutUint64(p.buf[offLSAPage:], uint64(a.PageID))
	binary.LittleEndian.PutUint32(p.buf[offLSAOff:], uint32(a.Offset))
}

func (p *Page) Type() common.PageType {
	return common.PageType(p.buf[offType])
}

func (p *Page) SetType(t common.PageType) {
	p.buf[offType] = byte(t)
}

func (p *Page) Flags() Flags {
	return Flags(p.buf[offFlags])
}

func (p *Page) SetFlags(f Flags) {
	p.buf[offFlags] = byte(f)
}

// HeaderUninitialized reports whether the header's volume and page id
// both still hold NullVPID's -1/-1 (spec.md §4.8). A zeroed page reads
// as (0,0) and so is not reported as uninitialized. Nothing in the
// module calls it; SetPageType does not consult it.
func (p *Page) HeaderUninitialized() bool {
	return binary.LittleEndian.Uint16(p.buf[offVolume:]) == uint16(int16(common.NullVPID.Volume)) &&
		binary.LittleEndian.Uint32(p.buf[offPage:]) == uint32(int32(common.NullVPID.Page))
}

// Reset zeroes the whole page image, header included.
func (p *Page) Reset() {
	for i := range p.buf {
		p.buf[i] = 0
	}
}

// Scramble overwrites the body with a recognizable non-zero pattern; used
// only under debug_page_validation_level to catch callers that keep a
// reference to a page after unfix (spec.md §9).
func (p *Page) Scramble() {
	body := p.Body()
	for i := range body {
		body[i] = 0xCC
	}
}

// CopyFrom replaces the whole image with src, which must be the same size.
func (p *Page) CopyFrom(src []byte) {
	copy(p.buf, src)
}

// Clone returns an independent copy of the whole image, used to snapshot
// a page before releasing the BCB mutex for a WAL-respecting flush.
func (p *Page) Clone() []byte {
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}
