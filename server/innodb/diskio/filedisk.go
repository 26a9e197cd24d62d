package diskio

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/naver/rye-pgbuf/server/innodb/common"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// FileDisk is a file-backed Manager: one *os.File per volume, a
// reserved-header region the buffer pool already owns (see
// iopage.Page), and an optional snappy-compressed body on the write
// path. The header (VPID/LSA/type/flags) is written uncompressed so
// IsPageValid and the recovery scan never need to inflate a page to
// read it; only the body after headerSize is compressed.
type FileDisk struct {
	pageSize   int
	headerSize int
	compress   bool

	mu      sync.RWMutex
	volumes map[common.VolumeID]*fileVolume
}

type fileVolume struct {
	label     string
	temporary bool
	capacity  common.PageID
	f         *os.File
}

func NewFileDisk(pageSize, headerSize int, compress bool) *FileDisk {
	return &FileDisk{
		pageSize:   pageSize,
		headerSize: headerSize,
		compress:   compress,
		volumes:    make(map[common.VolumeID]*fileVolume),
	}
}

// OpenVolume opens (creating if needed) the backing file for volid.
func (d *FileDisk) OpenVolume(volid common.VolumeID, label, path string, capacity common.PageID, temporary bool) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrapf(err, "diskio: open volume %s", path)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volumes[volid] = &fileVolume{label: label, temporary: temporary, capacity: capacity, f: f}
	return nil
}

func (d *FileDisk) volume(volid common.VolumeID) (*fileVolume, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.volumes[volid]
	if !ok {
		return nil, errors.Errorf("diskio: unknown volume %d", volid)
	}
	return v, nil
}

func (d *FileDisk) GetVolumeDescriptor(volid common.VolumeID) (Descriptor, error) {
	v, err := d.volume(volid)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{VolumeID: volid, Label: v.label, NumPages: v.capacity, Temporary: v.temporary}, nil
}

// slotSize is what we actually reserve per page on disk: the header
// uncompressed, plus a 4-byte length prefix and a worst-case bound on
// the compressed body so slots stay fixed-size and seekable by
// pageID*slotSize.
func (d *FileDisk) slotSize() int64 {
	bodySize := d.pageSize - d.headerSize
	if !d.compress {
		return int64(d.pageSize)
	}
	return int64(d.headerSize + 4 + snappy.MaxEncodedLen(bodySize))
}

func (d *FileDisk) IsPageValid(volid common.VolumeID, pageID common.PageID) (Validity, error) {
	v, err := d.volume(volid)
	if err != nil {
		return PageOutOfBounds, err
	}
	if pageID < 0 || pageID >= v.capacity {
		return PageOutOfBounds, nil
	}
	off := int64(pageID) * d.slotSize()
	header := make([]byte, d.headerSize)
	n, err := v.f.ReadAt(header, off)
	if err != nil || n < d.headerSize {
		return PageUnformatted, nil
	}
	allZero := true
	for _, b := range header {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return PageUnformatted, nil
	}
	return PageValid, nil
}

func (d *FileDisk) Read(vpid common.VPID, out []byte) error {
	v, err := d.volume(vpid.Volume)
	if err != nil {
		return err
	}
	if len(out) != d.pageSize {
		return errors.Errorf("diskio: read buffer size %d != page size %d", len(out), d.pageSize)
	}
	off := int64(vpid.Page) * d.slotSize()
	header := out[:d.headerSize]
	if _, err := v.f.ReadAt(header, off); err != nil {
		return errors.Wrapf(err, "diskio: read header %s", vpid)
	}
	if !d.compress {
		if _, err := v.f.ReadAt(out[d.headerSize:], off+int64(d.headerSize)); err != nil {
			return errors.Wrapf(err, "diskio: read body %s", vpid)
		}
		return nil
	}
	lenBuf := make([]byte, 4)
	if _, err := v.f.ReadAt(lenBuf, off+int64(d.headerSize)); err != nil {
		return errors.Wrapf(err, "diskio: read body length %s", vpid)
	}
	clen := binary.LittleEndian.Uint32(lenBuf)
	compressed := make([]byte, clen)
	if _, err := v.f.ReadAt(compressed, off+int64(d.headerSize)+4); err != nil {
		return errors.Wrapf(err, "diskio: read compressed body %s", vpid)
	}
	body, err := snappy.Decode(out[d.headerSize:d.headerSize:len(out)], compressed)
	if err != nil {
		return errors.Wrapf(err, "diskio: decompress body %s", vpid)
	}
	copy(out[d.headerSize:], body)
	return nil
}

func (d *FileDisk) Write(vpid common.VPID, buf []byte) error {
	v, err := d.volume(vpid.Volume)
	if err != nil {
		return err
	}
	if len(buf) != d.pageSize {
		return errors.Errorf("diskio: write buffer size %d != page size %d", len(buf), d.pageSize)
	}
	off := int64(vpid.Page) * d.slotSize()
	if _, err := v.f.WriteAt(buf[:d.headerSize], off); err != nil {
		return errors.Wrapf(err, "diskio: write header %s", vpid)
	}
	if !d.compress {
		if _, err := v.f.WriteAt(buf[d.headerSize:], off+int64(d.headerSize)); err != nil {
			return errors.Wrapf(err, "diskio: write body %s", vpid)
		}
		return nil
	}
	compressed := snappy.Encode(nil, buf[d.headerSize:])
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(compressed)))
	if _, err := v.f.WriteAt(lenBuf, off+int64(d.headerSize)); err != nil {
		return errors.Wrapf(err, "diskio: write body length %s", vpid)
	}
	if _, err := v.f.WriteAt(compressed, off+int64(d.headerSize)+4); err != nil {
		return errors.Wrapf(err, "diskio: write compressed body %s", vpid)
	}
	return nil
}

func (d *FileDisk) VolumeLabel(volid common.VolumeID) string {
	v, err := d.volume(volid)
	if err != nil {
		return ""
	}
	return v.label
}

func (d *FileDisk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var first error
	for _, v := range d.volumes {
		if err := v.f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
