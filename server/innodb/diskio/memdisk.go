package diskio

import (
	"fmt"
	"sync"

	"github.com/naver/rye-pgbuf/server/innodb/common"
	"github.com/pkg/errors"
)

// MemDisk is an in-memory Manager used by tests and the demo command: a
// fixed set of volumes, each a flat slice of fixed-size page slots.
// A page that has never been written reports PageUnformatted, mirroring
// a freshly extended but not yet written tablespace file; the volume's
// "formatted" watermark is not consulted.
type MemDisk struct {
	pageSize int

	mu      sync.RWMutex
	volumes map[common.VolumeID]*memVolume
}

type memVolume struct {
	label     string
	temporary bool
	formatted common.PageID
	capacity  common.PageID
	pages     [][]byte
}

func NewMemDisk(pageSize int) *MemDisk {
	return &MemDisk{pageSize: pageSize, volumes: make(map[common.VolumeID]*memVolume)}
}

// AddVolume registers a volume of the given page capacity, all pages
// initially unformatted.
func (d *MemDisk) AddVolume(volid common.VolumeID, label string, capacity common.PageID, temporary bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volumes[volid] = &memVolume{
		label:     label,
		temporary: temporary,
		capacity:  capacity,
		pages:     make([][]byte, capacity),
	}
}

func (d *MemDisk) volume(volid common.VolumeID) (*memVolume, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.volumes[volid]
	if !ok {
		return nil, errors.Errorf("diskio: unknown volume %d", volid)
	}
	return v, nil
}

func (d *MemDisk) GetVolumeDescriptor(volid common.VolumeID) (Descriptor, error) {
	v, err := d.volume(volid)
	if err != nil {
		return Descriptor{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Descriptor{
		VolumeID:  volid,
		Label:     v.label,
		NumPages:  v.capacity,
		Temporary: v.temporary,
	}, nil
}

func (d *MemDisk) IsPageValid(volid common.VolumeID, pageID common.PageID) (Validity, error) {
	v, err := d.volume(volid)
	if err != nil {
		return PageOutOfBounds, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if pageID < 0 || pageID >= v.capacity {
		return PageOutOfBounds, nil
	}
	if v.pages[pageID] == nil {
		return PageUnformatted, nil
	}
	return PageValid, nil
}

func (d *MemDisk) Read(vpid common.VPID, out []byte) error {
	v, err := d.volume(vpid.Volume)
	if err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if vpid.Page < 0 || vpid.Page >= v.capacity {
		return errors.Errorf("diskio: page %s out of bounds", vpid)
	}
	body := v.pages[vpid.Page]
	if body == nil {
		return errors.Errorf("diskio: page %s unformatted", vpid)
	}
	if len(out) != len(body) {
		return errors.Errorf("diskio: read buffer size %d != page size %d", len(out), len(body))
	}
	copy(out, body)
	return nil
}

func (d *MemDisk) Write(vpid common.VPID, buf []byte) error {
	v, err := d.volume(vpid.Volume)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if vpid.Page < 0 || vpid.Page >= v.capacity {
		return errors.Errorf("diskio: page %s out of bounds", vpid)
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	v.pages[vpid.Page] = cp
	if vpid.Page+1 > v.formatted {
		v.formatted = vpid.Page + 1
	}
	return nil
}

func (d *MemDisk) VolumeLabel(volid common.VolumeID) string {
	v, err := d.volume(volid)
	if err != nil {
		return fmt.Sprintf("vol(%d)?", volid)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return v.label
}
