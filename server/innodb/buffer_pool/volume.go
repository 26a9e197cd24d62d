package buffer_pool

import "github.com/naver/rye-pgbuf/server/innodb/common"

// RegisterPermanentVolumeAsTemporary marks volid as temporary until
// UnregisterTemporaryVolume is called — used for a permanent volume
// temporarily repurposed for sort or intermediate scratch space, whose
// pages never need to survive a crash (spec.md §4.9 "volume
// temporary-use set"). While marked, a newly fixed page is stamped
// InitTemporaryLSA and SetLSA leaves its LSA there; a flush still calls
// the log manager's barrier with that LSA.
func (p *BufferPool) RegisterPermanentVolumeAsTemporary(volid common.VolumeID) {
	p.tempMu.Lock()
	defer p.tempMu.Unlock()
	p.tempVolumes[volid] = true
}

// UnregisterTemporaryVolume reverses RegisterPermanentVolumeAsTemporary,
// called once the volume reverts to permanent use.
func (p *BufferPool) UnregisterTemporaryVolume(volid common.VolumeID) {
	p.tempMu.Lock()
	defer p.tempMu.Unlock()
	delete(p.tempVolumes, volid)
}

// IsTemporaryVolume reports whether volid is currently in the
// temporary-use set.
func (p *BufferPool) IsTemporaryVolume(volid common.VolumeID) bool {
	p.tempMu.RLock()
	defer p.tempMu.RUnlock()
	return p.tempVolumes[volid]
}

// RefreshMaxPermanentVolumeID records the highest VolumeID currently
// backing a permanent (non-temporary) volume — new temporary volumes
// are allocated IDs above this watermark so a restart's volume scan
// can tell the two apart before consulting the temporary-use set
// (spec.md §4.9).
func (p *BufferPool) RefreshMaxPermanentVolumeID(volid common.VolumeID) {
	p.tempMu.Lock()
	defer p.tempMu.Unlock()
	if volid > p.maxPermanentVolID {
		p.maxPermanentVolID = volid
	}
}

// MaxPermanentVolumeID reads the current watermark.
func (p *BufferPool) MaxPermanentVolumeID() common.VolumeID {
	p.tempMu.RLock()
	defer p.tempMu.RUnlock()
	return p.maxPermanentVolID
}
