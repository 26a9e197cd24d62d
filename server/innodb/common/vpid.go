package common

import "fmt"

// VolumeID identifies a volume (a file-layer container of pages).
type VolumeID int16

// PageID identifies a page within a volume.
type PageID int32

// VPID is the stable identity of a logical page: (volume id, page id).
type VPID struct {
	Volume VolumeID
	Page   PageID
}

// NullVPID is the sentinel for "no page".
var NullVPID = VPID{Volume: -1, Page: -1}

func (v VPID) IsNull() bool {
	return v == NullVPID
}

func (v VPID) String() string {
	return fmt.Sprintf("{%d|%d}", v.Volume, v.Page)
}
