package hammersbald

import (
	"encoding/binary"
	"fmt"
)

const (
	tableMagic           = "HBLD"
	formatVersion uint16 = 1

	// headerPageIndex is the table page the header lives in (§6: "first
	// page of *.tb"). Slot pages start at headerPageIndex+1.
	headerPageIndex = 0

	slotBytes     = 6
	slotsPerPage  = pageSize / slotBytes
	firstSlotPage = headerPageIndex + 1
)

// tableHeader is the decoded form of the fixed-layout header persisted
// at the start of the table segment (§6). Entries — the running total
// of keyed index entries, needed to reapply the fill-target split
// threshold correctly across reopens — is carried in the reserved tail
// of the header page; §6 leaves that space to the implementer.
type tableHeader struct {
	Level      uint32
	Split      uint32
	FillTarget uint32
	DataEnd    uint64
	LinkEnd    uint64
	SipKey     sipHashKey
	Entries    uint64
}

func encodeHeader(h tableHeader) []byte {
	buf := make([]byte, pageSize)
	copy(buf[0:4], []byte(tableMagic))
	binary.BigEndian.PutUint16(buf[4:6], formatVersion)
	binary.BigEndian.PutUint32(buf[6:10], h.Level)
	binary.BigEndian.PutUint32(buf[10:14], h.Split)
	binary.BigEndian.PutUint32(buf[14:18], h.FillTarget)
	put48(buf[18:24], h.DataEnd)
	put48(buf[24:30], h.LinkEnd)
	h.SipKey.encode(buf[30:46])
	binary.BigEndian.PutUint64(buf[46:54], h.Entries)
	return buf
}

func decodeHeader(buf []byte) (tableHeader, error) {
	if len(buf) < pageSize {
		return tableHeader{}, newError(KindCorrupt, "decodeHeader",
			fmt.Errorf("short header page: %d bytes", len(buf)))
	}
	if string(buf[0:4]) != tableMagic {
		return tableHeader{}, newError(KindCorrupt, "decodeHeader", fmt.Errorf("bad magic"))
	}
	version := binary.BigEndian.Uint16(buf[4:6])
	if version != formatVersion {
		return tableHeader{}, newError(KindCorrupt, "decodeHeader",
			fmt.Errorf("unsupported format version %d", version))
	}
	return tableHeader{
		Level:      binary.BigEndian.Uint32(buf[6:10]),
		Split:      binary.BigEndian.Uint32(buf[10:14]),
		FillTarget: binary.BigEndian.Uint32(buf[14:18]),
		DataEnd:    get48(buf[18:24]),
		LinkEnd:    get48(buf[24:30]),
		SipKey:     decodeSipHashKey(buf[30:46]),
		Entries:    binary.BigEndian.Uint64(buf[46:54]),
	}, nil
}

// ensureBackendPages grows backend with zero-filled pages, via ordinary
// append, until it holds at least minPages whole pages. Table pages
// must exist in the backend before pageCache.flushDirty can WriteAt
// them in place.
func ensureBackendPages(backend fileBackend, minPages uint64) error {
	size, err := backend.Size()
	if err != nil {
		return newError(KindIo, "ensureBackendPages", err)
	}
	have := uint64(size) / pageSize
	zero := make([]byte, pageSize)
	for have < minPages {
		if _, err := backend.Append(zero); err != nil {
			return newError(KindIo, "ensureBackendPages", err)
		}
		have++
	}
	return nil
}

// slotLocation returns which table page holds slot idx, and the byte
// offset of its 6-byte entry within that page.
func slotLocation(idx uint64) (page uint64, offset int) {
	page = firstSlotPage + idx/slotsPerPage
	offset = int(idx%slotsPerPage) * slotBytes
	return
}
