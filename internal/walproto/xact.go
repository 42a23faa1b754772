package walproto

import "encoding/binary"

// xinfo flag bits within a transaction commit/abort record, matching
// Postgres's xact.h. Only the two blocks the in-process redo path needs are
// modeled; other optional blocks (relation drops, invalidations, two-phase
// metadata, replication origin) are neither parsed nor skipped, since this
// decoder never needs to see past the subxact list.
const (
	XactXinfoHasDBInfo  = 1 << 0
	XactXinfoHasSubxact = 1 << 1
)

// ParsedXact is the subset of a decoded transaction commit/abort record the
// in-process redo path consumes.
type ParsedXact struct {
	Xid      uint32
	Info     uint8
	Subxacts []uint32
}

// DecodeParsedXact decodes the body of a RM_XACT_ID commit or abort record.
// buf begins with xl_xact_commit/xl_xact_abort's fixed prefix
// (xact_time int64, xinfo uint32) followed by whichever optional blocks
// xinfo's flag bits indicate are present, in their on-wire order.
func DecodeParsedXact(buf []byte, xid uint32, info uint8) ParsedXact {
	if len(buf) < 12 {
		panic("walproto: truncated xact record")
	}
	xinfo := binary.LittleEndian.Uint32(buf[8:12])
	off := 12

	if xinfo&XactXinfoHasDBInfo != 0 {
		off += 8 // dbId, tsId
	}

	var subxacts []uint32
	if xinfo&XactXinfoHasSubxact != 0 {
		if len(buf) < off+4 {
			panic("walproto: truncated xact subxact count")
		}
		n := int(int32(binary.LittleEndian.Uint32(buf[off : off+4])))
		off += 4
		subxacts = make([]uint32, n)
		for i := 0; i < n; i++ {
			if len(buf) < off+4 {
				panic("walproto: truncated xact subxact list")
			}
			subxacts[i] = binary.LittleEndian.Uint32(buf[off : off+4])
			off += 4
		}
	}

	return ParsedXact{Xid: xid, Info: info, Subxacts: subxacts}
}
