package walredo

import "encoding/binary"

// RelishTag identifies the page family a redo request targets. It is a
// closed set; isRelishTag is an unexported marker method so no type outside
// this package can implement it.
type RelishTag interface {
	isRelishTag()
}

// RelTag identifies a relation: its tablespace, database, relation node,
// and fork.
type RelTag struct {
	SpcNode uint32
	DbNode  uint32
	RelNode uint32
	ForkNum uint8
}

// RelationTag targets a user-visible relation page. Relation pages are
// always redone by the external Postgres process.
type RelationTag struct {
	Rel RelTag
}

func (RelationTag) isRelishTag() {}

// SlruKind names one of Postgres's non-relation SLRU stores.
type SlruKind int

const (
	SlruClog SlruKind = iota
	SlruMultiXactOffsets
	SlruMultiXactMembers
)

func (k SlruKind) String() string {
	switch k {
	case SlruClog:
		return "Clog"
	case SlruMultiXactOffsets:
		return "MultiXactOffsets"
	case SlruMultiXactMembers:
		return "MultiXactMembers"
	default:
		return "Unknown"
	}
}

// SlruTag targets a page of one of the SLRU stores, addressed by its
// segment number.
type SlruTag struct {
	Kind  SlruKind
	Segno uint32
}

func (SlruTag) isRelishTag() {}

// OtherTag covers non-relation, non-SLRU page families this module does not
// interpret. They are forwarded to the in-process path, where records
// targeting resource managers other than RM_XACT_ID/RM_MULTIXACT_ID are
// simply ignored.
type OtherTag struct{}

func (OtherTag) isRelishTag() {}

// canApplyInProcess implements the classification rule from the redo
// manager's contract: every tag except a relation can be redone in-process.
func canApplyInProcess(tag RelishTag) bool {
	_, isRelation := tag.(RelationTag)
	return !isRelation
}

// BufferTag is the (relation, block) identity of a page, used only on the
// external process wire protocol.
type BufferTag struct {
	Rel         RelTag
	BlockNumber uint32
}

// bufferTagWireSize is the on-wire size of a BufferTag: five little-endian
// 32-bit fields.
const bufferTagWireSize = 20

// MarshalBinary serializes the tag as five little-endian 32-bit fields:
// spcNode, dbNode, relNode, forkNumber (packed), blockNumber.
func (t BufferTag) MarshalBinary() []byte {
	buf := make([]byte, bufferTagWireSize)
	binary.LittleEndian.PutUint32(buf[0:4], t.Rel.SpcNode)
	binary.LittleEndian.PutUint32(buf[4:8], t.Rel.DbNode)
	binary.LittleEndian.PutUint32(buf[8:12], t.Rel.RelNode)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(t.Rel.ForkNum))
	binary.LittleEndian.PutUint32(buf[16:20], t.BlockNumber)
	return buf
}

// UnmarshalBufferTag decodes a BufferTag from its 20-byte wire encoding.
func UnmarshalBufferTag(buf []byte) (BufferTag, error) {
	if len(buf) != bufferTagWireSize {
		return BufferTag{}, NewError("UnmarshalBufferTag", KindInvalidRequest, "buffer tag must be exactly 20 bytes")
	}
	return BufferTag{
		Rel: RelTag{
			SpcNode: binary.LittleEndian.Uint32(buf[0:4]),
			DbNode:  binary.LittleEndian.Uint32(buf[4:8]),
			RelNode: binary.LittleEndian.Uint32(buf[8:12]),
			ForkNum: uint8(binary.LittleEndian.Uint32(buf[12:16])),
		},
		BlockNumber: binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}
