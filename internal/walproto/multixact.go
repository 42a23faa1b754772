package walproto

import "encoding/binary"

// MultiXactMember is one member of a multixact: the transaction holding a
// lock, and the kind of lock it holds.
type MultiXactMember struct {
	Xid    uint32
	Status uint32
}

// MultiXactCreate is a decoded xl_multixact_create record.
type MultiXactCreate struct {
	Mid      uint32
	Moff     uint32
	NMembers int32
	Members  []MultiXactMember
}

// DecodeMultiXactCreate decodes the body of an XLOG_MULTIXACT_CREATE_ID
// record: mid, moff, nmembers, followed by nmembers {xid, status} pairs, all
// little-endian, matching Postgres's xl_multixact_create layout.
func DecodeMultiXactCreate(buf []byte) MultiXactCreate {
	if len(buf) < 12 {
		panic("walproto: truncated multixact create record")
	}
	mid := binary.LittleEndian.Uint32(buf[0:4])
	moff := binary.LittleEndian.Uint32(buf[4:8])
	nmembers := int32(binary.LittleEndian.Uint32(buf[8:12]))

	members := make([]MultiXactMember, nmembers)
	off := 12
	for i := int32(0); i < nmembers; i++ {
		if len(buf) < off+8 {
			panic("walproto: truncated multixact member list")
		}
		members[i] = MultiXactMember{
			Xid:    binary.LittleEndian.Uint32(buf[off : off+4]),
			Status: binary.LittleEndian.Uint32(buf[off+4 : off+8]),
		}
		off += 8
	}

	return MultiXactCreate{Mid: mid, Moff: moff, NMembers: nmembers, Members: members}
}
