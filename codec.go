package walredo

import (
	"encoding/binary"

	"github.com/ondracky/walredo/internal/constants"
)

// appendMessageHeader appends a message's tag byte and big-endian length
// field. length is the payload length that follows; the wire length field
// additionally counts itself (but not the tag byte).
func appendMessageHeader(buf []byte, tag byte, payloadLen int) []byte {
	buf = append(buf, tag)
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(4+payloadLen))
	return append(buf, lenBytes[:]...)
}

// AppendBeginRedoForBlock appends a 'B' message announcing the buffer tag a
// redo transaction targets.
func AppendBeginRedoForBlock(buf []byte, tag BufferTag) []byte {
	payload := tag.MarshalBinary()
	buf = appendMessageHeader(buf, 'B', len(payload))
	return append(buf, payload...)
}

// AppendPushPage appends a 'P' message carrying the base image to redo
// against. baseImg must be exactly one page; a shorter or longer image is a
// programming error, since the caller is always this module's own manager.
func AppendPushPage(buf []byte, tag BufferTag, baseImg []byte) []byte {
	if len(baseImg) != constants.PageSize {
		panic("walredo: PushPage base image must be exactly one page")
	}
	payload := tag.MarshalBinary()
	buf = appendMessageHeader(buf, 'P', len(payload)+len(baseImg))
	buf = append(buf, payload...)
	return append(buf, baseImg...)
}

// AppendApplyRecord appends an 'A' message carrying one WAL record's bytes
// and the LSN it was assigned.
func AppendApplyRecord(buf []byte, lsn uint64, rec []byte) []byte {
	buf = appendMessageHeader(buf, 'A', 8+len(rec))
	var lsnBytes [8]byte
	binary.BigEndian.PutUint64(lsnBytes[:], lsn)
	buf = append(buf, lsnBytes[:]...)
	return append(buf, rec...)
}

// AppendGetPage appends a 'G' message requesting the redone page back.
func AppendGetPage(buf []byte, tag BufferTag) []byte {
	payload := tag.MarshalBinary()
	buf = appendMessageHeader(buf, 'G', len(payload))
	return append(buf, payload...)
}

// BuildApplyWALRecordsMessage assembles one complete redo transaction:
// B, optional P, zero or more A, then G.
func BuildApplyWALRecordsMessage(tag BufferTag, baseImg []byte, records []RedoRecord) []byte {
	buf := make([]byte, 0, 32+len(baseImg)+64*len(records))
	buf = AppendBeginRedoForBlock(buf, tag)
	if baseImg != nil {
		buf = AppendPushPage(buf, tag, baseImg)
	}
	for _, r := range records {
		buf = AppendApplyRecord(buf, r.LSN, r.Record.Body)
	}
	buf = AppendGetPage(buf, tag)
	return buf
}
