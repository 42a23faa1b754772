// Package walproto decodes the two WAL record families the in-process redo
// path interprets directly: transaction commit/abort and multixact create.
// It is a minimal stand-in for the full WAL decoder the page server would
// normally own; see the module's design notes for the fields it deliberately
// does not model.
package walproto

import "encoding/binary"

// SizeOfXLogRecord is the fixed size, in bytes, of a Postgres XLogRecord
// header: xl_tot_len(4) xl_xid(4) xl_prev(8) xl_info(1) xl_rmid(1) padding(2)
// xl_crc(4).
const SizeOfXLogRecord = 24

// XLogRecordHeader is the fixed-size header every WAL record begins with.
type XLogRecordHeader struct {
	TotLen uint32
	Xid    uint32
	Prev   uint64
	Info   uint8
	Rmid   uint8
}

// DecodeXLogRecordHeader reads the fixed header from the front of buf.
// buf shorter than SizeOfXLogRecord is a programming error: the WAL stream
// is trusted input of known shape.
func DecodeXLogRecordHeader(buf []byte) XLogRecordHeader {
	if len(buf) < SizeOfXLogRecord {
		panic("walproto: truncated XLogRecord header")
	}
	return XLogRecordHeader{
		TotLen: binary.LittleEndian.Uint32(buf[0:4]),
		Xid:    binary.LittleEndian.Uint32(buf[4:8]),
		Prev:   binary.LittleEndian.Uint64(buf[8:16]),
		Info:   buf[16],
		Rmid:   buf[17],
	}
}
