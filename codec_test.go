package walredo

import (
	"encoding/binary"
	"testing"

	"github.com/ondracky/walredo/internal/constants"
)

func testBufferTag() BufferTag {
	return BufferTag{
		Rel:         RelTag{SpcNode: 1, DbNode: 2, RelNode: 3, ForkNum: 0},
		BlockNumber: 7,
	}
}

func TestAppendBeginRedoForBlock(t *testing.T) {
	buf := AppendBeginRedoForBlock(nil, testBufferTag())
	if buf[0] != 'B' {
		t.Fatalf("tag byte = %q, want 'B'", buf[0])
	}
	length := binary.BigEndian.Uint32(buf[1:5])
	if length != 4+20 {
		t.Errorf("length = %d, want %d", length, 4+20)
	}
	if len(buf) != 1+int(length) {
		t.Errorf("buffer length %d does not match header framing %d", len(buf), 1+length)
	}
}

func TestAppendPushPage(t *testing.T) {
	page := make([]byte, constants.PageSize)
	buf := AppendPushPage(nil, testBufferTag(), page)
	if buf[0] != 'P' {
		t.Fatalf("tag byte = %q, want 'P'", buf[0])
	}
	length := binary.BigEndian.Uint32(buf[1:5])
	if length != uint32(4+20+constants.PageSize) {
		t.Errorf("length = %d, want %d", length, 4+20+constants.PageSize)
	}
}

func TestAppendPushPagePanicsOnWrongSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for short base image")
		}
	}()
	AppendPushPage(nil, testBufferTag(), make([]byte, 10))
}

func TestAppendApplyRecord(t *testing.T) {
	rec := []byte{1, 2, 3, 4, 5}
	buf := AppendApplyRecord(nil, 0x1122334455667788, rec)
	if buf[0] != 'A' {
		t.Fatalf("tag byte = %q, want 'A'", buf[0])
	}
	length := binary.BigEndian.Uint32(buf[1:5])
	if length != uint32(4+8+len(rec)) {
		t.Errorf("length = %d, want %d", length, 4+8+len(rec))
	}
	lsn := binary.BigEndian.Uint64(buf[5:13])
	if lsn != 0x1122334455667788 {
		t.Errorf("lsn = %x, want %x", lsn, 0x1122334455667788)
	}
	if string(buf[13:]) != string(rec) {
		t.Errorf("record bytes = %v, want %v", buf[13:], rec)
	}
}

func TestAppendGetPage(t *testing.T) {
	buf := AppendGetPage(nil, testBufferTag())
	if buf[0] != 'G' {
		t.Fatalf("tag byte = %q, want 'G'", buf[0])
	}
	length := binary.BigEndian.Uint32(buf[1:5])
	if length != 4+20 {
		t.Errorf("length = %d, want %d", length, 4+20)
	}
}

func TestBuildApplyWALRecordsMessageSequence(t *testing.T) {
	page := make([]byte, constants.PageSize)
	records := []RedoRecord{
		{LSN: 1, Record: WALRecord{Body: []byte{0xAA}}},
		{LSN: 2, Record: WALRecord{Body: []byte{0xBB, 0xCC}}},
	}

	buf := BuildApplyWALRecordsMessage(testBufferTag(), page, records)

	var tags []byte
	off := 0
	for off < len(buf) {
		tag := buf[off]
		length := binary.BigEndian.Uint32(buf[off+1 : off+5])
		tags = append(tags, tag)
		off += 1 + int(length)
	}
	if off != len(buf) {
		t.Fatalf("message framing did not consume the whole buffer: off=%d len=%d", off, len(buf))
	}

	want := []byte{'B', 'P', 'A', 'A', 'G'}
	if string(tags) != string(want) {
		t.Errorf("message sequence = %q, want %q", tags, want)
	}
}

func TestBuildApplyWALRecordsMessageNoBaseImage(t *testing.T) {
	buf := BuildApplyWALRecordsMessage(testBufferTag(), nil, nil)

	var tags []byte
	off := 0
	for off < len(buf) {
		tag := buf[off]
		length := binary.BigEndian.Uint32(buf[off+1 : off+5])
		tags = append(tags, tag)
		off += 1 + int(length)
	}

	want := []byte{'B', 'G'}
	if string(tags) != string(want) {
		t.Errorf("message sequence = %q, want %q", tags, want)
	}
}
