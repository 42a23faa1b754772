package walredo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ondracky/walredo/internal/constants"
)

func TestApplyWALRecordsEchoesBaseImage(t *testing.T) {
	fc := NewFakeChild(t, EchoBaseImageBehavior)

	base := make([]byte, constants.PageSize)
	for i := range base {
		base[i] = 0x11
	}
	tag := testBufferTag()
	records := []RedoRecord{{LSN: 1, Record: WALRecord{Body: []byte{0, 0, 0, 0}}}}

	page, err := fc.Handle.ApplyWALRecords(tag, base, records)
	require.NoError(t, err)
	require.Equal(t, base, page)
}

func TestApplyWALRecordsTimesOutOnHungChild(t *testing.T) {
	SetRedoTimeoutForTesting(t, 50*time.Millisecond)
	fc := NewFakeChild(t, NeverRespondBehavior)

	base := make([]byte, constants.PageSize)
	_, err := fc.Handle.ApplyWALRecords(testBufferTag(), base, nil)
	require.Error(t, err)
	var wErr *Error
	require.ErrorAs(t, err, &wErr)
	require.True(t, wErr.IsTimeout())
}

func TestApplyWALRecordsBrokenPipeOnShortWrite(t *testing.T) {
	SetRedoTimeoutForTesting(t, 2*time.Second)
	fc := NewFakeChild(t, ShortWriteThenCloseBehavior(100))

	base := make([]byte, constants.PageSize)
	_, err := fc.Handle.ApplyWALRecords(testBufferTag(), base, nil)
	require.Error(t, err)
	var wErr *Error
	require.ErrorAs(t, err, &wErr)
	require.True(t, wErr.IsBrokenPipe())
}
