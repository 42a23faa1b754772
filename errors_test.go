package walredo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessageFormat(t *testing.T) {
	err := NewError("ApplyWALRecords", KindIO, "WAL redo timed out")
	require.Equal(t, "walredo: io: WAL redo timed out (op=ApplyWALRecords)", err.Error())
}

func TestErrorMessageFormatNoOp(t *testing.T) {
	err := &Error{Kind: KindInvalidState, Msg: "cannot perform WAL redo now"}
	require.Equal(t, "walredo: invalid state: cannot perform WAL redo now", err.Error())
}

func TestErrorIsKind(t *testing.T) {
	err := NewError("RequestRedo", KindInvalidRequest, "relation tag reached in-process redo path")
	require.True(t, IsKind(err, KindInvalidRequest))
	require.False(t, IsKind(err, KindIO))
	require.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestErrorTimeoutAndBrokenPipePredicates(t *testing.T) {
	timeout := newSubError("ApplyWALRecords", "timeout", "WAL redo timed out")
	require.True(t, timeout.IsTimeout())
	require.False(t, timeout.IsBrokenPipe())

	broken := newSubError("ApplyWALRecords", "broken_pipe", "wal redo process closed its stdout unexpectedly")
	require.True(t, broken.IsBrokenPipe())
	require.False(t, broken.IsTimeout())
}

func TestWrapIOError(t *testing.T) {
	cause := errors.New("write: broken pipe")
	wrapped := WrapIOError("ApplyWALRecords", cause)
	require.Equal(t, KindIO, wrapped.Kind)
	require.ErrorIs(t, wrapped, cause)
}

func TestWrapIOErrorNil(t *testing.T) {
	require.Nil(t, WrapIOError("ApplyWALRecords", nil))
}

func TestWrapIOErrorPassesThroughStructuredError(t *testing.T) {
	inner := NewError("Launch", KindInvalidState, "already failed")
	wrapped := WrapIOError("ApplyWALRecords", inner)
	require.Same(t, inner, wrapped)
}
