package walredo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ondracky/walredo/internal/constants"
)

func TestPostgresRedoManagerRoutesInProcess(t *testing.T) {
	mgr := NewPostgresRedoManager(ManagerConfig{
		TenantID: "t1",
		Config:   NewFakeConfigProvider(t),
		Metrics:  NoopMetricsRegistry{},
	})

	base := make([]byte, constants.PageSize)
	for i := range base {
		base[i] = 0x42
	}

	page, err := mgr.RequestRedo(SlruTag{Kind: SlruClog}, 0, 0, base, nil)
	require.NoError(t, err)
	require.Equal(t, base, page)
	require.Nil(t, mgr.process, "in-process redo must never touch the external handle")
}

func TestPostgresRedoManagerRoutesOtherTagInProcess(t *testing.T) {
	mgr := NewPostgresRedoManager(ManagerConfig{
		TenantID: "t1",
		Config:   NewFakeConfigProvider(t),
		Metrics:  NoopMetricsRegistry{},
	})

	_, err := mgr.RequestRedo(OtherTag{}, 0, 0, nil, nil)
	require.NoError(t, err) // OtherTag is in-process-eligible; this is a sanity check it does not route externally.
}

func TestPostgresRedoManagerExternalPathUsesFreshChildAfterFailure(t *testing.T) {
	mgr := NewPostgresRedoManager(ManagerConfig{
		TenantID: "t1",
		Config:   NewFakeConfigProvider(t),
		Metrics:  NoopMetricsRegistry{},
	})

	fc1 := NewFakeChild(t, ShortWriteThenCloseBehavior(10))
	mgr.process = fc1.Handle

	tag := RelationTag{Rel: RelTag{RelNode: 5}}
	_, err := mgr.RequestRedo(tag, 0, 1, make([]byte, constants.PageSize), nil)
	require.Error(t, err)
	require.Nil(t, mgr.process, "a failed external call must discard the handle under the lock")

	fc2 := NewFakeChild(t, EchoBaseImageBehavior)
	mgr.process = fc2.Handle

	base := make([]byte, constants.PageSize)
	for i := range base {
		base[i] = 0x99
	}
	page, err := mgr.RequestRedo(tag, 0, 2, base, nil)
	require.NoError(t, err)
	require.Equal(t, base, page)
}

func TestDummyRedoManagerAlwaysFails(t *testing.T) {
	var mgr DummyRedoManager
	_, err := mgr.RequestRedo(OtherTag{}, 0, 0, nil, nil)
	require.Error(t, err)
	require.True(t, IsKind(err, KindInvalidState))
}
