package walredo

import (
	"sync"
	"time"

	"github.com/ondracky/walredo/internal/constants"
	"github.com/ondracky/walredo/internal/interfaces"
	"github.com/ondracky/walredo/internal/logging"
)

// RedoManager reproduces the page a given tag/block would have after
// replaying a sequence of WAL records against an optional base image.
type RedoManager interface {
	RequestRedo(tag RelishTag, blknum uint32, lsn uint64, baseImg []byte, records []RedoRecord) ([]byte, error)
}

// ManagerConfig configures a PostgresRedoManager.
type ManagerConfig struct {
	TenantID      string
	Config        interfaces.ConfigProvider
	ExtensionName string
	Logger        *logging.Logger
	Metrics       MetricsRegistry
}

// PostgresRedoManager dispatches each redo request to either the in-process
// SLRU path or a lazily-launched external postgres child, depending on the
// requested tag's family.
type PostgresRedoManager struct {
	tenantID      string
	extensionName string
	cfg           interfaces.ConfigProvider
	logger        *logging.Logger
	metrics       MetricsRegistry

	mu      sync.Mutex
	process *ExternalProcessHandle
}

// NewPostgresRedoManager constructs a manager for one tenant. ExtensionName
// defaults to the repository's canonical redo extension name, Logger to the
// package default, and Metrics to the process-wide Prometheus registry.
func NewPostgresRedoManager(c ManagerConfig) *PostgresRedoManager {
	extensionName := c.ExtensionName
	if extensionName == "" {
		extensionName = constants.DefaultRedoExtensionName
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.Default()
	}
	metrics := c.Metrics
	if metrics == nil {
		metrics = DefaultMetricsRegistry()
	}
	return &PostgresRedoManager{
		tenantID:      c.TenantID,
		extensionName: extensionName,
		cfg:           c.Config,
		logger:        logger.WithTenant(c.TenantID),
		metrics:       metrics,
	}
}

// RequestRedo implements RedoManager.
func (m *PostgresRedoManager) RequestRedo(tag RelishTag, blknum uint32, lsn uint64, baseImg []byte, records []RedoRecord) ([]byte, error) {
	if canApplyInProcess(tag) {
		start := time.Now()
		page, err := applyInProcess(tag, blknum, baseImg, records, m.metrics)
		m.metrics.ObserveRedoTime(time.Since(start).Seconds())
		return page, err
	}

	relTag, ok := tag.(RelationTag)
	if !ok {
		return nil, NewError("RequestRedo", KindInvalidRequest, "tag is neither in-process-eligible nor a relation tag")
	}

	waitStart := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	redoStart := time.Now()
	m.metrics.ObserveWaitTime(redoStart.Sub(waitStart).Seconds())

	if m.process == nil {
		proc, err := LaunchExternalProcess(m.cfg, m.tenantID, m.extensionName, m.logger)
		if err != nil {
			return nil, err
		}
		m.process = proc
	}

	bufTag := BufferTag{Rel: relTag.Rel, BlockNumber: blknum}

	page, err := m.process.ApplyWALRecords(bufTag, baseImg, records)
	if err != nil {
		m.process.Kill()
		m.process = nil
		return nil, err
	}

	m.metrics.ObserveRedoTime(time.Since(redoStart).Seconds())
	m.metrics.AddReplayedRecords(len(records))
	return page, nil
}

// DummyRedoManager is a RedoManager that is never ready to serve; every call
// fails with InvalidState.
type DummyRedoManager struct{}

func (DummyRedoManager) RequestRedo(RelishTag, uint32, uint64, []byte, []RedoRecord) ([]byte, error) {
	return nil, NewError("RequestRedo", KindInvalidState, "dummy redo manager cannot serve requests")
}

var (
	_ RedoManager = (*PostgresRedoManager)(nil)
	_ RedoManager = DummyRedoManager{}
)
