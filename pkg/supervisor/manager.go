// Package supervisor is the manager coordinator: the authoritative registry
// of process records. It composes the port allocator, health checker, and
// signal subsystem behind a single mutex, serializes every mutation, and
// persists configuration and runtime metadata via confstore.
//
// Grounded on the registry/lock/background-loop shape of a cluster manager
// coordinator paired with a ticker-driven reconciliation loop, generalized
// from a replicated cluster registry to a single-host process registry with
// no consensus layer underneath it.
package supervisor

import (
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/kestrel-run/kestrel/pkg/broker"
	"github.com/kestrel-run/kestrel/pkg/confstore"
	"github.com/kestrel-run/kestrel/pkg/health"
	"github.com/kestrel-run/kestrel/pkg/log"
	"github.com/kestrel-run/kestrel/pkg/monitor"
	"github.com/kestrel-run/kestrel/pkg/portpool"
	"github.com/kestrel-run/kestrel/pkg/types"
	"github.com/rs/zerolog"
)

// entry is the registry's internal bookkeeping for one record: the
// serializable types.Record plus the runtime handles that must never be
// persisted or returned to callers directly.
type entry struct {
	record types.Record

	cmd           *exec.Cmd
	exited        chan struct{}
	portLogWriter *io.PipeWriter

	healthStatus *health.Status
	healthCancel func()

	// stopRequested suppresses auto-restart when an exit was expected
	// (explicit stop, delete, or restart/reload's internal stop-then-start).
	stopRequested bool

	// memoryCeilingExit marks that the next exit handled by
	// handleUnexpectedExit was caused by monitorLoop's memory-ceiling kill,
	// not a crash, so the restart it triggers skips the Restart.Enabled
	// check; MaxRestarts, MinUptime and RestartDelay still apply.
	memoryCeilingExit bool
}

// Manager is the sole mutator of the process registry.
type Manager struct {
	mu sync.Mutex

	dataDir string
	store   *confstore.Store
	ports   *portpool.Pool
	broker  *broker.Broker
	logger  zerolog.Logger

	entries map[string]*entry

	monitorStopCh chan struct{}
	monitorTick   time.Duration
}

// Options configures a new Manager.
type Options struct {
	// DataDir is the root directory under which confstore keeps apps/
	// (configuration and metadata files). Required.
	DataDir string

	// MonitorInterval is the cadence of the background CPU/memory sampling
	// loop. Defaults to 5 seconds.
	MonitorInterval time.Duration
}

// New constructs a Manager rooted at opts.DataDir, loads any persisted
// records (re-adopting live PIDs), and starts the background
// monitoring loop.
func New(opts Options) (*Manager, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("supervisor: DataDir is required")
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = 5 * time.Second
	}

	store, err := confstore.New(filepath.Join(opts.DataDir, "apps"))
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	eventBroker := broker.New()
	eventBroker.Start()

	m := &Manager{
		dataDir:       opts.DataDir,
		store:         store,
		ports:         portpool.New(),
		broker:        eventBroker,
		logger:        log.WithComponent("supervisor"),
		entries:       make(map[string]*entry),
		monitorStopCh: make(chan struct{}),
		monitorTick:   opts.MonitorInterval,
	}

	if err := m.loadAndAdopt(); err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	go m.monitorLoop()

	return m, nil
}

// Events returns the broker lifecycle events are published to, for callers
// that subscribe to individual state-change notifications.
func (m *Manager) Events() *broker.Broker {
	return m.broker
}

// Shutdown stops the background monitoring loop and event broker. It does
// not touch running children; callers wanting a clean shutdown should issue
// Stop against every record first.
func (m *Manager) Shutdown() {
	close(m.monitorStopCh)
	m.broker.Stop()
}

// loadAndAdopt rebuilds the registry from persisted configuration and
// metadata on daemon startup: a live stored PID is adopted as Online, a dead
// one is marked Stopped with the PID cleared. No child handle or I/O is
// re-attached either way; an Online adoption instead gets a reapAdopted
// goroutine to stand in for the Cmd.Wait() a spawned entry would have.
func (m *Manager) loadAndAdopt() error {
	configs, err := m.store.ListConfigs()
	if err != nil {
		return fmt.Errorf("loading persisted configurations: %w", err)
	}

	for _, cfg := range configs {
		meta, ok, err := m.store.LoadMetadata(cfg.Name)
		if err != nil {
			m.logger.Warn().Err(err).Str("name", cfg.Name).Msg("failed to load metadata, skipping re-adoption")
			continue
		}

		rec := types.Record{
			Name:      cfg.Name,
			Namespace: cfg.Namespace,
			Config:    cfg,
		}

		if ok {
			rec.ID = meta.ID
			rec.InstanceIndex = meta.InstanceIndex
			rec.RestartCount = meta.RestartCount
			rec.StartedAt = meta.LastStartedAt
			rec.Ports = append([]int(nil), meta.Ports...)

			if monitor.Alive(meta.LastPID) {
				rec.PID = meta.LastPID
				rec.State = types.StateOnline

				// A single port is always re-derived from the persisted
				// configuration rather than trusted from metadata: a runtime
				// override from a prior restart never survives a cold start.
				// Range and auto allocations have no override path, so
				// metadata is authoritative for them.
				if spec, err := portpool.ParseSpec(cfg.Port); err == nil && spec.Kind == types.PortSingle {
					rec.Ports = []int{spec.Single}
				}
				for _, port := range rec.Ports {
					m.ports.Allocate(rec.Name, types.PortSpec{Kind: types.PortSingle, Single: port}, 1) //nolint:errcheck
				}
			} else {
				rec.PID = 0
				rec.State = types.StateStopped
			}
		} else {
			rec.State = types.StateStopped
		}

		e := &entry{record: rec, exited: make(chan struct{})}
		m.entries[rec.Name] = e

		// A re-adopted Online record has no *exec.Cmd to Wait() on; without a
		// reaper its exited channel would never close, and Stop()/Delete()
		// would block on it forever.
		if rec.State == types.StateOnline {
			go m.reapAdopted(e)
		}
	}

	return nil
}

// List returns a snapshot of every record in the registry. Satisfies
// metrics.RecordLister.
func (m *Manager) List() []types.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]types.Record, 0, len(m.entries))
	for _, e := range m.entries {
		records = append(records, e.record)
	}
	return records
}

// Info returns the current snapshot of a single record.
func (m *Manager) Info(name string) (types.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return types.Record{}, newErr(NotFound, name, "no such record", nil)
	}
	return e.record, nil
}
