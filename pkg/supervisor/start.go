package supervisor

import (
	"context"
	"strconv"
	"time"

	"github.com/kestrel-run/kestrel/pkg/broker"
	"github.com/kestrel-run/kestrel/pkg/health"
	"github.com/kestrel-run/kestrel/pkg/metrics"
	"github.com/kestrel-run/kestrel/pkg/portpool"
	"github.com/kestrel-run/kestrel/pkg/types"
)

// StartOptions controls blocking-start coordination: whether Start waits for
// the health check to pass before returning, and how long it waits.
type StartOptions struct {
	WaitReady   bool
	WaitTimeout time.Duration
}

// Start spawns a new record (or cluster of records) from cfg. On any
// sibling's spawn failure the whole operation rolls back: every
// already-spawned sibling is killed, its ports released, and no record is
// left in the registry.
func (m *Manager) Start(cfg types.Config, opts StartOptions) ([]types.Record, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	timer := metrics.NewTimer()

	m.mu.Lock()

	names := clusterNames(cfg)
	for _, n := range names {
		if _, exists := m.entries[n]; exists {
			m.mu.Unlock()
			return nil, newErr(NameConflict, n, "record already exists", nil)
		}
	}

	ports, err := m.allocatePorts(cfg, names)
	if err != nil {
		m.mu.Unlock()
		return nil, newErr(PortUnavailable, cfg.Name, err.Error(), err)
	}

	spawned := make([]*entry, 0, len(names))
	var spawnErr error
	for i, name := range names {
		var port int
		if len(ports) > 0 {
			port = ports[i]
		}
		e, err := m.spawnEntry(cfg, name, i, port, "")
		if err != nil {
			spawnErr = newErr(SpawnFailed, name, err.Error(), err)
			break
		}
		spawned = append(spawned, e)
	}

	if spawnErr != nil {
		for _, e := range spawned {
			killBestEffort(e.cmd)
			m.ports.ReleaseAll(e.record.Name)
		}
		if len(ports) > 0 {
			for _, n := range names {
				m.ports.ReleaseAll(n)
			}
		}
		m.mu.Unlock()
		return nil, spawnErr
	}

	records := make([]types.Record, 0, len(spawned))
	for _, e := range spawned {
		m.entries[e.record.Name] = e
		records = append(records, e.record)
		m.persistMetadataLocked(e.record)
	}
	if err := m.store.SaveConfig(cfg); err != nil {
		m.logger.Error().Err(err).Str("name", cfg.Name).Msg("failed to persist configuration")
	}
	for _, e := range spawned {
		go m.watch(e)
		m.broker.Publish(&broker.Event{Type: broker.EventStarted, RecordName: e.record.Name})
	}

	m.mu.Unlock()

	timer.ObserveDuration(metrics.SpawnDuration)

	if opts.WaitReady && cfg.Health != nil && cfg.Health.Enabled {
		waitTimeout := opts.WaitTimeout
		if waitTimeout <= 0 {
			waitTimeout = cfg.Health.Timeout
		}
		for _, name := range names {
			if _, ok := m.waitReadyFor(name, waitTimeout); !ok {
				return records, newErr(HealthTimeout, name, "health check did not pass before wait-timeout", nil)
			}
		}
	}

	return records, nil
}

// allocatePorts satisfies cfg's port spec as a single transactional block,
// then re-homes each port under its own sibling's name so later per-record
// release (Stop, Delete) doesn't touch the rest of the cluster.
func (m *Manager) allocatePorts(cfg types.Config, names []string) ([]int, error) {
	spec, err := portpool.ParseSpec(cfg.Port)
	if err != nil {
		return nil, err
	}
	if spec.Kind == "" {
		return nil, nil
	}

	blockOwner := "__alloc__:" + cfg.Name
	ports, err := m.ports.Allocate(blockOwner, spec, cfg.Instances)
	if err != nil {
		return nil, err
	}

	for i, port := range ports {
		m.ports.Release(port)
		if _, err := m.ports.Allocate(names[i], types.PortSpec{Kind: types.PortSingle, Single: port}, 1); err != nil {
			// Unreachable in practice: the port was just freed under our own
			// lock, with no other writer able to intervene.
			return nil, err
		}
	}
	return ports, nil
}

func (m *Manager) persistMetadataLocked(rec types.Record) {
	meta := types.Metadata{
		ID:            rec.ID,
		Ports:         rec.Ports,
		LastPID:       rec.PID,
		InstanceIndex: rec.InstanceIndex,
		RestartCount:  rec.RestartCount,
		LastStartedAt: rec.StartedAt,
	}
	if err := m.store.SaveMetadata(rec.Name, meta); err != nil {
		m.logger.Error().Err(err).Str("name", rec.Name).Msg("failed to persist metadata")
	}
}

// waitReadyFor blocks on the record's health checker without holding the
// registry lock — the lock must never be held across an HTTP or script
// probe.
func (m *Manager) waitReadyFor(name string, outerTimeout time.Duration) (health.Result, bool) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return health.Result{}, false
	}
	cfg := e.record.Config
	var port int
	if len(e.record.Ports) > 0 {
		port = e.record.Ports[0]
	}
	m.mu.Unlock()

	checker := buildChecker(cfg, port)
	cfgHealth := health.Config{
		Interval: cfg.Health.Interval,
		Timeout:  cfg.Health.Timeout,
		Retries:  cfg.Health.Retries,
	}
	return health.WaitReady(context.Background(), checker, cfgHealth, outerTimeout)
}

func buildChecker(cfg types.Config, port int) health.Checker {
	target := cfg.Health.Target
	switch cfg.Health.Kind {
	case types.HealthScript:
		return health.NewScriptChecker([]string{target})
	default:
		return health.NewHTTPChecker(resolveHTTPTarget(target, port))
	}
}

// resolveHTTPTarget lets a health target that's a bare path (e.g. "/health")
// be resolved against the record's own assigned port.
func resolveHTTPTarget(target string, port int) string {
	if port == 0 || len(target) == 0 || target[0] != '/' {
		return target
	}
	return "http://127.0.0.1:" + strconv.Itoa(port) + target
}
