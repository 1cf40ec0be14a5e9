package supervisor

import (
	"context"
	"time"

	"github.com/kestrel-run/kestrel/pkg/broker"
	"github.com/kestrel-run/kestrel/pkg/health"
	"github.com/kestrel-run/kestrel/pkg/metrics"
	"github.com/kestrel-run/kestrel/pkg/monitor"
	"github.com/kestrel-run/kestrel/pkg/types"
)

// adoptedReapInterval is how often reapAdopted polls a re-adopted record's
// stored PID for liveness.
const adoptedReapInterval = 250 * time.Millisecond

// watch owns one spawned entry's lifetime after spawnEntry returns: it waits
// for the child to exit, then applies the auto-restart policy, and
// runs the record's background health probes
// until the record is deleted or stopped.
func (m *Manager) watch(e *entry) {
	name := e.record.Name
	cfg := e.record.Config

	healthCtx, healthCancel := context.WithCancel(context.Background())
	e.healthCancel = healthCancel
	if cfg.Health != nil && cfg.Health.Enabled {
		var port int
		if len(e.record.Ports) > 0 {
			port = e.record.Ports[0]
		}
		go m.healthLoop(healthCtx, name, cfg, port)
	}

	_ = e.cmd.Wait()
	if e.portLogWriter != nil {
		_ = e.portLogWriter.Close()
	}
	close(e.exited)
	healthCancel()

	m.mu.Lock()
	current, ok := m.entries[name]
	if !ok || current != e {
		// Replaced by a subsequent restart/reload, or deleted; nothing to do.
		m.mu.Unlock()
		return
	}
	if e.stopRequested {
		// Stop() owns the transition to Stopped.
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.handleUnexpectedExit(name)
}

// reapAdopted stands in for watch() on a record re-adopted from a prior
// daemon run: there is no *exec.Cmd to Wait() on, only a stored PID, so it
// polls monitor.Alive until the process disappears and then runs the same
// post-exit bookkeeping watch() would have.
func (m *Manager) reapAdopted(e *entry) {
	name := e.record.Name
	pid := e.record.PID

	ticker := time.NewTicker(adoptedReapInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		current, ok := m.entries[name]
		replaced := !ok || current != e
		m.mu.Unlock()
		if replaced {
			return
		}
		if !monitor.Alive(pid) {
			break
		}
	}

	close(e.exited)

	m.mu.Lock()
	current, ok := m.entries[name]
	if !ok || current != e {
		m.mu.Unlock()
		return
	}
	if e.stopRequested {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.handleUnexpectedExit(name)
}

// handleUnexpectedExit applies the auto-restart policy for a child
// that exited without an explicit stop request.
func (m *Manager) handleUnexpectedExit(name string) {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	cfg := e.record.Config
	policy := cfg.Restart
	bypassPolicy := e.memoryCeilingExit
	e.memoryCeilingExit = false

	if !policy.Enabled && !bypassPolicy {
		e.record.State = types.StateErrored
		e.record.PID = 0
		m.persistMetadataLocked(e.record)
		m.mu.Unlock()
		m.broker.Publish(&broker.Event{Type: broker.EventErrored, RecordName: name})
		return
	}

	// Measured from StartedAt rather than Uptime(): a memory-ceiling or
	// unhealthy kill has already moved the record to Restarting, for which
	// Uptime() reports zero.
	if policy.MinUptime > 0 && !e.record.StartedAt.IsZero() && time.Since(e.record.StartedAt) >= policy.MinUptime {
		e.record.RestartCount = 0
	}

	if policy.MaxRestarts > 0 && e.record.RestartCount >= policy.MaxRestarts {
		e.record.State = types.StateErrored
		e.record.PID = 0
		m.persistMetadataLocked(e.record)
		m.mu.Unlock()
		metrics.RestartsExhaustedTotal.WithLabelValues(name).Inc()
		m.broker.Publish(&broker.Event{Type: broker.EventErrored, RecordName: name})
		return
	}

	e.record.State = types.StateRestarting
	id := e.record.ID
	instanceIndex := e.record.InstanceIndex
	restartCount := e.record.RestartCount
	ports := append([]int(nil), e.record.Ports...)
	delay := policy.RestartDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	var port int
	if len(ports) > 0 {
		port = ports[0]
	}

	m.mu.Lock()
	// The record may have been stopped or deleted while we slept.
	if current, ok := m.entries[name]; !ok || current.record.State != types.StateRestarting {
		m.mu.Unlock()
		return
	}

	next, err := m.spawnEntry(cfg, name, instanceIndex, port, id)
	if err != nil {
		e.record.State = types.StateErrored
		m.persistMetadataLocked(e.record)
		m.mu.Unlock()
		m.broker.Publish(&broker.Event{Type: broker.EventErrored, RecordName: name})
		return
	}
	next.record.RestartCount = restartCount + 1
	next.record.LastRestartAt = time.Now()
	m.entries[name] = next
	m.persistMetadataLocked(next.record)
	go m.watch(next)
	m.mu.Unlock()

	metrics.RestartsTotal.WithLabelValues(name, "unexpected_exit").Inc()
	m.broker.Publish(&broker.Event{Type: broker.EventRestarted, RecordName: name})
}

// healthLoop runs background health probes at cfg.Health.Interval until ctx
// is cancelled, applying hysteresis via health.Status and surfacing the
// result in the record's monitoring snapshot. It never holds the registry
// lock across a probe.
func (m *Manager) healthLoop(ctx context.Context, name string, cfg types.Config, port int) {
	checker := buildChecker(cfg, port)
	probeCfg := health.Config{
		Interval: cfg.Health.Interval,
		Timeout:  cfg.Health.Timeout,
		Retries:  cfg.Health.Retries,
	}
	if probeCfg.Retries < 1 {
		probeCfg.Retries = 1
	}

	ticker := time.NewTicker(probeCfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeCfg.Timeout)
		result := checker.Check(probeCtx)
		cancel()
		metrics.HealthProbeDuration.WithLabelValues(string(cfg.Health.Kind)).Observe(result.Duration.Seconds())
		outcome := "fail"
		if result.Healthy {
			outcome = "pass"
		}
		metrics.HealthProbesTotal.WithLabelValues(string(cfg.Health.Kind), outcome).Inc()

		m.mu.Lock()
		e, ok := m.entries[name]
		if !ok {
			m.mu.Unlock()
			return
		}
		if e.healthStatus == nil {
			e.healthStatus = health.NewStatus()
		}
		wasHealthy := e.healthStatus.Healthy
		e.healthStatus.Update(result, probeCfg)
		e.record.Snapshot.Healthy = e.healthStatus.Healthy
		e.record.Snapshot.SampledAt = result.CheckedAt
		becameUnhealthy := wasHealthy && !e.healthStatus.Healthy
		restartOnUnhealthy := cfg.Restart.RestartOnUnhealthy && e.record.State == types.StateOnline
		m.mu.Unlock()

		if becameUnhealthy {
			m.broker.Publish(&broker.Event{Type: broker.EventHealthChanged, RecordName: name, Message: result.Message})
			if restartOnUnhealthy {
				m.mu.Lock()
				if e, ok := m.entries[name]; ok && e.record.State == types.StateOnline {
					e.stopRequested = false
					e.record.State = types.StateRestarting
				}
				m.mu.Unlock()
				if e.cmd != nil && e.cmd.Process != nil {
					killBestEffort(e.cmd)
				}
				return
			}
		}
	}
}
