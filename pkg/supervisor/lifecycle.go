package supervisor

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/kestrel-run/kestrel/pkg/broker"
	"github.com/kestrel-run/kestrel/pkg/procsignal"
	"github.com/kestrel-run/kestrel/pkg/types"
)

// Stop gracefully terminates the named record. Stopping an already-Stopped
// record is a no-op.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return newErr(NotFound, name, "no such record", nil)
	}
	if e.record.State == types.StateStopped {
		m.mu.Unlock()
		return nil
	}
	e.stopRequested = true
	e.record.State = types.StateStopping
	cmd := e.cmd
	pid := e.record.PID
	killTimeout := e.record.Config.KillTimeout
	exited := e.exited
	m.mu.Unlock()

	proc, err := resolveProcess(cmd, pid)
	if err != nil {
		m.logger.Warn().Err(err).Str("name", name).Msg("failed to resolve process for signal delivery")
	}
	if proc != nil {
		err := procsignal.Stop(context.Background(), proc, killTimeout, func() bool {
			select {
			case <-exited:
				return true
			default:
				return false
			}
		})
		if err != nil {
			m.logger.Warn().Err(err).Str("name", name).Msg("signal delivery failed")
		}
	}

	<-exited

	m.mu.Lock()
	if e, ok := m.entries[name]; ok {
		e.record.State = types.StateStopped
		e.record.PID = 0
		m.ports.ReleaseAll(name)
		e.record.Ports = nil
		m.persistMetadataLocked(e.record)
	}
	m.mu.Unlock()

	m.broker.Publish(&broker.Event{Type: broker.EventStopped, RecordName: name})
	return nil
}

// Restart stops then starts the named record, optionally overriding its
// port in memory only, never persisting it back to the configuration. The restart counter
// is incremented.
func (m *Manager) Restart(name string, portOverride string) error {
	return m.restartOrReload(name, portOverride)
}

// Reload has the same contract as Restart at the engine level; the
// distinction (zero-downtime or not) is meaningful only to callers.
func (m *Manager) Reload(name string, portOverride string) error {
	return m.restartOrReload(name, portOverride)
}

func (m *Manager) restartOrReload(name string, portOverride string) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return newErr(NotFound, name, "no such record", nil)
	}
	cfg := e.record.Config
	id := e.record.ID
	instanceIndex := e.record.InstanceIndex
	restartCount := e.record.RestartCount
	priorPorts := append([]int(nil), e.record.Ports...)
	m.mu.Unlock()

	if err := m.Stop(name); err != nil {
		return err
	}

	runCfg := cfg
	var port int
	if portOverride != "" {
		spec, err := parsePortOverride(portOverride)
		if err != nil {
			return newErr(ValidationError, name, err.Error(), err)
		}
		port = spec
	} else if len(priorPorts) > 0 {
		port = priorPorts[0]
	}

	m.mu.Lock()
	if port != 0 {
		if _, err := m.ports.Allocate(name, types.PortSpec{Kind: types.PortSingle, Single: port}, 1); err != nil {
			m.mu.Unlock()
			return newErr(PortUnavailable, name, err.Error(), err)
		}
	}
	e2, err := m.spawnEntry(runCfg, name, instanceIndex, port, id)
	if err != nil {
		if port != 0 {
			m.ports.ReleaseAll(name)
		}
		m.mu.Unlock()
		return newErr(SpawnFailed, name, err.Error(), err)
	}
	e2.record.RestartCount = restartCount + 1
	e2.record.LastRestartAt = time.Now()
	m.entries[name] = e2
	m.persistMetadataLocked(e2.record)
	go m.watch(e2)
	m.mu.Unlock()

	m.broker.Publish(&broker.Event{Type: broker.EventRestarted, RecordName: name})
	return nil
}

// DeleteSelector picks which records Delete acts on.
type DeleteSelector struct {
	Name   string
	Status types.ProcessState
	All    bool
}

// DeleteResult reports how many records were stopped and removed.
type DeleteResult struct {
	Stopped int
	Deleted int
}

// Delete removes matching records: best-effort stop, then config, metadata,
// pid and log file removal, port release, and registry eviction. Stop
// failures are logged, not fatal — delete always proceeds.
func (m *Manager) Delete(sel DeleteSelector) (DeleteResult, error) {
	m.mu.Lock()
	var names []string
	switch {
	case sel.All:
		for n := range m.entries {
			names = append(names, n)
		}
	case sel.Status != "":
		for n, e := range m.entries {
			if e.record.State == sel.Status {
				names = append(names, n)
			}
		}
	default:
		if _, ok := m.entries[sel.Name]; !ok {
			m.mu.Unlock()
			return DeleteResult{}, newErr(NotFound, sel.Name, "no such record", nil)
		}
		names = []string{sel.Name}
	}
	m.mu.Unlock()

	var result DeleteResult
	for _, name := range names {
		m.mu.Lock()
		e, ok := m.entries[name]
		if !ok {
			m.mu.Unlock()
			continue
		}
		running := e.record.State != types.StateStopped && e.record.State != types.StateErrored
		cfg := e.record.Config
		m.mu.Unlock()

		if running {
			if err := m.Stop(name); err != nil {
				m.logger.Warn().Err(err).Str("name", name).Msg("best-effort stop during delete failed")
			} else {
				result.Stopped++
			}
		}

		m.mu.Lock()
		m.ports.ReleaseAll(name)
		delete(m.entries, name)
		m.mu.Unlock()

		if err := m.store.Delete(name); err != nil {
			m.logger.Warn().Err(err).Str("name", name).Msg("failed to remove persisted files")
		}
		for _, path := range []string{
			perInstancePath(cfg.PidFile, name, cfg.Instances),
			perInstancePath(cfg.LogFile, name, cfg.Instances),
			perInstancePath(cfg.ErrorFile, name, cfg.Instances),
		} {
			if path != "" {
				_ = os.Remove(path)
			}
		}

		result.Deleted++
		m.broker.Publish(&broker.Event{Type: broker.EventDeleted, RecordName: name})
	}

	return result, nil
}

func killBestEffort(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	killProcessBestEffort(cmd.Process)
}

func killProcessBestEffort(proc *os.Process) {
	if proc == nil {
		return
	}
	_ = procsignal.Stop(context.Background(), proc, 0, func() bool { return false })
}

// resolveProcess returns the *os.Process Stop and the memory-ceiling monitor
// should signal: the live child handle for a spawned entry, or one looked up
// by the stored PID for a record adopted from a prior daemon run that never
// had a child handle attached.
func resolveProcess(cmd *exec.Cmd, pid int) (*os.Process, error) {
	if cmd != nil && cmd.Process != nil {
		return cmd.Process, nil
	}
	if pid == 0 {
		return nil, nil
	}
	return os.FindProcess(pid)
}
