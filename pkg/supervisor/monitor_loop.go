package supervisor

import (
	"time"

	"github.com/kestrel-run/kestrel/pkg/metrics"
	"github.com/kestrel-run/kestrel/pkg/monitor"
	"github.com/kestrel-run/kestrel/pkg/types"
)

// sampleTarget is the narrow view the monitoring loop needs of one record,
// collected under the lock before any syscall runs.
type sampleTarget struct {
	name string
	pid  int
}

// monitorLoop is the background sampling loop: it samples per-PID
// CPU/memory outside the registry lock, then commits the samples in a brief
// locked critical section. Exit detection for records with no child handle
// to Wait on is reapAdopted's job, not this loop's.
func (m *Manager) monitorLoop() {
	ticker := time.NewTicker(m.monitorTick)
	defer ticker.Stop()

	for {
		select {
		case <-m.monitorStopCh:
			return
		case <-ticker.C:
			m.runMonitorCycle()
		}
	}
}

func (m *Manager) runMonitorCycle() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	m.mu.Lock()
	targets := make([]sampleTarget, 0, len(m.entries))
	for name, e := range m.entries {
		if e.record.State != types.StateOnline || e.record.PID == 0 {
			continue
		}
		targets = append(targets, sampleTarget{name: name, pid: e.record.PID})
	}
	m.mu.Unlock()

	samples := make(map[string]monitor.Sample, len(targets))
	for _, t := range targets {
		sample, err := monitor.Snapshot(t.pid)
		if err != nil {
			continue
		}
		samples[t.name] = sample
	}

	m.mu.Lock()
	for name, sample := range samples {
		e, ok := m.entries[name]
		if !ok {
			continue
		}
		e.record.Snapshot.CPUPercent = sample.CPUPercent
		e.record.Snapshot.MemoryBytes = sample.MemoryBytes
		e.record.Snapshot.Uptime = e.record.Uptime(time.Now())
		e.record.Snapshot.SampledAt = time.Now()

		if e.record.Config.MemoryRestartBytes > 0 && int64(sample.MemoryBytes) > e.record.Config.MemoryRestartBytes {
			e.record.State = types.StateRestarting
			// Set regardless of Restart.Enabled: a memory-ceiling kill
			// restarts even when the restart policy is disabled, unlike a
			// crash under a disabled restart policy.
			e.memoryCeilingExit = true
			cmdHandle := e.cmd
			pid := e.record.PID
			go func() {
				proc, _ := resolveProcess(cmdHandle, pid)
				killProcessBestEffort(proc)
			}()
		}
	}
	m.mu.Unlock()
}
