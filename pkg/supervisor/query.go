package supervisor

import (
	"sync"
	"time"

	"github.com/kestrel-run/kestrel/pkg/types"
)

// WaitReady blocks until name's health checker reports ready, or
// outerTimeout elapses.
func (m *Manager) WaitReady(name string, outerTimeout time.Duration) error {
	m.mu.Lock()
	e, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return newErr(NotFound, name, "no such record", nil)
	}
	if e.record.Config.Health == nil || !e.record.Config.Health.Enabled {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if _, ok := m.waitReadyFor(name, outerTimeout); !ok {
		return newErr(HealthTimeout, name, "health check did not pass before wait-timeout", nil)
	}
	return nil
}

// MonitorStream produces a snapshot of the full registry at the given
// cadence on the returned channel, until stop is called. It is a
// convenience on top of List, not the lifecycle event broker (which
// delivers individual state-change notifications instead).
func (m *Manager) MonitorStream(interval time.Duration) (<-chan []types.Record, func()) {
	out := make(chan []types.Record, 1)
	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(out)

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				select {
				case out <- m.List():
				default:
				}
			}
		}
	}()

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() { close(stopCh) })
	}
	return out, stop
}
