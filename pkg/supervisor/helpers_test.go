//go:build !windows

package supervisor

import (
	"testing"
	"time"

	"github.com/kestrel-run/kestrel/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(Options{DataDir: t.TempDir(), MonitorInterval: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(m.Shutdown)
	return m
}

// waitForState polls Info(name) until its state matches want or the
// deadline passes, returning the last observed record.
func waitForState(t *testing.T, m *Manager, name string, want types.ProcessState, timeout time.Duration) types.Record {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last types.Record
	for time.Now().Before(deadline) {
		rec, err := m.Info(name)
		if err == nil {
			last = rec
			if rec.State == want {
				return rec
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("record %q did not reach state %q, last seen %q", name, want, last.State)
	return types.Record{}
}

func sleeperConfig(name, port string) types.Config {
	return types.Config{
		Name:       name,
		Executable: "sh",
		Args:       []string{"-c", "trap 'exit 0' TERM; sleep 30 & wait"},
		Instances:  1,
		Port:       port,
		KillTimeout: 2 * time.Second,
	}
}
