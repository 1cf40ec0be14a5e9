//go:build !windows

package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-run/kestrel/pkg/types"
)

func TestMonitorLoop_SamplesCPUAndMemory(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("sampled", "4560"), StartOptions{})
	require.NoError(t, err)
	defer m.Stop("sampled")
	waitForState(t, m, "sampled", types.StateOnline, time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := m.Info("sampled")
		require.NoError(t, err)
		if !rec.Snapshot.SampledAt.IsZero() {
			require.Greater(t, rec.Snapshot.MemoryBytes, uint64(0))
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("monitoring loop never produced a sample")
}

func TestMonitorLoop_RestartsOverMemoryCeiling(t *testing.T) {
	m := newTestManager(t)

	cfg := sleeperConfig("piggy", "4561")
	cfg.MemoryRestartBytes = 1 // any real process exceeds this immediately
	cfg.Restart = types.RestartPolicy{Enabled: true, RestartDelay: 10 * time.Millisecond}

	_, err := m.Start(cfg, StartOptions{})
	require.NoError(t, err)
	defer m.Stop("piggy")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := m.Info("piggy")
		require.NoError(t, err)
		if rec.RestartCount > 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("process exceeding MemoryRestartBytes was never restarted")
}

// A memory-ceiling breach restarts a record even when the restart policy
// itself is disabled: the ceiling is enforced unconditionally, unlike a
// restart following an ordinary crash.
func TestMonitorLoop_RestartsOverMemoryCeilingEvenWithRestartDisabled(t *testing.T) {
	m := newTestManager(t)

	cfg := sleeperConfig("piggy-no-policy", "4562")
	cfg.MemoryRestartBytes = 1 // any real process exceeds this immediately

	_, err := m.Start(cfg, StartOptions{})
	require.NoError(t, err)
	defer m.Stop("piggy-no-policy")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := m.Info("piggy-no-policy")
		require.NoError(t, err)
		if rec.RestartCount > 0 {
			require.NotEqual(t, types.StateErrored, rec.State)
			return
		}
		require.NotEqual(t, types.StateErrored, rec.State, "should never land Errored when the memory ceiling forces a restart")
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("process exceeding MemoryRestartBytes was never restarted despite Restart.Enabled being false")
}
