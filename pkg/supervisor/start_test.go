//go:build !windows

package supervisor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-run/kestrel/pkg/types"
)

func TestStart_SpawnsAndRegistersRecord(t *testing.T) {
	m := newTestManager(t)

	records, err := m.Start(sleeperConfig("web", "4500"), StartOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "web", records[0].Name)
	require.NotEmpty(t, records[0].ID)
	require.Equal(t, []int{4500}, records[0].Ports)

	rec := waitForState(t, m, "web", types.StateOnline, time.Second)
	require.NotZero(t, rec.PID)

	require.NoError(t, m.Stop("web"))
}

func TestStart_DuplicateNameIsNameConflict(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("dup", "4501"), StartOptions{})
	require.NoError(t, err)
	defer m.Stop("dup")

	_, err = m.Start(sleeperConfig("dup", "4502"), StartOptions{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrKind(NameConflict)))
}

func TestStart_ClusterAllocatesContiguousPortsIndividually(t *testing.T) {
	m := newTestManager(t)

	cfg := types.Config{
		Name:       "cluster",
		Executable: "sh",
		Args:       []string{"-c", "trap 'exit 0' TERM; sleep 30 & wait"},
		Instances:  3,
		Port:       "4600-4602",
	}
	records, err := m.Start(cfg, StartOptions{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, rec := range records {
		require.Equal(t, []int{4600 + i}, rec.Ports)
	}

	// Stopping one sibling must not touch the others' port ownership.
	require.NoError(t, m.Stop("cluster-0"))
	waitForState(t, m, "cluster-0", types.StateStopped, time.Second)

	rec1, err := m.Info("cluster-1")
	require.NoError(t, err)
	require.Equal(t, []int{4601}, rec1.Ports)

	require.NoError(t, m.Stop("cluster-1"))
	require.NoError(t, m.Stop("cluster-2"))
}

func TestStart_ClusterRollbackOnSiblingSpawnFailure(t *testing.T) {
	m := newTestManager(t)

	cfg := types.Config{
		Name:       "boom",
		Executable: "/no/such/executable-boom",
		Instances:  3,
		Port:       "4700-4702",
	}
	_, err := m.Start(cfg, StartOptions{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrKind(SpawnFailed)))

	for _, name := range []string{"boom-0", "boom-1", "boom-2"} {
		_, err := m.Info(name)
		require.Error(t, err)
	}
	require.Empty(t, m.ports.OwnedBy("boom-0"))
	require.Empty(t, m.ports.OwnedBy("boom-1"))
	require.Empty(t, m.ports.OwnedBy("boom-2"))
	_, owned := m.ports.OwnerOf(4700)
	require.False(t, owned)
}

func TestStart_AutoPortSkipsOwnedPorts(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("filler-a", "5000"), StartOptions{})
	require.NoError(t, err)
	defer m.Stop("filler-a")
	_, err = m.Start(sleeperConfig("filler-b", "5001"), StartOptions{})
	require.NoError(t, err)
	defer m.Stop("filler-b")

	cfg := sleeperConfig("auto", "auto:5000-5010")
	records, err := m.Start(cfg, StartOptions{})
	require.NoError(t, err)
	require.Equal(t, []int{5002}, records[0].Ports)
	defer m.Stop("auto")
}

func TestStart_RangeCountMismatchFailsValidation(t *testing.T) {
	m := newTestManager(t)

	cfg := types.Config{
		Name:       "mismatch",
		Executable: "sh",
		Instances:  2,
		Port:       "4800-4803",
	}
	_, err := m.Start(cfg, StartOptions{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrKind(ValidationError)))
}

func TestStartThenDelete_NameIsReusable(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("reuse", "4900"), StartOptions{})
	require.NoError(t, err)
	waitForState(t, m, "reuse", types.StateOnline, time.Second)

	_, err = m.Delete(DeleteSelector{Name: "reuse"})
	require.NoError(t, err)

	_, err = m.Info("reuse")
	require.Error(t, err)

	records, err := m.Start(sleeperConfig("reuse", "4900"), StartOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	defer m.Stop("reuse")
}

func TestStart_BlockingStartWaitsForHealth(t *testing.T) {
	m := newTestManager(t)

	// No real HTTP server is listening at this target; wait-ready must
	// fail with HealthTimeout well before a long outer timeout would
	// otherwise suggest a hang, and the process stays Online.
	cfg := sleeperConfig("api", "4950")
	cfg.Health = &types.HealthCheckConfig{
		Enabled:  true,
		Kind:     types.HealthHTTP,
		Target:   "http://127.0.0.1:1/health",
		Timeout:  50 * time.Millisecond,
		Interval: 50 * time.Millisecond,
		Retries:  2,
	}

	start := time.Now()
	_, err := m.Start(cfg, StartOptions{WaitReady: true, WaitTimeout: 300 * time.Millisecond})
	elapsed := time.Since(start)

	require.Error(t, err)
	require.True(t, errors.Is(err, ErrKind(HealthTimeout)))
	require.Less(t, elapsed, 2*time.Second)

	rec, err := m.Info("api")
	require.NoError(t, err)
	require.Equal(t, types.StateOnline, rec.State)

	require.NoError(t, m.Stop("api"))
}
