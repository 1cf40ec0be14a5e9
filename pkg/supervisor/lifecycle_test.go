//go:build !windows

package supervisor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-run/kestrel/pkg/types"
)

func TestStop_AlreadyStoppedIsNoOp(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("once", "4510"), StartOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Stop("once"))
	waitForState(t, m, "once", types.StateStopped, time.Second)

	require.NoError(t, m.Stop("once"))
}

func TestStop_ReleasesPorts(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("portrelease", "4520"), StartOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Stop("portrelease"))
	waitForState(t, m, "portrelease", types.StateStopped, time.Second)

	_, owned := m.ports.OwnerOf(4520)
	require.False(t, owned)
}

func TestRestart_PreservesPortWithoutOverride(t *testing.T) {
	m := newTestManager(t)

	records, err := m.Start(sleeperConfig("svc", "4530"), StartOptions{})
	require.NoError(t, err)
	firstPID := records[0].PID

	require.NoError(t, m.Restart("svc", ""))
	rec := waitForState(t, m, "svc", types.StateOnline, time.Second)
	require.Equal(t, []int{4530}, rec.Ports)
	require.NotEqual(t, firstPID, rec.PID)
	require.Equal(t, 1, rec.RestartCount)

	require.NoError(t, m.Stop("svc"))
}

func TestRestart_OverrideIsNonStickyToPersistedConfig(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("svc2", "6000"), StartOptions{})
	require.NoError(t, err)

	require.NoError(t, m.Restart("svc2", "6001"))
	rec := waitForState(t, m, "svc2", types.StateOnline, time.Second)
	require.Equal(t, []int{6001}, rec.Ports)

	cfg, err := m.store.LoadConfig("svc2")
	require.NoError(t, err)
	require.Equal(t, "6000", cfg.Port)

	require.NoError(t, m.Stop("svc2"))
}

func TestDelete_All(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("d1", "4540"), StartOptions{})
	require.NoError(t, err)
	_, err = m.Start(sleeperConfig("d2", "4541"), StartOptions{})
	require.NoError(t, err)
	waitForState(t, m, "d1", types.StateOnline, time.Second)
	waitForState(t, m, "d2", types.StateOnline, time.Second)

	result, err := m.Delete(DeleteSelector{All: true})
	require.NoError(t, err)
	require.Equal(t, 2, result.Stopped)
	require.Equal(t, 2, result.Deleted)

	require.Empty(t, m.List())
	_, owned := m.ports.OwnerOf(4540)
	require.False(t, owned)
	_, owned = m.ports.OwnerOf(4541)
	require.False(t, owned)
}

func TestDelete_UnknownNameIsNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Delete(DeleteSelector{Name: "ghost"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrKind(NotFound)))
}

func TestAutoRestart_RespectsMaxRestarts(t *testing.T) {
	m := newTestManager(t)

	cfg := types.Config{
		Name:       "flappy",
		Executable: "sh",
		Args:       []string{"-c", "exit 1"},
		Instances:  1,
		Restart: types.RestartPolicy{
			Enabled:      true,
			MaxRestarts:  2,
			RestartDelay: 10 * time.Millisecond,
		},
	}

	_, err := m.Start(cfg, StartOptions{})
	require.NoError(t, err)

	rec := waitForState(t, m, "flappy", types.StateErrored, 3*time.Second)
	require.GreaterOrEqual(t, rec.RestartCount, 2)
}
