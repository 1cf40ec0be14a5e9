//go:build !windows

package monitor

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_ReturnsUsageForALiveProcess(t *testing.T) {
	cmd := exec.Command("sleep", "2")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	// gopsutil needs a moment after fork before /proc entries settle.
	time.Sleep(50 * time.Millisecond)

	sample, err := Snapshot(cmd.Process.Pid)
	require.NoError(t, err)
	require.GreaterOrEqual(t, sample.MemoryBytes, uint64(0))
}

func TestSnapshot_ErrorsForANonexistentPID(t *testing.T) {
	_, err := Snapshot(999999)
	require.Error(t, err)
}

func TestAlive_TracksProcessLifetime(t *testing.T) {
	cmd := exec.Command("sleep", "1")
	require.NoError(t, cmd.Start())
	require.True(t, Alive(cmd.Process.Pid))

	require.NoError(t, cmd.Process.Kill())
	cmd.Wait()

	require.False(t, Alive(cmd.Process.Pid))
}
