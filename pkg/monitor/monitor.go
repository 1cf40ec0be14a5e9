// Package monitor samples per-PID CPU and memory usage from the OS for the
// coordinator's background monitoring loop. Sampling happens outside the
// registry lock; only the brief commit of results back onto records is
// locked.
package monitor

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one CPU/memory observation for a single OS process.
type Sample struct {
	CPUPercent  float64
	MemoryBytes uint64
}

// Snapshot samples the process identified by pid. It returns an error if the
// PID no longer maps to a live process, which callers treat as "the child
// exited without being observed directly."
func Snapshot(pid int) (Sample, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return Sample{}, fmt.Errorf("pid %d not found: %w", pid, err)
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return Sample{}, fmt.Errorf("sampling cpu for pid %d: %w", pid, err)
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return Sample{}, fmt.Errorf("sampling memory for pid %d: %w", pid, err)
	}

	return Sample{CPUPercent: cpuPercent, MemoryBytes: memInfo.RSS}, nil
}

// Alive reports whether pid refers to a currently running OS process.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	running, err := process.PidExists(int32(pid))
	return err == nil && running
}
