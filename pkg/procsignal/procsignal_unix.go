//go:build !windows

package procsignal

import (
	"os"
	"syscall"
)

func requestStop(process *os.Process) error {
	return process.Signal(syscall.SIGTERM)
}

func forceKill(process *os.Process) error {
	return process.Signal(syscall.SIGKILL)
}
