//go:build windows

package procsignal

import (
	"os"

	"golang.org/x/sys/windows"
)

// requestStop asks the process to close via a console-control event.
// Windows consoles only honor CTRL_CLOSE_EVENT for processes sharing the
// caller's console group, so if the attempt fails we fall back to a forced
// termination immediately rather than waiting out the full kill-timeout.
func requestStop(process *os.Process) error {
	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_CLOSE_EVENT, uint32(process.Pid)); err != nil {
		return forceKill(process)
	}
	return nil
}

func forceKill(process *os.Process) error {
	handle, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(process.Pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(handle)
	return windows.TerminateProcess(handle, 1)
}
