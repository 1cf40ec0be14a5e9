// Package procsignal implements per-OS graceful process termination: a
// polite stop request, a bounded wait, and a forced kill if the child has
// not exited by the time the wait elapses.
package procsignal

import (
	"context"
	"os"
	"time"
)

// Stop requests the process identified by pid to terminate politely, waits
// up to killTimeout for it to exit (as observed via exited), and forces
// termination if it is still alive afterward. A killTimeout of zero skips
// straight to a forced kill. exited is supplied by the caller and polled by
// Stop between signals; Stop does not wait for the process itself.
func Stop(ctx context.Context, process *os.Process, killTimeout time.Duration, exited func() bool) error {
	if killTimeout <= 0 {
		return forceKill(process)
	}

	if err := requestStop(process); err != nil {
		return err
	}

	deadline := time.NewTimer(killTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		if exited() {
			return nil
		}
		select {
		case <-ticker.C:
			continue
		case <-deadline.C:
			return forceKill(process)
		case <-ctx.Done():
			return forceKill(process)
		}
	}
}
