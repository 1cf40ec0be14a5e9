/*
Package supervisor is the manager coordinator: the sole owner of the process
registry. It composes pkg/portpool, pkg/health, pkg/procsignal, and
pkg/confstore behind a single mutex, exposes the control surface (start,
stop, restart, reload, delete, list, info, wait-ready, monitor-stream), and
runs the background monitoring loop that samples CPU/memory via pkg/monitor.
Exits of re-adopted processes, which have no child handle, are detected by a
per-record reapAdopted goroutine rather than by that loop.

The registry lock is never held across a health probe or other
outside-I/O-bound call; it is held only across map mutation and syscalls
expected to return promptly (spawn, signal delivery).
*/
package supervisor
