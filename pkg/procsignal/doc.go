/*
Package procsignal implements the signal subsystem: request-stop, wait,
force-kill. The Unix build sends SIGTERM then SIGKILL; the Windows build
generates a console-close control event and falls back to TerminateProcess.
Stop's polling loop is the only OS-independent part — the per-OS files
supply requestStop and forceKill.
*/
package procsignal
