/*
Package monitor wraps gopsutil's per-process CPU and memory sampling behind
the narrow shape the coordinator's background loop needs: Snapshot for a
resource sample, Alive for a liveness check during re-adoption.
*/
package monitor
