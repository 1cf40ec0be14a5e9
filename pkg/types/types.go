// Package types defines the data model shared across the supervision engine:
// process configuration, runtime records, restart policy, and port
// specifications.
package types

import (
	"time"
)

// ProcessState is a record's position in the supervision state machine.
type ProcessState string

const (
	StateStarting   ProcessState = "starting"
	StateOnline     ProcessState = "online"
	StateStopping   ProcessState = "stopping"
	StateStopped    ProcessState = "stopped"
	StateErrored    ProcessState = "errored"
	StateRestarting ProcessState = "restarting"
)

// PortSpecKind distinguishes the three ways a port can be requested.
type PortSpecKind string

const (
	PortSingle PortSpecKind = "single"
	PortRange  PortSpecKind = "range"
	PortAuto   PortSpecKind = "auto"
)

// PortSpec is the parsed form of a configuration's port string: "3000",
// "3000-3003", or "auto:5000-5010".
type PortSpec struct {
	Kind PortSpecKind
	// Single holds the port for PortSingle.
	Single int
	// Low/High bound a range for PortRange and PortAuto (inclusive).
	Low  int
	High int
}

// RangeLength returns the number of ports the spec's range spans, or 1 for
// a single port.
func (s PortSpec) RangeLength() int {
	if s.Kind == PortSingle {
		return 1
	}
	return s.High - s.Low + 1
}

// RestartPolicy governs automatic restart of a record after an unexpected exit.
type RestartPolicy struct {
	Enabled          bool
	MaxRestarts      int
	MinUptime        time.Duration
	RestartDelay     time.Duration
	RestartOnUnhealthy bool
}

// HealthCheckKind selects the probe implementation.
type HealthCheckKind string

const (
	HealthHTTP   HealthCheckKind = "http"
	HealthScript HealthCheckKind = "script"
)

// HealthCheckConfig configures a record's health probe, both for blocking
// start coordination and for the background monitor.
type HealthCheckConfig struct {
	Enabled  bool
	Kind     HealthCheckKind
	Target   string // URL for Kind==HealthHTTP, script path for Kind==HealthScript
	Timeout  time.Duration
	Interval time.Duration
	Retries  int
}

// Config is a record's declared, persisted configuration — everything the
// operator supplies, immutable except via explicit reconfigure.
type Config struct {
	Name       string
	Namespace  string
	Executable string
	Args       []string
	Cwd        string
	Env        map[string]string
	Instances  int
	Port       string // raw spec string, e.g. "3000", "3000-3003", "auto:5000-5010"
	MemoryRestartBytes int64
	Restart    RestartPolicy
	KillTimeout time.Duration
	Health     *HealthCheckConfig
	LogFile    string // stdout path, empty means inherit
	ErrorFile  string // stderr path, empty means inherit
	PidFile    string
	Watch      bool // accepted, inert — file-watch restart is not implemented
}

// Snapshot is the monitoring sample attached to a record: CPU/memory usage
// plus derived health, read-only and safe to copy.
type Snapshot struct {
	CPUPercent  float64
	MemoryBytes uint64
	Uptime      time.Duration
	Healthy     bool
	SampledAt   time.Time
}

// Metadata is the runtime identity persisted alongside Config so a record
// can be re-adopted across daemon restarts.
type Metadata struct {
	ID             string
	Ports          []int
	LastPID        int
	InstanceIndex  int
	RestartCount   int
	LastStartedAt  time.Time
}

// Record is the canonical in-memory representation of one supervised
// process: configuration, runtime state, and the latest monitoring sample.
// Records are mutated only by the coordinator holding the registry lock.
type Record struct {
	ID            string
	Name          string
	Namespace     string
	Config        Config
	InstanceIndex int

	State ProcessState

	PID           int // stored PID — survives even when no child handle exists
	Ports         []int
	RestartCount  int
	LastRestartAt time.Time
	StartedAt     time.Time

	Snapshot Snapshot
}

// IsClusterMember reports whether this record was derived from a
// configuration with Instances > 1.
func (r *Record) IsClusterMember() bool {
	return r.Config.Instances > 1
}

// Uptime returns how long the record has been continuously Online.
func (r *Record) Uptime(now time.Time) time.Duration {
	if r.State != StateOnline || r.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(r.StartedAt)
}
