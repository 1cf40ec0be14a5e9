package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-run/kestrel/pkg/health"
	"github.com/kestrel-run/kestrel/pkg/types"
)

// clusterNames returns the record name(s) a configuration expands to: itself
// for a single instance, or "{base}-{index}" siblings for a cluster.
func clusterNames(cfg types.Config) []string {
	if cfg.Instances <= 1 {
		return []string{cfg.Name}
	}
	names := make([]string, cfg.Instances)
	for i := range names {
		names[i] = fmt.Sprintf("%s-%d", cfg.Name, i)
	}
	return names
}

// perInstancePath derives a distinct path for a cluster member from a
// single configured base path: singles use it verbatim, siblings get
// "<dir>/<name><ext>" so each instance writes to its own file.
func perInstancePath(base, name string, instances int) string {
	if base == "" {
		return ""
	}
	if instances <= 1 {
		return base
	}
	ext := filepath.Ext(base)
	return filepath.Join(filepath.Dir(base), name+ext)
}

// spawnEntry starts exactly one child process for a cluster member and
// returns its not-yet-registered entry. The caller is responsible for
// inserting it into the registry and persisting state. id is the record's
// stable identifier: pass "" for a brand-new record (a fresh uuid is
// minted), or an existing record's ID to preserve identity across a
// restart/reload/auto-restart respawn.
func (m *Manager) spawnEntry(cfg types.Config, name string, instanceIndex, port int, id string) (*entry, error) {
	cmd := exec.Command(cfg.Executable, cfg.Args...)
	cmd.Dir = cfg.Cwd
	cmd.Env = childEnv(cfg, port, instanceIndex)

	outPath := perInstancePath(cfg.LogFile, name, cfg.Instances)
	errPath := perInstancePath(cfg.ErrorFile, name, cfg.Instances)

	stdout, err := openAppend(outPath, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("opening stdout log: %w", err)
	}
	stderr, err := openAppend(errPath, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("opening stderr log: %w", err)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	var portLogWriter *io.PipeWriter
	if port == 0 {
		var pipeReader *io.PipeReader
		pipeReader, portLogWriter = io.Pipe()
		cmd.Stdout = io.MultiWriter(stdout, portLogWriter)
		go scanForPort(pipeReader, func(discovered int) {
			m.mu.Lock()
			if e, ok := m.entries[name]; ok && len(e.record.Ports) == 0 {
				e.record.Ports = []int{discovered}
			}
			m.mu.Unlock()
		})
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	if id == "" {
		id = uuid.New().String()
	}

	rec := types.Record{
		ID:            id,
		Name:          name,
		Namespace:     cfg.Namespace,
		Config:        cfg,
		InstanceIndex: instanceIndex,
		State:         types.StateStarting,
		PID:           cmd.Process.Pid,
	}
	if port != 0 {
		rec.Ports = []int{port}
	}
	rec.StartedAt = time.Now()

	e := &entry{
		record:        rec,
		cmd:           cmd,
		exited:        make(chan struct{}),
		portLogWriter: portLogWriter,
	}
	if cfg.Health != nil && cfg.Health.Enabled {
		e.healthStatus = health.NewStatus()
	}

	if pidPath := perInstancePath(cfg.PidFile, name, cfg.Instances); pidPath != "" {
		_ = os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", cmd.Process.Pid)), 0o644)
	}

	rec.State = types.StateOnline
	e.record = rec

	return e, nil
}

func openAppend(path string, fallback *os.File) (*os.File, error) {
	if path == "" {
		return fallback, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
