//go:build !windows

package supervisor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-run/kestrel/pkg/types"
)

func TestWaitReady_NoHealthConfiguredReturnsImmediately(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("plain", "4580"), StartOptions{})
	require.NoError(t, err)
	defer m.Stop("plain")

	require.NoError(t, m.WaitReady("plain", time.Second))
}

func TestWaitReady_PassesOnceServerBecomesHealthy(t *testing.T) {
	m := newTestManager(t)

	healthy := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-healthy:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	cfg := sleeperConfig("checked", "4581")
	cfg.Health = &types.HealthCheckConfig{
		Enabled:  true,
		Kind:     types.HealthHTTP,
		Target:   srv.URL,
		Timeout:  100 * time.Millisecond,
		Interval: 50 * time.Millisecond,
		Retries:  20,
	}
	_, err := m.Start(cfg, StartOptions{})
	require.NoError(t, err)
	defer m.Stop("checked")

	time.AfterFunc(100*time.Millisecond, func() { close(healthy) })

	require.NoError(t, m.WaitReady("checked", 2*time.Second))
}

func TestWaitReady_UnknownNameIsNotFound(t *testing.T) {
	m := newTestManager(t)
	err := m.WaitReady("ghost", time.Second)
	require.Error(t, err)
}

func TestMonitorStream_DeliversSnapshotsUntilStopped(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Start(sleeperConfig("streamed", "4582"), StartOptions{})
	require.NoError(t, err)
	defer m.Stop("streamed")

	stream, stop := m.MonitorStream(20 * time.Millisecond)
	select {
	case snapshot := <-stream:
		require.Len(t, snapshot, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
	}
	stop()
	stop() // idempotent

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := <-stream; !ok {
			return
		}
	}
	t.Fatal("stream was never closed after stop")
}
