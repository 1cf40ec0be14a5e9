// Command kestreld is the process supervision daemon: it owns the registry,
// the background monitor loop, and the Prometheus metrics endpoint. It has
// no network control surface of its own — kestrelctl and any future API
// front end drive the supervisor through pkg/supervisor directly when
// embedded, or are expected to be wired to a transport of the operator's
// choosing. This binary's own job is to keep the registry alive, re-adopt
// whatever was running before a restart, and shut every child down cleanly
// on exit.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kestrel-run/kestrel/pkg/log"
	"github.com/kestrel-run/kestrel/pkg/metrics"
	"github.com/kestrel-run/kestrel/pkg/supervisor"
	"github.com/kestrel-run/kestrel/pkg/types"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kestreld",
	Short:   "kestreld is the process supervision daemon",
	Version: Version,
	RunE:    runDaemon,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("kestreld version %s\nCommit: %s\n", Version, Commit))

	rootCmd.Flags().String("data-dir", "", "Directory for persisted configuration, metadata, and logs (default: XDG state dir)")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus /metrics endpoint")
	rootCmd.Flags().Duration("monitor-interval", 5*time.Second, "CPU/memory sampling interval")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.Flags().GetString("log-level")
	logJSON, _ := rootCmd.Flags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func runDaemon(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	monitorInterval, _ := cmd.Flags().GetDuration("monitor-interval")

	if dataDir == "" {
		dataDir = xdg.StateHome + "/kestrel"
	}

	logger := log.WithComponent("kestreld")
	logger.Info().Str("data_dir", dataDir).Msg("starting")

	mgr, err := supervisor.New(supervisor.Options{
		DataDir:         dataDir,
		MonitorInterval: monitorInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}

	collector := metrics.NewCollector(mgr)
	collector.Start()
	logger.Info().Int("adopted", len(mgr.List())).Msg("registry ready")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("signal received, shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("metrics server failed")
	}

	stopAll(mgr, logger)

	collector.Stop()
	mgr.Shutdown()
	_ = srv.Close()

	logger.Info().Msg("shutdown complete")
	return nil
}

// stopAll issues Stop to every non-stopped record concurrently so the
// daemon's own shutdown latency is bounded by the slowest kill-timeout
// rather than their sum.
func stopAll(mgr *supervisor.Manager, logger zerolog.Logger) {
	records := mgr.List()
	var wg sync.WaitGroup
	for _, rec := range records {
		if rec.State == types.StateStopped {
			continue
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := mgr.Stop(name); err != nil {
				logger.Warn().Err(err).Str("name", name).Msg("stop failed during shutdown")
			}
		}(rec.Name)
	}
	wg.Wait()
}
