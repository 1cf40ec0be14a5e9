// Command kestrelctl is a thin CLI front end over pkg/supervisor.Manager. It
// opens the same data directory the daemon uses and drives the registry
// in-process — there is no RPC hop, since the control surface this command
// exercises is a Go API, not a network protocol. Its only job is to prove
// that surface is complete and callable; it is not part of the core's
// tested contract.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/kestrel-run/kestrel/pkg/supervisor"
	"github.com/kestrel-run/kestrel/pkg/types"
)

var (
	Version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kestrelctl",
	Short:   "kestrelctl controls a kestrel process registry",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "", "Directory kestreld was started with (default: XDG state dir)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(waitReadyCmd)
}

// openManager opens the same registry kestreld would, without starting its
// own monitor loop's side effects beyond what New already does — this is a
// short-lived command process, so a long MonitorInterval keeps sampling
// overhead out of the way of whatever kestreld is already doing.
func openManager(cmd *cobra.Command) (*supervisor.Manager, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = xdg.StateHome + "/kestrel"
	}
	return supervisor.New(supervisor.Options{DataDir: dataDir, MonitorInterval: time.Minute})
}

func splitEnv(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

var startCmd = &cobra.Command{
	Use:   "start NAME EXECUTABLE [ARGS...]",
	Short: "Start a new process or cluster",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		instances, _ := cmd.Flags().GetInt("instances")
		port, _ := cmd.Flags().GetString("port")
		namespace, _ := cmd.Flags().GetString("namespace")
		cwd, _ := cmd.Flags().GetString("cwd")
		env, _ := cmd.Flags().GetStringSlice("env")
		maxRestarts, _ := cmd.Flags().GetInt("max-restarts")
		killTimeout, _ := cmd.Flags().GetDuration("kill-timeout")
		waitReady, _ := cmd.Flags().GetBool("wait-ready")
		waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")
		healthHTTP, _ := cmd.Flags().GetString("health-http")
		healthScript, _ := cmd.Flags().GetString("health-script")

		cfg := types.Config{
			Name:        args[0],
			Namespace:   namespace,
			Executable:  args[1],
			Args:        args[2:],
			Cwd:         cwd,
			Env:         splitEnv(env),
			Instances:   instances,
			Port:        port,
			KillTimeout: killTimeout,
			Restart: types.RestartPolicy{
				Enabled:     maxRestarts != 0,
				MaxRestarts: maxRestarts,
			},
		}

		if healthHTTP != "" {
			cfg.Health = &types.HealthCheckConfig{Enabled: true, Kind: types.HealthHTTP, Target: healthHTTP, Timeout: 2 * time.Second, Interval: 5 * time.Second, Retries: 3}
		} else if healthScript != "" {
			cfg.Health = &types.HealthCheckConfig{Enabled: true, Kind: types.HealthScript, Target: healthScript, Timeout: 2 * time.Second, Interval: 5 * time.Second, Retries: 3}
		}

		records, err := mgr.Start(cfg, supervisor.StartOptions{WaitReady: waitReady, WaitTimeout: waitTimeout})
		if err != nil {
			return fmt.Errorf("start failed: %w", err)
		}

		for _, rec := range records {
			fmt.Printf("started %s (pid %d, ports %v)\n", rec.Name, rec.PID, rec.Ports)
		}
		return nil
	},
}

func init() {
	startCmd.Flags().Int("instances", 1, "Number of cluster instances")
	startCmd.Flags().String("port", "", "Port spec: a single port, a range (3000-3003), or auto:LOW-HIGH")
	startCmd.Flags().String("namespace", "", "Namespace label")
	startCmd.Flags().String("cwd", "", "Working directory")
	startCmd.Flags().StringSlice("env", nil, "Environment variables (KEY=VALUE)")
	startCmd.Flags().Int("max-restarts", 0, "Maximum automatic restarts on unexpected exit (0 disables auto-restart)")
	startCmd.Flags().Duration("kill-timeout", 5*time.Second, "Grace period between SIGTERM and SIGKILL")
	startCmd.Flags().Bool("wait-ready", false, "Block until the health check passes before returning")
	startCmd.Flags().Duration("wait-timeout", 10*time.Second, "Timeout for --wait-ready")
	startCmd.Flags().String("health-http", "", "HTTP health check URL")
	startCmd.Flags().String("health-script", "", "Script health check path")
}

var stopCmd = &cobra.Command{
	Use:   "stop NAME",
	Short: "Stop a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()
		if err := mgr.Stop(args[0]); err != nil {
			return err
		}
		fmt.Printf("stopped %s\n", args[0])
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart NAME",
	Short: "Stop and respawn a process, preserving its record identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()
		portOverride, _ := cmd.Flags().GetString("port")
		if err := mgr.Restart(args[0], portOverride); err != nil {
			return err
		}
		fmt.Printf("restarted %s\n", args[0])
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload NAME",
	Short: "Reload a process (alias of restart at the coordinator level)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()
		portOverride, _ := cmd.Flags().GetString("port")
		if err := mgr.Reload(args[0], portOverride); err != nil {
			return err
		}
		fmt.Printf("reloaded %s\n", args[0])
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{restartCmd, reloadCmd} {
		cmd.Flags().String("port", "", "Runtime port override, not persisted to the configuration")
	}
}

var deleteCmd = &cobra.Command{
	Use:     "delete NAME",
	Aliases: []string{"rm"},
	Short:   "Stop and remove a process's record, configuration, and logs",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		all, _ := cmd.Flags().GetBool("all")
		status, _ := cmd.Flags().GetString("status")
		if len(args) == 0 && !all && status == "" {
			return fmt.Errorf("specify NAME, --all, or --status")
		}

		sel := supervisor.DeleteSelector{All: all}
		if len(args) == 1 {
			sel.Name = args[0]
		}
		if status != "" {
			sel.Status = types.ProcessState(status)
		}

		result, err := mgr.Delete(sel)
		if err != nil {
			return err
		}
		fmt.Printf("stopped %d, deleted %d\n", result.Stopped, result.Deleted)
		return nil
	},
}

func init() {
	deleteCmd.Flags().Bool("all", false, "Delete every record")
	deleteCmd.Flags().String("status", "", "Delete every record in this state")
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List every supervised record",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		records := mgr.List()
		if len(records) == 0 {
			fmt.Println("No records found")
			return nil
		}

		fmt.Printf("%-20s %-5s %-12s %-8s %-10s %-8s\n", "NAME", "INST", "STATE", "PID", "PORTS", "RESTARTS")
		for _, rec := range records {
			fmt.Printf("%-20s %-5d %-12s %-8d %-10v %-8d\n",
				truncate(rec.Name, 20), rec.InstanceIndex, rec.State, rec.PID, rec.Ports, rec.RestartCount)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info NAME",
	Short: "Show full detail for one record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		rec, err := mgr.Info(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Name:       %s\n", rec.Name)
		fmt.Printf("ID:         %s\n", rec.ID)
		fmt.Printf("Namespace:  %s\n", rec.Namespace)
		fmt.Printf("State:      %s\n", rec.State)
		fmt.Printf("PID:        %d\n", rec.PID)
		fmt.Printf("Ports:      %v\n", rec.Ports)
		fmt.Printf("Restarts:   %d\n", rec.RestartCount)
		if !rec.StartedAt.IsZero() {
			fmt.Printf("Uptime:     %s\n", rec.Uptime(time.Now()).Round(time.Second))
		}
		fmt.Printf("CPU:        %.1f%%\n", rec.Snapshot.CPUPercent)
		fmt.Printf("Memory:     %d bytes\n", rec.Snapshot.MemoryBytes)
		fmt.Printf("Healthy:    %t\n", rec.Snapshot.Healthy)
		return nil
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream periodic snapshots of every record until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		interval, _ := cmd.Flags().GetDuration("interval")
		stream, stop := mgr.MonitorStream(interval)
		defer stop()

		for snapshot := range stream {
			fmt.Printf("--- %s ---\n", time.Now().Format(time.RFC3339))
			for _, rec := range snapshot {
				fmt.Printf("%-20s %-12s cpu=%.1f%% mem=%dB\n", rec.Name, rec.State, rec.Snapshot.CPUPercent, rec.Snapshot.MemoryBytes)
			}
		}
		return nil
	},
}

func init() {
	monitorCmd.Flags().Duration("interval", time.Second, "Snapshot cadence")
}

var waitReadyCmd = &cobra.Command{
	Use:   "wait-ready NAME",
	Short: "Block until a record's health check passes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		if err := mgr.WaitReady(args[0], timeout); err != nil {
			return err
		}
		fmt.Printf("%s is ready\n", args[0])
		return nil
	},
}

func init() {
	waitReadyCmd.Flags().Duration("timeout", 10*time.Second, "Maximum time to wait")
}
