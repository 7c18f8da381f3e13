// Command kernel starts the agent coordination kernel: it opens the memory
// database and every coordination component, binds the introspection HTTP/WS
// surface, and serves until a shutdown signal arrives. Grounded on
// cmd/cliaimonitor/main.go's flag parsing, single-instance guard, and
// confirmed-bind-then-PID-file sequencing, adapted from a fleet dashboard
// entrypoint to the kernel's component set.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agentic-qe/kernel/internal/config"
	"github.com/agentic-qe/kernel/internal/instance"
	"github.com/agentic-qe/kernel/internal/kernel"
	"github.com/agentic-qe/kernel/internal/server"
)

func main() {
	port := flag.Int("port", 0, "HTTP introspection port (overrides config file)")
	configPath := flag.String("config", "configs/kernel.yaml", "Kernel configuration file")
	status := flag.Bool("status", false, "Show status of the running instance")
	stop := flag.Bool("stop", false, "Stop the running instance gracefully")
	forceStop := flag.Bool("force-stop", false, "Force kill the running instance")
	flag.Parse()

	basePath, err := getBasePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to determine base path: %v\n", err)
		os.Exit(1)
	}

	if !filepath.IsAbs(*configPath) {
		*configPath = filepath.Join(basePath, *configPath)
	}
	pidFilePath := filepath.Join(basePath, "data", "kernel.pid")

	if *status {
		showInstanceStatus(pidFilePath)
		os.Exit(0)
	}
	if *stop || *forceStop {
		stopInstance(pidFilePath, *forceStop)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		cfg.Storage.DatabasePath = filepath.Join(basePath, cfg.Storage.DatabasePath)
	}
	if !filepath.IsAbs(cfg.Storage.ArtifactRoot) {
		cfg.Storage.ArtifactRoot = filepath.Join(basePath, cfg.Storage.ArtifactRoot)
	}

	instanceMgr := instance.NewManager(pidFilePath, "", cfg.Server.Port)

	existingInfo, err := instanceMgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to check for existing instance: %v\n", err)
		os.Exit(1)
	}
	if existingInfo != nil && existingInfo.IsRunning {
		resolver := instance.NewConflictResolver(instanceMgr, instance.IsInteractive())
		if err := resolver.Resolve(existingInfo); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to resolve instance conflict: %v\n", err)
			os.Exit(1)
		}
		cfg.Server.Port = instanceMgr.GetPort()
	}

	if err := instanceMgr.AcquireLock(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire instance lock: %v\n", err)
		os.Exit(1)
	}
	defer instanceMgr.ReleaseLock()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	k, err := kernel.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open kernel: %v\n", err)
		os.Exit(1)
	}
	defer k.Close()

	fmt.Println("Kernel components wired (memory, coordination, orchestrator, routing, learning, telemetry)")

	if !instance.IsPortAvailable(cfg.Server.Port) {
		procPID, _ := instance.GetProcessUsingPort(cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "Port %d is in use by process %d\n", cfg.Server.Port, procPID)
		os.Exit(1)
	}

	introspection := server.New(k)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: introspection.Handler(),
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	ready := false
	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		select {
		case err := <-serverErr:
			fmt.Fprintf(os.Stderr, "Server failed to start: %v\n", err)
			os.Exit(1)
		default:
		}
		if instance.HealthCheck(cfg.Server.Port) == nil {
			ready = true
			break
		}
	}
	if !ready {
		fmt.Fprintln(os.Stderr, "Server failed to become ready within timeout")
		os.Exit(1)
	}
	fmt.Printf("Introspection surface ready at http://localhost:%d\n", cfg.Server.Port)

	if err := instanceMgr.WritePIDFile(os.Getpid(), cfg.Server.Port, basePath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write PID file: %v\n", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		}
	case <-shutdown:
		fmt.Println("Shutting down (signal received)...")
	case <-introspection.ShutdownChan:
		fmt.Println("Shutting down (API request)...")
	}

	instanceMgr.RemovePIDFile()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
	}

	fmt.Println("Goodbye!")
}

func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// getBasePath returns the directory containing the executable, or the
// current working directory if running via `go run`.
func getBasePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return os.Getwd()
	}
	dir := filepath.Dir(exe)
	if filepath.Base(dir) == "exe" || filepath.Base(filepath.Dir(dir)) == "go-build" {
		return os.Getwd()
	}
	if filepath.Base(dir) == "bin" {
		return filepath.Dir(dir), nil
	}
	return dir, nil
}

func showInstanceStatus(pidFilePath string) {
	mgr := instance.NewManager(pidFilePath, "", 0)
	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if info == nil {
		fmt.Println("No kernel instance is currently running")
		return
	}

	statusIcon := "running"
	if !info.IsResponding {
		statusIcon = "degraded"
	}
	fmt.Printf("Instance:  %s\n", statusIcon)
	fmt.Printf("  PID:     %d\n", info.PID)
	fmt.Printf("  Port:    %d\n", info.Port)
	fmt.Printf("  Started: %s (%s ago)\n",
		info.StartTime.Format("2006-01-02 15:04:05"),
		time.Since(info.StartTime).Round(time.Second))
}

func stopInstance(pidFilePath string, force bool) {
	mgr := instance.NewManager(pidFilePath, "", 0)
	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if info == nil {
		fmt.Println("No kernel instance is currently running")
		return
	}

	if !force && info.IsResponding {
		if err := instance.SendShutdownRequest(info.Port); err == nil {
			fmt.Println("Sent graceful shutdown request")
			return
		}
		fmt.Println("Graceful shutdown failed, force killing...")
	}

	if err := instance.KillProcess(info.PID); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to kill process: %v\n", err)
		return
	}
	mgr.RemovePIDFile()
	fmt.Println("Instance terminated")
}
