// cmd/main.go - Program entry
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"telemetry-dashboard/internal/app"
	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/daemon"
	"telemetry-dashboard/internal/utils"
	"telemetry-dashboard/pkg/logger"
)

var (
	// set by the linker during build
	osName   string
	archName string
	version  string
)

func main() {
	if version != "" {
		fmt.Printf("Version: %s\n", version)
	}

	// Parse command line arguments
	appName := flag.String("appname", "telemetry-dashboard", "app name")
	httpServer := flag.String("http", "", "view bridge address (default from config)")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	configPath := flag.String("config", "", "config file, .toml or .yaml (default <root>/config.toml)")
	enablePprof := flag.Bool("pprof", false, "enable pprof profiling")
	pprofAddr := flag.String("pprof-addr", "localhost:6060", "pprof server address")
	flag.Parse()

	// Initialize directories
	if err := initDir(*appName); err != nil {
		fmt.Printf("failed to initialize directory: %v\n", err)
		os.Exit(1)
	}
	// Initialize configuration
	if err := initConfig(*appName, *configPath); err != nil {
		fmt.Printf("failed to initialize configuration: %v\n", err)
		os.Exit(1)
	}

	clientConfig := config.GetClientConfig()
	clientConfig.Pprof.Enabled = clientConfig.Pprof.Enabled || *enablePprof
	if *enablePprof {
		clientConfig.Pprof.Address = *pprofAddr
	}
	if *httpServer != "" {
		clientConfig.Server.Addr = *httpServer
	}
	config.SetClientConfig(clientConfig)

	// Initialize logging system
	appLogger, err := logger.NewLogger(utils.LogsDir, *logLevel, *appName)
	if err != nil {
		fmt.Printf("failed to initialize logging system: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("OS: %s, Arch: %s, App: %s, Version: %s, Starting...", osName, archName, *appName, version)

	registry, err := app.New(clientConfig, appLogger, app.Options{StoreDir: utils.StoreDir})
	if err != nil {
		appLogger.Fatal("failed to build application: %v", err)
		return
	}

	daemonProcess := daemon.NewDaemon(registry, clientConfig.Server.Addr, appLogger)
	daemonProcess.Start()

	// Start pprof server if enabled
	setupPprof(appLogger)

	// Give the bridge a moment to fail on a taken port
	select {
	case err := <-daemonProcess.Errors():
		appLogger.Error("view bridge failed to start: %v", err)
		daemonProcess.Stop()
		os.Exit(1)
	case <-time.After(2 * time.Second):
		appLogger.Info("view bridge started successfully on %s", clientConfig.Server.Addr)
	}

	// Handle system signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-signals:
		appLogger.Info("received shutdown signal, shutting down gracefully...")
	case err := <-daemonProcess.Errors():
		appLogger.Error("view bridge stopped unexpectedly: %v", err)
	}
	daemonProcess.Stop()

	appLogger.Info("telemetry dashboard has been successfully closed")
}

func memStatsHandler(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(memStats)
}

func setupPprof(appLogger logger.Logger) {
	pprofConfig := config.GetClientConfig().Pprof
	if !pprofConfig.Enabled {
		return
	}
	go func() {
		pprofMux := http.NewServeMux()
		pprofMux.HandleFunc("/debug/pprof/", pprof.Index)
		pprofMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		pprofMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		pprofMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		pprofMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		pprofMux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		pprofMux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
		pprofMux.Handle("/debug/pprof/memStats", http.HandlerFunc(memStatsHandler))

		appLogger.Info("pprof server starting on %s", pprofConfig.Address)
		if err := http.ListenAndServe(pprofConfig.Address, pprofMux); err != nil && err != http.ErrServerClosed {
			appLogger.Error("pprof server error: %v", err)
		}
	}()
	appLogger.Info("pprof profiles available at http://%s/debug/pprof/", pprofConfig.Address)
}

// initDir initializes directories
func initDir(appName string) error {
	rootPath, err := utils.GetRootDir(appName)
	if err != nil {
		return fmt.Errorf("failed to get root directory: %v", err)
	}
	fmt.Printf("root directory: %s\n", rootPath)

	logPath, err := utils.GetLogDir(rootPath)
	if err != nil {
		return fmt.Errorf("failed to get log directory: %v", err)
	}
	fmt.Printf("log directory: %s\n", logPath)

	storePath, err := utils.GetStoreDir(rootPath)
	if err != nil {
		return fmt.Errorf("failed to get store directory: %v", err)
	}
	fmt.Printf("store directory: %s\n", storePath)

	return nil
}

// initConfig loads the configuration file and environment
func initConfig(appName, path string) error {
	config.SetAppInfo(config.AppInfo{
		AppName:  appName,
		ArchName: archName,
		OSName:   osName,
		Version:  version,
	})

	if path == "" {
		path = utils.ConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	config.SetClientConfig(cfg)
	return nil
}
