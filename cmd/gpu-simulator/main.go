package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chicogong/dgx-telemetry-sim/pkg/api"
	"github.com/chicogong/dgx-telemetry-sim/pkg/config"
	"github.com/chicogong/dgx-telemetry-sim/pkg/gpusim"
	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	"github.com/chicogong/dgx-telemetry-sim/pkg/random"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	var (
		configFile string
		listen     string
	)

	rootCmd := &cobra.Command{
		Use:           "gpu-simulator",
		Short:         "Simulated DCGM exporter for DGX Spark nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile, listen)
		},
	}
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (defaults apply when empty)")
	rootCmd.Flags().StringVar(&listen, "listen", "", "Override server.listen_address")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("GPU Simulator\n")
			fmt.Printf("  Version:    %s\n", Version)
			fmt.Printf("  Git Commit: %s\n", GitCommit)
			fmt.Printf("  Build Time: %s\n", BuildTime)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, listen string) error {
	cfg, err := config.LoadGPUSimulatorConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listen != "" {
		cfg.Server.ListenAddress = listen
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}, "gpu-simulator")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting GPU simulator",
		zap.String("version", Version),
		zap.String("config", configFile),
		zap.Int("gpus", len(cfg.Devices)),
	)

	sim := gpusim.NewSimulator(gpusim.Options{
		Devices:        cfg.Devices,
		UpdateInterval: cfg.UpdateInterval(),
		WorkloadPeriod: time.Duration(cfg.Simulation.WorkloadPeriod) * time.Second,
		MinUtilization: cfg.Simulation.MinUtilization,
		MaxUtilization: cfg.Simulation.MaxUtilization,
		Source:         random.New(cfg.Simulation.Seed),
	}, log.Named("gpusim"))
	sim.Start()

	server := api.NewGPUServer(sim, log.Named("http"))
	server.Start(cfg.Server.ListenAddress)

	for _, dev := range sim.Devices() {
		log.Info("Simulating device",
			zap.String("hostname", dev.Hostname),
			zap.String("uuid", dev.UUID),
			zap.String("model", dev.Model),
		)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down GPU simulator...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sim.Stop()
	if err := server.Stop(ctx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	log.Info("GPU simulator stopped")
	return nil
}
