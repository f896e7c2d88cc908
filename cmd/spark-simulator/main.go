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
	"github.com/chicogong/dgx-telemetry-sim/pkg/events"
	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	"github.com/chicogong/dgx-telemetry-sim/pkg/random"
	"github.com/chicogong/dgx-telemetry-sim/pkg/sparksim"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type options struct {
	configFile string
	submission string
	ui         string
	redisURL   string
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:           "spark-simulator",
		Short:         "Simulated Spark standalone REST and UI API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	rootCmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to config file (defaults apply when empty)")
	rootCmd.Flags().StringVar(&opts.submission, "listen", "", "Override server.submission_address")
	rootCmd.Flags().StringVar(&opts.ui, "ui-listen", "", "Override server.ui_address")
	rootCmd.Flags().StringVar(&opts.redisURL, "redis-url", "", "Override events.redis_url")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Spark Simulator\n")
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

func run(opts options) error {
	cfg, err := config.LoadSparkSimulatorConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.submission != "" {
		cfg.Server.SubmissionAddress = opts.submission
	}
	if opts.ui != "" {
		cfg.Server.UIAddress = opts.ui
	}
	if opts.redisURL != "" {
		cfg.Events.RedisURL = opts.redisURL
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}, "spark-simulator")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting Spark simulator",
		zap.String("version", Version),
		zap.String("config", configLabel(opts.configFile)),
	)

	dispatcher, err := newDispatcher(cfg, log.Named("events"))
	if err != nil {
		return err
	}
	dispatcher.Start()

	sim := cfg.Simulation
	state := sparksim.NewStateManager(sparksim.Options{
		SparkUser:       cfg.Cluster.SparkUser,
		HistoryCapacity: sim.HistoryCapacity,
		ListHistory:     sim.ListHistory,
		Source:          random.New(sim.Seed),
		Events:          dispatcher,
	}, log.Named("state"))
	state.Seed(sim.SeedRunning, sim.SeedFinished)

	metrics := sparksim.NewMetrics(state)
	engine := sparksim.NewEngine(state, metrics, sparksim.TickPolicy{
		TaskBatchMin:      sim.TaskBatchMin,
		TaskBatchMax:      sim.TaskBatchMax,
		FinishProbability: sim.FinishProbability,
		SpawnProbability:  sim.SpawnProbability,
		MaxActive:         sim.MaxActive,
	}, log.Named("engine"))
	engine.Start(cfg.UpdateInterval())

	server := api.NewSparkServer(state, metrics, api.ClusterInfo{
		SparkVersion:   cfg.Cluster.SparkVersion,
		WorkerHostPort: cfg.Cluster.WorkerHostPort,
	}, log.Named("http"))
	server.Start(cfg.Server.SubmissionAddress, cfg.Server.UIAddress)

	log.Info("Spark simulator started",
		zap.String("submission_address", cfg.Server.SubmissionAddress),
		zap.String("ui_address", cfg.Server.UIAddress),
		zap.Int("active", state.ActiveCount()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down Spark simulator...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine.Stop()
	if err := server.Stop(ctx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	dispatcher.Stop()

	log.Info("Spark simulator stopped")
	return nil
}

// newDispatcher wires the Redis sink when configured. An unreachable Redis
// is logged and tolerated; publish failures are logged until it comes back.
func newDispatcher(cfg *config.SparkSimulatorConfig, log *logger.Logger) (*events.Dispatcher, error) {
	if cfg.Events.RedisURL == "" {
		return events.NewDispatcher(events.NopSink{}, cfg.Events.BufferSize, log), nil
	}

	sink, err := events.NewRedisSink(events.RedisSinkConfig{
		URL:      cfg.Events.RedisURL,
		Password: cfg.Events.RedisPassword,
		Stream:   cfg.Events.Stream,
		Channel:  cfg.Events.Channel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event sink: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sink.Ping(ctx); err != nil {
		log.Warn("Redis not reachable, event publishing will fail until it is", zap.Error(err))
	} else {
		log.Info("Publishing job events to Redis",
			zap.String("stream", cfg.Events.Stream),
			zap.String("channel", cfg.Events.Channel),
		)
	}

	return events.NewDispatcher(sink, cfg.Events.BufferSize, log), nil
}

func configLabel(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
