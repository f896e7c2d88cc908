package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DeviceConfig describes one simulated accelerator in the roster
type DeviceConfig struct {
	Hostname  string `yaml:"hostname"`
	GPUIndex  int    `yaml:"gpu_index"`
	Model     string `yaml:"model"`
	MemoryMiB int64  `yaml:"memory_mib"`
}

// GPUSimulatorConfig represents the device telemetry simulator configuration
type GPUSimulatorConfig struct {
	Server struct {
		ListenAddress string `yaml:"listen_address"`
	} `yaml:"server"`

	Simulation struct {
		UpdateInterval int     `yaml:"update_interval"`
		WorkloadPeriod int     `yaml:"workload_period"`
		MinUtilization float64 `yaml:"min_utilization"`
		MaxUtilization float64 `yaml:"max_utilization"`
		Seed           int64   `yaml:"seed"`
	} `yaml:"simulation"`

	Devices []DeviceConfig `yaml:"devices"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
}

// UpdateInterval returns the tick interval as a duration
func (c *GPUSimulatorConfig) UpdateInterval() time.Duration {
	return time.Duration(c.Simulation.UpdateInterval) * time.Second
}

// SparkSimulatorConfig represents the job scheduler simulator configuration
type SparkSimulatorConfig struct {
	Server struct {
		SubmissionAddress string `yaml:"submission_address"`
		UIAddress         string `yaml:"ui_address"`
	} `yaml:"server"`

	Simulation struct {
		UpdateInterval    int     `yaml:"update_interval"`
		FinishProbability float64 `yaml:"finish_probability"`
		SpawnProbability  float64 `yaml:"spawn_probability"`
		MaxActive         int     `yaml:"max_active"`
		TaskBatchMin      int     `yaml:"task_batch_min"`
		TaskBatchMax      int     `yaml:"task_batch_max"`
		HistoryCapacity   int     `yaml:"history_capacity"`
		ListHistory       int     `yaml:"list_history"`
		SeedRunning       int     `yaml:"seed_running"`
		SeedFinished      int     `yaml:"seed_finished"`
		Seed              int64   `yaml:"seed"`
	} `yaml:"simulation"`

	Cluster struct {
		SparkUser      string `yaml:"spark_user"`
		SparkVersion   string `yaml:"spark_version"`
		WorkerHostPort string `yaml:"worker_host_port"`
	} `yaml:"cluster"`

	Events struct {
		RedisURL      string `yaml:"redis_url"`
		RedisPassword string `yaml:"redis_password"`
		Stream        string `yaml:"stream"`
		Channel       string `yaml:"channel"`
		BufferSize    int    `yaml:"buffer_size"`
	} `yaml:"events"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
}

// UpdateInterval returns the tick interval as a duration
func (c *SparkSimulatorConfig) UpdateInterval() time.Duration {
	return time.Duration(c.Simulation.UpdateInterval) * time.Second
}

// DefaultDevices is the two-node DGX Spark roster
func DefaultDevices() []DeviceConfig {
	return []DeviceConfig{
		{Hostname: "dgx-spark-01", GPUIndex: 0, Model: "NVIDIA GB10 Blackwell", MemoryMiB: 128 * 1024},
		{Hostname: "dgx-spark-02", GPUIndex: 0, Model: "NVIDIA GB10 Blackwell", MemoryMiB: 128 * 1024},
	}
}

// LoadGPUSimulatorConfig loads the device simulator configuration. An empty
// path yields the defaults.
func LoadGPUSimulatorConfig(path string) (*GPUSimulatorConfig, error) {
	var cfg GPUSimulatorConfig
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}

	applyGPUDefaults(&cfg)

	if err := validateGPUSimulatorConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadSparkSimulatorConfig loads the job scheduler simulator configuration.
// An empty path yields the defaults.
func LoadSparkSimulatorConfig(path string) (*SparkSimulatorConfig, error) {
	cfg := newSparkSimulatorConfig()
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}

	applySparkDefaults(&cfg)

	if err := validateSparkSimulatorConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func readYAML(path string, out interface{}) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyGPUDefaults(cfg *GPUSimulatorConfig) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":9400"
	}
	if cfg.Simulation.UpdateInterval == 0 {
		cfg.Simulation.UpdateInterval = 5
	}
	if cfg.Simulation.WorkloadPeriod == 0 {
		cfg.Simulation.WorkloadPeriod = 360
	}
	if cfg.Simulation.MinUtilization == 0 && cfg.Simulation.MaxUtilization == 0 {
		cfg.Simulation.MinUtilization = 10
		cfg.Simulation.MaxUtilization = 99
	}
	if len(cfg.Devices) == 0 {
		cfg.Devices = DefaultDevices()
	}
	for i := range cfg.Devices {
		if cfg.Devices[i].Model == "" {
			cfg.Devices[i].Model = "NVIDIA GB10 Blackwell"
		}
		if cfg.Devices[i].MemoryMiB == 0 {
			cfg.Devices[i].MemoryMiB = 128 * 1024
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// newSparkSimulatorConfig presets the fields for which zero is a meaningful
// setting, so they only take their default when the key is absent
func newSparkSimulatorConfig() SparkSimulatorConfig {
	var cfg SparkSimulatorConfig
	cfg.Simulation.FinishProbability = 0.05
	cfg.Simulation.SpawnProbability = 0.10
	cfg.Simulation.MaxActive = 5
	return cfg
}

func applySparkDefaults(cfg *SparkSimulatorConfig) {
	if cfg.Server.SubmissionAddress == "" {
		cfg.Server.SubmissionAddress = ":6066"
	}
	if cfg.Server.UIAddress == "" {
		cfg.Server.UIAddress = ":8080"
	}

	sim := &cfg.Simulation
	if sim.UpdateInterval == 0 {
		sim.UpdateInterval = 5
	}
	if sim.TaskBatchMin == 0 && sim.TaskBatchMax == 0 {
		sim.TaskBatchMin = 5
		sim.TaskBatchMax = 20
	}
	if sim.HistoryCapacity == 0 {
		sim.HistoryCapacity = 100
	}
	if sim.ListHistory == 0 {
		sim.ListHistory = 10
	}
	if sim.SeedRunning == 0 {
		sim.SeedRunning = 3
	}
	if sim.SeedFinished == 0 {
		sim.SeedFinished = 5
	}

	if cfg.Cluster.SparkUser == "" {
		cfg.Cluster.SparkUser = "dgx-admin"
	}
	if cfg.Cluster.SparkVersion == "" {
		cfg.Cluster.SparkVersion = "3.5.0"
	}
	if cfg.Cluster.WorkerHostPort == "" {
		cfg.Cluster.WorkerHostPort = "192.168.100.10:7078"
	}

	if cfg.Events.Stream == "" {
		cfg.Events.Stream = "spark:jobs:stream"
	}
	if cfg.Events.Channel == "" {
		cfg.Events.Channel = "spark:jobs:events"
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 256
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateGPUSimulatorConfig validates device simulator configuration
func validateGPUSimulatorConfig(cfg *GPUSimulatorConfig) error {
	if cfg.Simulation.UpdateInterval < 0 {
		return fmt.Errorf("simulation.update_interval must be positive")
	}
	if cfg.Simulation.WorkloadPeriod < 0 {
		return fmt.Errorf("simulation.workload_period must be positive")
	}
	lo, hi := cfg.Simulation.MinUtilization, cfg.Simulation.MaxUtilization
	if lo < 0 || hi > 100 || lo > hi {
		return fmt.Errorf("simulation utilization range must satisfy 0 <= min <= max <= 100")
	}

	seen := make(map[string]bool, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		if dev.Hostname == "" {
			return fmt.Errorf("devices[%d].hostname is required", i)
		}
		if dev.GPUIndex < 0 {
			return fmt.Errorf("devices[%d].gpu_index must not be negative", i)
		}
		if dev.MemoryMiB < 0 {
			return fmt.Errorf("devices[%d].memory_mib must be positive", i)
		}
		key := fmt.Sprintf("%s/%d", dev.Hostname, dev.GPUIndex)
		if seen[key] {
			return fmt.Errorf("devices[%d]: duplicate device %s", i, key)
		}
		seen[key] = true
	}
	return nil
}

// validateSparkSimulatorConfig validates job scheduler simulator configuration
func validateSparkSimulatorConfig(cfg *SparkSimulatorConfig) error {
	sim := cfg.Simulation
	if sim.UpdateInterval < 0 {
		return fmt.Errorf("simulation.update_interval must be positive")
	}
	if sim.FinishProbability < 0 || sim.FinishProbability > 1 {
		return fmt.Errorf("simulation.finish_probability must be between 0 and 1")
	}
	if sim.SpawnProbability < 0 || sim.SpawnProbability > 1 {
		return fmt.Errorf("simulation.spawn_probability must be between 0 and 1")
	}
	if sim.MaxActive < 0 {
		return fmt.Errorf("simulation.max_active must not be negative")
	}
	if sim.TaskBatchMin < 0 || sim.TaskBatchMin > sim.TaskBatchMax {
		return fmt.Errorf("simulation task batch range must satisfy 0 <= min <= max")
	}
	if sim.HistoryCapacity < 1 {
		return fmt.Errorf("simulation.history_capacity must be at least 1")
	}
	if sim.ListHistory < 0 || sim.ListHistory > sim.HistoryCapacity {
		return fmt.Errorf("simulation.list_history must be between 0 and history_capacity")
	}
	if cfg.Events.BufferSize < 1 {
		return fmt.Errorf("events.buffer_size must be at least 1")
	}
	return nil
}
