package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "sim-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoadGPUSimulatorConfig(t *testing.T) {
	content := `
server:
  listen_address: ":19400"

simulation:
  update_interval: 2
  workload_period: 120
  seed: 42

devices:
  - hostname: "dgx-a"
    gpu_index: 0
  - hostname: "dgx-a"
    gpu_index: 1
    model: "NVIDIA H100 80GB HBM3"
    memory_mib: 81559

logging:
  level: "debug"
  format: "json"
  output: "stderr"
`
	cfg, err := LoadGPUSimulatorConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != ":19400" {
		t.Errorf("Expected ListenAddress :19400, got %s", cfg.Server.ListenAddress)
	}
	if cfg.UpdateInterval() != 2*time.Second {
		t.Errorf("Expected UpdateInterval 2s, got %s", cfg.UpdateInterval())
	}
	if cfg.Simulation.MinUtilization != 10 || cfg.Simulation.MaxUtilization != 99 {
		t.Errorf("Expected default utilization range [10,99], got [%v,%v]",
			cfg.Simulation.MinUtilization, cfg.Simulation.MaxUtilization)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(cfg.Devices))
	}
	if cfg.Devices[0].Model != "NVIDIA GB10 Blackwell" || cfg.Devices[0].MemoryMiB != 131072 {
		t.Errorf("Expected device defaults, got %+v", cfg.Devices[0])
	}
	if cfg.Devices[1].MemoryMiB != 81559 {
		t.Errorf("Expected explicit memory 81559, got %d", cfg.Devices[1].MemoryMiB)
	}
}

func TestLoadGPUSimulatorConfigDefaults(t *testing.T) {
	cfg, err := LoadGPUSimulatorConfig("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Server.ListenAddress != ":9400" {
		t.Errorf("Expected :9400, got %s", cfg.Server.ListenAddress)
	}
	if cfg.UpdateInterval() != 5*time.Second {
		t.Errorf("Expected 5s interval, got %s", cfg.UpdateInterval())
	}
	if len(cfg.Devices) != 2 || cfg.Devices[0].Hostname != "dgx-spark-01" {
		t.Errorf("Expected default DGX Spark roster, got %+v", cfg.Devices)
	}
}

func TestValidateGPUSimulatorConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "duplicate device",
			content: `
devices:
  - hostname: "n1"
  - hostname: "n1"
`,
			wantErr: "duplicate device",
		},
		{
			name: "missing hostname",
			content: `
devices:
  - gpu_index: 3
`,
			wantErr: "hostname is required",
		},
		{
			name: "inverted utilization range",
			content: `
simulation:
  min_utilization: 80
  max_utilization: 20
`,
			wantErr: "utilization range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGPUSimulatorConfig(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadSparkSimulatorConfig(t *testing.T) {
	content := `
server:
  submission_address: ":16066"

simulation:
  finish_probability: 0.5
  max_active: 8
  history_capacity: 20

cluster:
  spark_user: "etl-bot"

events:
  redis_url: "redis://localhost:6379/0"
`
	cfg, err := LoadSparkSimulatorConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.SubmissionAddress != ":16066" {
		t.Errorf("Expected :16066, got %s", cfg.Server.SubmissionAddress)
	}
	if cfg.Server.UIAddress != ":8080" {
		t.Errorf("Expected default UI address :8080, got %s", cfg.Server.UIAddress)
	}
	if cfg.Simulation.FinishProbability != 0.5 {
		t.Errorf("Expected FinishProbability 0.5, got %f", cfg.Simulation.FinishProbability)
	}
	if cfg.Simulation.SpawnProbability != 0.10 {
		t.Errorf("Expected default SpawnProbability 0.10, got %f", cfg.Simulation.SpawnProbability)
	}
	if cfg.Simulation.TaskBatchMin != 5 || cfg.Simulation.TaskBatchMax != 20 {
		t.Errorf("Expected default task batch [5,20], got [%d,%d]",
			cfg.Simulation.TaskBatchMin, cfg.Simulation.TaskBatchMax)
	}
	if cfg.Simulation.ListHistory != 10 {
		t.Errorf("Expected ListHistory 10, got %d", cfg.Simulation.ListHistory)
	}
	if cfg.Cluster.SparkUser != "etl-bot" {
		t.Errorf("Expected SparkUser etl-bot, got %s", cfg.Cluster.SparkUser)
	}
	if cfg.Events.Stream != "spark:jobs:stream" {
		t.Errorf("Expected default stream, got %s", cfg.Events.Stream)
	}
}

func TestSparkConfigKeepsExplicitZeros(t *testing.T) {
	content := `
simulation:
  finish_probability: 0
  spawn_probability: 0
  max_active: 0
`
	cfg, err := LoadSparkSimulatorConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	sim := cfg.Simulation
	if sim.FinishProbability != 0 || sim.SpawnProbability != 0 || sim.MaxActive != 0 {
		t.Errorf("Expected explicit zeros to survive, got finish %f spawn %f max_active %d",
			sim.FinishProbability, sim.SpawnProbability, sim.MaxActive)
	}

	defaults, err := LoadSparkSimulatorConfig("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if defaults.Simulation.FinishProbability != 0.05 || defaults.Simulation.MaxActive != 5 {
		t.Errorf("Expected defaults 0.05 and 5, got %f and %d",
			defaults.Simulation.FinishProbability, defaults.Simulation.MaxActive)
	}
}

func TestValidateSparkSimulatorConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "probability above one",
			content: "simulation:\n  finish_probability: 1.5\n",
			wantErr: "finish_probability",
		},
		{
			name:    "list larger than history",
			content: "simulation:\n  history_capacity: 5\n  list_history: 6\n",
			wantErr: "list_history",
		},
		{
			name:    "inverted batch range",
			content: "simulation:\n  task_batch_min: 30\n  task_batch_max: 10\n",
			wantErr: "task batch range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSparkSimulatorConfig(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadSparkSimulatorConfig("/nonexistent/spark.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestShippedConfigsLoad(t *testing.T) {
	gpu, err := LoadGPUSimulatorConfig("../../configs/gpu-simulator.yaml")
	if err != nil {
		t.Fatalf("gpu-simulator.yaml: %v", err)
	}
	if len(gpu.Devices) != 2 || gpu.Server.ListenAddress != ":9400" {
		t.Errorf("gpu-simulator.yaml loaded as %+v", gpu)
	}

	spark, err := LoadSparkSimulatorConfig("../../configs/spark-simulator.yaml")
	if err != nil {
		t.Fatalf("spark-simulator.yaml: %v", err)
	}
	if spark.Events.RedisURL != "" || spark.Simulation.ListHistory != 10 {
		t.Errorf("spark-simulator.yaml loaded as %+v", spark)
	}
}
