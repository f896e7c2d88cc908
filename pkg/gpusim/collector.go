package gpusim

import (
	"strconv"

	"github.com/chicogong/dgx-telemetry-sim/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

// DeviceLabels are the DCGM exporter label names, in order
var DeviceLabels = []string{"gpu", "UUID", "device", "modelName", "Hostname"}

type deviceMetric struct {
	desc  *prometheus.Desc
	value func(m *models.DeviceMetrics) float64
}

func newDeviceMetric(name, help string, value func(m *models.DeviceMetrics) float64) deviceMetric {
	return deviceMetric{
		desc:  prometheus.NewDesc(name, help, DeviceLabels, nil),
		value: value,
	}
}

// Collector exposes every device as one gauge series per DCGM field. Each
// Collect reads a single Snapshot, so the series of one scrape agree.
type Collector struct {
	sim     *Simulator
	metrics []deviceMetric
}

// NewCollector creates the DCGM collector for a simulator
func NewCollector(sim *Simulator) *Collector {
	return &Collector{
		sim: sim,
		metrics: []deviceMetric{
			newDeviceMetric("DCGM_FI_DEV_GPU_UTIL", "GPU utilization (in %).",
				func(m *models.DeviceMetrics) float64 { return m.GPUUtil }),
			newDeviceMetric("DCGM_FI_DEV_MEM_COPY_UTIL", "Memory copy utilization (in %).",
				func(m *models.DeviceMetrics) float64 { return m.MemCopyUtil }),
			newDeviceMetric("DCGM_FI_DEV_FB_FREE", "Framebuffer memory free (in MiB).",
				func(m *models.DeviceMetrics) float64 { return float64(m.FBFreeMiB) }),
			newDeviceMetric("DCGM_FI_DEV_FB_USED", "Framebuffer memory used (in MiB).",
				func(m *models.DeviceMetrics) float64 { return float64(m.FBUsedMiB) }),
			newDeviceMetric("DCGM_FI_DEV_FB_TOTAL", "Total framebuffer memory (in MiB).",
				func(m *models.DeviceMetrics) float64 { return float64(m.FBTotalMiB) }),
			newDeviceMetric("DCGM_FI_DEV_GPU_TEMP", "GPU temperature (in C).",
				func(m *models.DeviceMetrics) float64 { return m.GPUTemp }),
			newDeviceMetric("DCGM_FI_DEV_MEMORY_TEMP", "Memory temperature (in C).",
				func(m *models.DeviceMetrics) float64 { return m.MemoryTemp }),
			newDeviceMetric("DCGM_FI_DEV_POWER_USAGE", "Power draw (in W).",
				func(m *models.DeviceMetrics) float64 { return m.PowerUsage }),
			newDeviceMetric("DCGM_FI_DEV_TOTAL_ENERGY_CONSUMPTION", "Total energy consumption since boot (in mJ).",
				func(m *models.DeviceMetrics) float64 { return m.EnergyMilliJ }),
			newDeviceMetric("DCGM_FI_DEV_SM_CLOCK", "SM clock frequency (in MHz).",
				func(m *models.DeviceMetrics) float64 { return float64(m.SMClockMHz) }),
			newDeviceMetric("DCGM_FI_DEV_MEM_CLOCK", "Memory clock frequency (in MHz).",
				func(m *models.DeviceMetrics) float64 { return float64(m.MemClockMHz) }),
			newDeviceMetric("DCGM_FI_DEV_PCIE_TX_THROUGHPUT", "PCIe TX throughput (in KB/s).",
				func(m *models.DeviceMetrics) float64 { return float64(m.PCIeTXKBps) }),
			newDeviceMetric("DCGM_FI_DEV_PCIE_RX_THROUGHPUT", "PCIe RX throughput (in KB/s).",
				func(m *models.DeviceMetrics) float64 { return float64(m.PCIeRXKBps) }),
			newDeviceMetric("DCGM_FI_DEV_NVLINK_BANDWIDTH_TOTAL", "NVLink bandwidth (in GB/s).",
				func(m *models.DeviceMetrics) float64 { return m.NVLinkGBps }),
			newDeviceMetric("DCGM_FI_PROF_PIPE_TENSOR_ACTIVE", "Tensor pipe active (in %).",
				func(m *models.DeviceMetrics) float64 { return m.TensorActive }),
			newDeviceMetric("DCGM_FI_PROF_DRAM_ACTIVE", "DRAM active (in %).",
				func(m *models.DeviceMetrics) float64 { return m.DRAMActive }),
			newDeviceMetric("DCGM_FI_DEV_ECC_SBE_VOL_TOTAL", "Total number of single-bit volatile ECC errors.",
				func(m *models.DeviceMetrics) float64 { return float64(m.ECCSingleBit) }),
			newDeviceMetric("DCGM_FI_DEV_ECC_DBE_VOL_TOTAL", "Total number of double-bit volatile ECC errors.",
				func(m *models.DeviceMetrics) float64 { return float64(m.ECCDoubleBit) }),
			newDeviceMetric("DCGM_FI_DEV_XID_ERRORS", "Value of the last XID error encountered.",
				func(m *models.DeviceMetrics) float64 { return float64(m.XIDErrors) }),
		},
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, snap := range c.sim.Snapshot() {
		labels := labelValues(snap.Device)
		for _, m := range c.metrics {
			ch <- prometheus.MustNewConstMetric(m.desc, prometheus.GaugeValue, m.value(&snap.Metrics), labels...)
		}
	}
}

func labelValues(d models.Device) []string {
	return []string{strconv.Itoa(d.Index), d.UUID, d.DeviceName, d.Model, d.Hostname}
}

// NewRegistry returns a registry holding only the DCGM collector
func NewRegistry(sim *Simulator) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(sim))
	return reg
}
