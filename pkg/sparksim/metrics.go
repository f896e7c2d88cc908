package sparksim

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DurationBuckets are the job duration histogram bounds in seconds
var DurationBuckets = []float64{10, 30, 60, 120, 300, 600, 1800, 3600}

// Metrics holds the scheduler exposition: cluster gauges computed from one
// Summary per scrape, plus the finished-job duration histogram.
type Metrics struct {
	state *StateManager

	appsTotal   *prometheus.Desc
	appsRunning *prometheus.Desc
	executors   *prometheus.Desc
	cores       *prometheus.Desc
	memory      *prometheus.Desc

	JobDuration prometheus.Histogram
}

// NewMetrics creates scheduler metrics for a state manager
func NewMetrics(state *StateManager) *Metrics {
	return &Metrics{
		state:       state,
		appsTotal:   prometheus.NewDesc("spark_apps_total", "Total number of Spark applications", nil, nil),
		appsRunning: prometheus.NewDesc("spark_apps_running", "Number of running applications", nil, nil),
		executors:   prometheus.NewDesc("spark_executors_total", "Total number of executors", nil, nil),
		cores:       prometheus.NewDesc("spark_cores_used", "Number of cores in use", nil, nil),
		memory:      prometheus.NewDesc("spark_memory_used_bytes", "Memory used in bytes", nil, nil),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spark_job_duration_seconds",
			Help:    "Job duration in seconds",
			Buckets: DurationBuckets,
		}),
	}
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.appsTotal
	ch <- m.appsRunning
	ch <- m.executors
	ch <- m.cores
	ch <- m.memory
	m.JobDuration.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	s := m.state.Summary()
	ch <- prometheus.MustNewConstMetric(m.appsTotal, prometheus.GaugeValue, float64(s.Total))
	ch <- prometheus.MustNewConstMetric(m.appsRunning, prometheus.GaugeValue, float64(s.Running))
	ch <- prometheus.MustNewConstMetric(m.executors, prometheus.GaugeValue, float64(s.Executors))
	ch <- prometheus.MustNewConstMetric(m.cores, prometheus.GaugeValue, float64(s.Cores))
	ch <- prometheus.MustNewConstMetric(m.memory, prometheus.GaugeValue, float64(s.MemoryBytes))
	m.JobDuration.Collect(ch)
}

// NewRegistry returns a registry holding only the scheduler metrics
func (m *Metrics) NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(m)
	return reg
}
