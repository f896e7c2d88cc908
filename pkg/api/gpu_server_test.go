package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chicogong/dgx-telemetry-sim/pkg/config"
	"github.com/chicogong/dgx-telemetry-sim/pkg/gpusim"
	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	"github.com/chicogong/dgx-telemetry-sim/pkg/models"
	"github.com/chicogong/dgx-telemetry-sim/pkg/random"
	"github.com/prometheus/common/expfmt"
)

func newGPUTestServer(t *testing.T) (*httptest.Server, *gpusim.Simulator) {
	t.Helper()

	sim := gpusim.NewSimulator(gpusim.Options{
		Devices: config.DefaultDevices(),
		Source:  random.New(7),
	}, logger.Nop())

	ts := httptest.NewServer(NewGPUServer(sim, logger.Nop()).Handler())
	t.Cleanup(ts.Close)
	return ts, sim
}

func scrape(t *testing.T, url string) map[string]float64 {
	t.Helper()

	resp, err := http.Get(url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics = %d", resp.StatusCode)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		t.Fatalf("exposition does not parse: %v", err)
	}
	if len(families) != 19 {
		t.Errorf("parsed %d families, want 19", len(families))
	}

	// energy keyed by hostname, for monotonicity checks
	energy := make(map[string]float64)
	for name, mf := range families {
		if len(mf.GetMetric()) != 2 {
			t.Errorf("%s: %d series, want one per device", name, len(mf.GetMetric()))
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for _, want := range gpusim.DeviceLabels {
				if labels[want] == "" {
					t.Errorf("%s: label %s missing or empty", name, want)
				}
			}
			if name == "DCGM_FI_DEV_TOTAL_ENERGY_CONSUMPTION" {
				energy[labels["Hostname"]] = m.GetGauge().GetValue()
			}
		}
	}
	return energy
}

func TestGPUMetricsScrape(t *testing.T) {
	ts, _ := newGPUTestServer(t)

	prev := scrape(t, ts.URL)
	for i := 0; i < 5; i++ {
		next := scrape(t, ts.URL)
		for host, v := range next {
			if v < prev[host] {
				t.Errorf("%s energy decreased %f -> %f", host, prev[host], v)
			}
		}
		prev = next
	}
}

func TestGPUHealth(t *testing.T) {
	ts, _ := newGPUTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var health models.DeviceHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "healthy" || health.Service != "gpu-simulator" || health.GPUs != 2 {
		t.Errorf("health %+v", health)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}

func TestGPUIndexListsDevices(t *testing.T) {
	ts, sim := newGPUTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("content type %q", resp.Header.Get("Content-Type"))
	}
	for _, dev := range sim.Devices() {
		if !strings.Contains(string(body), dev.Hostname) || !strings.Contains(string(body), dev.UUID) {
			t.Errorf("index missing device %s", dev.Hostname)
		}
	}

	missing, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", missing.StatusCode)
	}
}
