package api

import (
	"html/template"
	"net/http"

	"github.com/chicogong/dgx-telemetry-sim/pkg/gpusim"
	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var gpuIndexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>DCGM Exporter Simulator</title></head>
<body>
<h1>DCGM Exporter Simulator</h1>
<p>Simulating {{len .}} device(s). Metrics are served at <a href="/metrics">/metrics</a>.</p>
<table border="1" cellpadding="4">
<tr><th>Hostname</th><th>GPU</th><th>Device</th><th>Model</th><th>UUID</th></tr>
{{range .}}<tr><td>{{.Hostname}}</td><td>{{.Index}}</td><td>{{.DeviceName}}</td><td>{{.Model}}</td><td>{{.UUID}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// GPUServer exposes the device telemetry simulator
type GPUServer struct {
	restServer
	sim     *gpusim.Simulator
	metrics http.Handler
}

// NewGPUServer creates the device telemetry HTTP server
func NewGPUServer(sim *gpusim.Simulator, log *logger.Logger) *GPUServer {
	return &GPUServer{
		restServer: restServer{logger: log},
		sim:        sim,
		metrics: promhttp.HandlerFor(gpusim.NewRegistry(sim), promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(log.Logger),
		}),
	}
}

// Handler returns the routed handler with middleware applied
func (s *GPUServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	return s.wrap(mux)
}

// Start starts serving on address
func (s *GPUServer) Start(address string) {
	s.listen(address, s.Handler())
}

// handleMetrics refreshes the snapshot before every scrape
func (s *GPUServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.sim.Update()
	s.metrics.ServeHTTP(w, r)
}

func (s *GPUServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.sim.Health())
}

func (s *GPUServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := gpuIndexTemplate.Execute(w, s.sim.Devices()); err != nil {
		s.logger.Warn("Failed to render index", zap.Error(err))
	}
}
