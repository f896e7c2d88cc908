package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chicogong/dgx-telemetry-sim/pkg/logger"
	"github.com/chicogong/dgx-telemetry-sim/pkg/models"
	"github.com/chicogong/dgx-telemetry-sim/pkg/sparksim"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxSubmissionBody caps how much of a create request is read
const maxSubmissionBody = 1 << 20

// ClusterInfo is the static identity reported by the submission API
type ClusterInfo struct {
	SparkVersion   string
	WorkerHostPort string
}

// SparkServer exposes the job scheduler simulator. The submission API and
// the UI API share one handler and may listen on separate addresses.
type SparkServer struct {
	restServer
	state    *sparksim.StateManager
	metrics  http.Handler
	cluster  ClusterInfo
	workerID string
}

// NewSparkServer creates the job scheduler HTTP server
func NewSparkServer(state *sparksim.StateManager, metrics *sparksim.Metrics, cluster ClusterInfo, log *logger.Logger) *SparkServer {
	return &SparkServer{
		restServer: restServer{logger: log},
		state:      state,
		metrics: promhttp.HandlerFor(metrics.NewRegistry(), promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(log.Logger),
		}),
		cluster:  cluster,
		workerID: workerID(cluster.WorkerHostPort, state.Now()),
	}
}

func workerID(hostPort string, started time.Time) string {
	return fmt.Sprintf("worker-%s-%s", started.Format("20060102"), strings.ReplaceAll(hostPort, ":", "-"))
}

// Handler returns the routed handler with middleware applied
func (s *SparkServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Submission API
	mux.HandleFunc("GET /v1/submissions/status/{id}", s.handleSubmissionStatus)
	mux.HandleFunc("POST /v1/submissions/create", s.handleCreateSubmission)
	mux.HandleFunc("POST /v1/submissions/kill/{id}", s.handleKillSubmission)

	// UI API
	mux.HandleFunc("GET /api/v1/applications", s.handleListApplications)
	mux.HandleFunc("GET /api/v1/applications/{id}", s.handleGetApplication)
	mux.HandleFunc("GET /api/v1/applications/{id}/jobs", s.handleApplicationJobs)
	mux.HandleFunc("GET /api/v1/applications/{id}/stages", s.handleApplicationStages)
	mux.HandleFunc("GET /api/v1/applications/{id}/executors", s.handleApplicationExecutors)

	mux.Handle("GET /metrics", s.metrics)
	mux.Handle("GET /metrics/prometheus", s.metrics)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.wrap(mux)
}

// Start serves the submission and UI APIs. Equal addresses share a listener.
func (s *SparkServer) Start(submissionAddress, uiAddress string) {
	handler := s.Handler()
	s.listen(submissionAddress, handler)
	if uiAddress != "" && uiAddress != submissionAddress {
		s.listen(uiAddress, handler)
	}
}

func (s *SparkServer) handleSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	app, err := s.state.Status(id)
	if err != nil {
		s.sendSubmissionError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, models.SubmissionStatusResponse{
		Action:             "SubmissionStatusResponse",
		DriverState:        app.State,
		ServerSparkVersion: s.cluster.SparkVersion,
		SubmissionID:       app.ID,
		Success:            true,
		WorkerHostPort:     s.cluster.WorkerHostPort,
		WorkerID:           s.workerID,
	})
}

// handleCreateSubmission never rejects a body; anything unreadable falls back
// to the default application name
func (s *SparkServer) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSubmissionRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionBody))
	if err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.logger.Debug("Ignoring malformed submission body", zap.Error(err))
			req = models.CreateSubmissionRequest{}
		}
	}

	app := s.state.Submit(req.AppResource)

	s.logger.Info("Application submitted",
		zap.String("app_id", app.ID),
		zap.String("name", app.Name),
	)

	s.sendJSON(w, http.StatusOK, models.CreateSubmissionResponse{
		Action:             "CreateSubmissionResponse",
		Message:            fmt.Sprintf("Driver successfully submitted as %s", app.ID),
		ServerSparkVersion: s.cluster.SparkVersion,
		SubmissionID:       app.ID,
		Success:            true,
	})
}

func (s *SparkServer) handleKillSubmission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	app, err := s.state.Kill(id)
	if err != nil {
		s.sendSubmissionError(w, err)
		return
	}

	s.logger.Info("Application killed", zap.String("app_id", app.ID))

	s.sendJSON(w, http.StatusOK, models.KillSubmissionResponse{
		Action:             "KillSubmissionResponse",
		Message:            fmt.Sprintf("Kill request for %s submitted", app.ID),
		ServerSparkVersion: s.cluster.SparkVersion,
		SubmissionID:       app.ID,
		Success:            true,
	})
}

func (s *SparkServer) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps := s.state.List()
	now := s.state.Now()

	out := make([]models.ApplicationSummary, 0, len(apps))
	for i := range apps {
		out = append(out, apps[i].Summary(now))
	}
	s.sendJSON(w, http.StatusOK, out)
}

func (s *SparkServer) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.state.Get(r.PathValue("id"))
	if err != nil {
		s.sendApplicationError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, app.Summary(s.state.Now()))
}

func (s *SparkServer) handleApplicationJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.state.JobsFor(r.PathValue("id"))
	if err != nil {
		s.sendApplicationError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, jobs)
}

func (s *SparkServer) handleApplicationStages(w http.ResponseWriter, r *http.Request) {
	stages, err := s.state.StagesFor(r.PathValue("id"))
	if err != nil {
		s.sendApplicationError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, stages)
}

func (s *SparkServer) handleApplicationExecutors(w http.ResponseWriter, r *http.Request) {
	executors, err := s.state.ExecutorsFor(r.PathValue("id"))
	if err != nil {
		s.sendApplicationError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, executors)
}

func (s *SparkServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, models.ServiceHealth{
		Status:  "healthy",
		Service: "spark-simulator",
	})
}

// sendSubmissionError answers the submission API error shape
func (s *SparkServer) sendSubmissionError(w http.ResponseWriter, err error) {
	if errors.Is(err, sparksim.ErrNotFound) {
		s.sendJSON(w, http.StatusNotFound, models.SubmissionErrorResponse{
			Success: false,
			Message: "Submission not found",
		})
		return
	}
	s.logger.Error("Submission request failed", zap.Error(err))
	s.sendJSON(w, http.StatusInternalServerError, models.SubmissionErrorResponse{
		Success: false,
		Message: err.Error(),
	})
}

// sendApplicationError answers the UI API error shape
func (s *SparkServer) sendApplicationError(w http.ResponseWriter, err error) {
	if errors.Is(err, sparksim.ErrNotFound) {
		s.sendJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Application not found"})
		return
	}
	s.logger.Error("Application request failed", zap.Error(err))
	s.sendJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
}
