package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/logger"
	"github.com/mtr002/Job-Client/internal/master"
)

const CorrelationHeader = "X-Correlation-ID"

var json = sonic.ConfigStd

type correlationKey struct{}

func AddRoutes(mux *http.ServeMux, service string, manager *master.Manager, checks map[string]ReadinessCheck) {
	mux.HandleFunc("/jobs", correlationMiddleware(handleJobs(manager)))
	mux.HandleFunc("/jobs/", correlationMiddleware(handleJobByID(manager)))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", HandleHealth(service))
	mux.HandleFunc("/health/ready", HandleReadiness(service, checks))
	mux.HandleFunc("/health/live", HandleLiveness(service))
}

func correlationMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(CorrelationHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set(CorrelationHeader, correlationID)
		ctx := context.WithValue(r.Context(), correlationKey{}, correlationID)
		next(w, r.WithContext(ctx))
	}
}

func handleJobs(manager *master.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := getCorrelationID(r.Context())
		log := logger.WithCorrelationID(correlationID)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Received request")

		switch r.Method {
		case http.MethodGet:
			handleListJobs(w, manager)
		case http.MethodPost:
			handleCreateJob(w, r, manager, correlationID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func handleJobByID(manager *master.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/jobs/")
		if path == "" {
			http.Error(w, "Job ID is required", http.StatusBadRequest)
			return
		}
		jobID, err := strconv.ParseInt(path, 10, 64)
		if err != nil {
			http.Error(w, "Job ID must be an integer", http.StatusBadRequest)
			return
		}

		correlationID := getCorrelationID(r.Context())
		switch r.Method {
		case http.MethodGet:
			handleGetJob(w, jobID, manager, correlationID)
		case http.MethodDelete:
			handleCancelJob(w, jobID, manager, correlationID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type createJobRequest struct {
	ID      int64             `json:"id"`
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Payload string            `json:"payload"`
	Config  map[string]string `json:"config"`
}

func handleCreateJob(w http.ResponseWriter, r *http.Request, manager *master.Manager, correlationID string) {
	log := logger.WithCorrelationID(correlationID)

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error().Err(err).Msg("Invalid JSON request")
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	config := make(map[string]string, len(req.Config)+2)
	for k, v := range req.Config {
		config[k] = v
	}
	if req.Type != "" {
		config["type"] = req.Type
	}
	if req.Payload != "" {
		config["payload"] = req.Payload
	}

	desc, err := interfaces.NewJobDescription(req.ID, req.Name, config)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid job description")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, err := desc.Serialize()
	if err != nil {
		log.Error().Err(err).Msg("Failed to serialize job description")
		http.Error(w, "Failed to submit job", http.StatusInternalServerError)
		return
	}

	if err := manager.SubmitJob(desc.ID(), info); err != nil {
		log.Warn().Int64("job_id", desc.ID()).Err(err).Msg("Job rejected")
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, master.ErrDuplicateJob):
			code = http.StatusConflict
		case errors.Is(err, master.ErrQueueFull), errors.Is(err, master.ErrClosed):
			code = http.StatusServiceUnavailable
		}
		http.Error(w, "Failed to submit job: "+err.Error(), code)
		return
	}

	job, err := manager.GetJob(desc.ID())
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, job)
	log.Info().Int64("job_id", job.ID).Msg("Job submitted successfully")
}

func handleGetJob(w http.ResponseWriter, jobID int64, manager *master.Manager, correlationID string) {
	log := logger.WithCorrelationID(correlationID)

	job, err := manager.GetJob(jobID)
	if err != nil {
		log.Warn().Int64("job_id", jobID).Msg("Job not found")
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func handleCancelJob(w http.ResponseWriter, jobID int64, manager *master.Manager, correlationID string) {
	log := logger.WithCorrelationID(correlationID)

	if err := manager.CancelJob(jobID); err != nil {
		if errors.Is(err, master.ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		log.Warn().Int64("job_id", jobID).Err(err).Msg("Failed to cancel job")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	job, err := manager.GetJob(jobID)
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func handleListJobs(w http.ResponseWriter, manager *master.Manager) {
	jobs := manager.GetAllJobs()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func getCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}
