package api

import (
	"net/http"
	"time"
)

// ReadinessCheck reports whether a dependency of the service is usable.
type ReadinessCheck func() bool

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

type ReadinessResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

func HandleHealth(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Service:   service,
		})
	}
}

func HandleReadiness(service string, checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		response := ReadinessResponse{
			Status:    "ready",
			Timestamp: time.Now(),
			Service:   service,
			Checks:    make(map[string]string, len(checks)),
		}
		code := http.StatusOK
		for name, check := range checks {
			if check() {
				response.Checks[name] = "connected"
				continue
			}
			response.Checks[name] = "disconnected"
			response.Status = "not ready"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, response)
	}
}

func HandleLiveness(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "alive",
			Timestamp: time.Now(),
			Service:   service,
		})
	}
}
