// Package health serves dependency-aware health checks for the HTTP services.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Response represents the health check response
type Response struct {
	Status   string            `json:"status"` // "healthy" or "unhealthy"
	Checks   map[string]Check  `json:"checks"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Check represents a single health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler creates an HTTP handler that pings each named dependency and
// reports 503 if any fails.
func Handler(service, version string, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		response := Response{
			Status: "healthy",
			Checks: make(map[string]Check),
			Metadata: map[string]string{
				"service": service,
				"version": version,
			},
		}

		for name, dep := range deps {
			check := ping(ctx, dep)
			response.Checks[name] = check
			if check.Status != "pass" {
				response.Status = "unhealthy"
			}
		}

		statusCode := http.StatusOK
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(response)
	}
}

func ping(ctx context.Context, dep Pinger) Check {
	if err := dep.Ping(ctx); err != nil {
		return Check{
			Status:  "fail",
			Message: err.Error(),
		}
	}
	return Check{
		Status: "pass",
	}
}
