package api

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

// Health reports liveness and seconds since started.
func Health(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, HealthResponse{
			Success:   true,
			Message:   "API is running",
			Timestamp: time.Now().UTC(),
			Uptime:    time.Since(started).Seconds(),
		})
	}
}
