package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/sensorboard/pkg/logger"
)

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth handles GET /healthz. It answers 503 when the store is
// unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Ping(ctx); err != nil {
		s.log.Warn(r.Context(), "health check failed", logger.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
