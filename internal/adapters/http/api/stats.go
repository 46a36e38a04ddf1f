package api

import (
	"net/http"
	"strings"

	"github.com/okian/sensorboard/internal/domain/window"
)

// handleStats handles GET /stats[?window=].
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats"

	win := window.Day
	if raw := strings.TrimSpace(r.URL.Query().Get("window")); raw != "" {
		var err error
		if win, err = window.Parse(raw); err != nil {
			s.fail(w, r, Wrap(op, err))
			return
		}
	}

	st, err := s.deps.Stats(r.Context(), win)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
