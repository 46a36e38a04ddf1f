package api

import (
	"net/http"

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/pkg/logger"
)

type measureResponse struct {
	Message string        `json:"message"`
	Reading model.Reading `json:"reading"`
}

// handleMeasure handles GET /measure?reading=<float>&m=<0|1>.
func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	const op = "api.measure"
	q := r.URL.Query()

	value, err := model.ParseValue(q.Get("reading"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	mode, err := model.ParseMode(q.Get("m"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}

	stored, err := s.deps.Ingest(r.Context(), model.Reading{Value: value, Mode: mode, Source: clientIP(r)})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}

	s.log.Info(r.Context(), "reading added",
		logger.Int64("id", stored.ID),
		logger.Float64("value", stored.Value),
		logger.String("source", stored.Source),
	)
	writeJSON(w, http.StatusCreated, measureResponse{Message: "Reading saved successfully", Reading: stored})
}
