package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/relvacode/iso8601"

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/internal/domain/window"
)

type periodResponse struct {
	Period   window.Window   `json:"period"`
	Hours    int             `json:"hours"`
	Count    int             `json:"count"`
	Readings []model.Reading `json:"readings"`
}

type rangeResponse struct {
	Start    *time.Time      `json:"start"`
	End      *time.Time      `json:"end"`
	Count    int             `json:"count"`
	Readings []model.Reading `json:"readings"`
}

// handleReadings handles GET /readings?page=&per_page=.
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	const op = "api.readings"
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), "page", 1)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	perPage, err := intParam(q.Get("per_page"), "per_page", 0)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}

	p, err := s.deps.Page(r.Context(), page, perPage)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handlePeriod handles GET /readings/{period}[?m=].
func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	const op = "api.readings_period"

	win, err := window.Parse(mux.Vars(r)["period"])
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	mode, err := model.ParseMode(r.URL.Query().Get("m"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}

	readings, err := s.deps.Query(r.Context(), window.Spec{Window: win, Mode: mode})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, periodResponse{Period: win, Hours: win.Hours(), Count: len(readings), Readings: readings})
}

// handleRange handles GET /readings/range?start=&end=[&m=]. Either bound may
// be omitted.
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	const op = "api.readings_range"
	q := r.URL.Query()

	start, err := timeParam(q.Get("start"), "start")
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	end, err := timeParam(q.Get("end"), "end")
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	rg, err := window.NewRange(start, end)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	mode, err := model.ParseMode(q.Get("m"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}

	readings, err := s.deps.Query(r.Context(), window.Spec{Range: rg, Mode: mode})
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	resp := rangeResponse{Count: len(readings), Readings: readings}
	if !rg.Start.IsZero() {
		resp.Start = &rg.Start
	}
	if !rg.End.IsZero() {
		resp.End = &rg.End
	}
	writeJSON(w, http.StatusOK, resp)
}

func intParam(raw, name string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", model.ErrValidation, name)
	}
	return n, nil
}

func timeParam(raw, name string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := iso8601.ParseString(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an ISO 8601 timestamp", model.ErrValidation, name)
	}
	return t.UTC(), nil
}
