package api

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/sensorboard/internal/adapters/graph"
	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/internal/domain/window"
	"github.com/okian/sensorboard/pkg/logger"
)

type readingView struct {
	Value string
	Mode  string
	At    string
}

func newReadingView(r model.Reading) *readingView {
	mode := "n/a"
	if r.Mode != nil {
		mode = strconv.Itoa(int(*r.Mode))
	}
	return &readingView{Value: fmt.Sprintf("%.2f", r.Value), Mode: mode, At: stamp(r.Timestamp)}
}

type dashboardView struct {
	Latest       *readingView
	DailyAverage string
	Trend        string
	TrendUp      bool
	Graph        template.URL
	Now          string
}

type chartView struct {
	Title string
	URL   string
}

type galleryView struct {
	Latest *readingView
	Charts []chartView
	Now    string
}

type errorView struct {
	Status  string
	Message string
}

func stamp(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") + " UTC" }

// handleDashboard handles GET /: latest reading, daily average, trend and an
// embedded 24 hour graph.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.dashboard"
	ctx := r.Context()

	st, err := s.deps.Stats(ctx, window.Day)
	if err != nil {
		s.renderError(w, r, Wrap(op, err))
		return
	}
	view := dashboardView{Now: stamp(s.deps.Now())}
	if st.Latest != nil {
		view.Latest = newReadingView(*st.Latest)
	}
	if st.DailyAverage != nil {
		view.DailyAverage = fmt.Sprintf("%.2f", *st.DailyAverage)
	}
	if st.TrendPercent != nil {
		view.Trend = fmt.Sprintf("%+.1f%%", *st.TrendPercent)
		view.TrendUp = *st.TrendPercent >= 0
	}

	chart, _ := graph.ChartFor(window.Day)
	readings, err := s.deps.Query(ctx, window.Spec{Window: window.Day})
	if err != nil {
		s.renderError(w, r, Wrap(op, err))
		return
	}
	if enc, err := graph.EmbeddedPNG(chart, window.Day.Range(s.deps.Now()), readings); err != nil {
		s.log.Warn(ctx, "embedded graph failed", logger.Error(err))
	} else {
		view.Graph = template.URL("data:image/png;base64," + enc) //nolint:gosec // base64 output of our own renderer
	}

	s.render(w, r, http.StatusOK, "index.html", view)
}

// handleGallery handles GET /graph, the public gallery page. The images
// themselves require a viewer login.
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	const op = "api.graph"

	view := galleryView{Now: stamp(s.deps.Now())}
	latest, ok, err := s.deps.Latest(r.Context())
	if err != nil {
		s.renderError(w, r, Wrap(op, err))
		return
	}
	if ok {
		view.Latest = newReadingView(latest)
	}
	for _, c := range graph.Charts() {
		view.Charts = append(view.Charts, chartView{Title: c.Title, URL: "/graph/" + c.File()})
	}
	s.render(w, r, http.StatusOK, "graphs.html", view)
}

// handleGraphFile handles GET /graph/{file}, rendering the PNG on demand.
func (s *Server) handleGraphFile(w http.ResponseWriter, r *http.Request) {
	const op = "api.graph_file"

	chart, err := graph.ParseFile(mux.Vars(r)["file"])
	if err != nil {
		s.log.Warn(r.Context(), "invalid graph filename requested", logger.String("file", mux.Vars(r)["file"]))
		s.renderError(w, r, Wrap(op, err))
		return
	}

	now := s.deps.Now()
	readings, err := s.deps.Query(r.Context(), window.Spec{Window: chart.Window})
	if err != nil {
		s.renderError(w, r, Wrap(op, err))
		return
	}
	var buf bytes.Buffer
	if err := graph.Render(&buf, chart, chart.Window.Range(now), readings); err != nil {
		s.renderError(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// render executes a page template into a buffer first so a template failure
// still produces a clean error response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error(r.Context(), "template render failed", logger.String("template", name), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError answers an HTML route with the error page.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, _, msg := classify(err)
	s.logFailure(r, status, err)
	s.render(w, r, status, "error.html", errorView{Status: strconv.Itoa(status) + " " + http.StatusText(status), Message: msg})
}
