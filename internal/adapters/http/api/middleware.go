package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/sensorboard/internal/auth"
	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/pkg/logger"
	"github.com/okian/sensorboard/pkg/metrics"
)

// authRealm is announced in WWW-Authenticate challenges.
const authRealm = `Basic realm="Sensor API"`

// instrument records request count and latency for endpoint, plus an error
// counter keyed by failure kind for 4xx and 5xx answers.
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		code := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, float64(time.Since(start).Microseconds())/1000)
		if kind := failureKind(rec.status); kind != "" {
			metrics.RecordErrorByComponent("http_"+endpoint, kind)
		}
	}
}

// failureKind labels a status for the error counter; "" for successes.
func failureKind(status int) string {
	switch {
	case status < http.StatusBadRequest:
		return ""
	case status >= http.StatusInternalServerError:
		return "server_error"
	}
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limit"
	default:
		return "client_error"
	}
}

// statusRecorder remembers the status a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

// requestIDMiddleware propagates X-Request-ID, minting one when absent.
// The id rides along on every log line written with the request context.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logger.WithFields(r.Context(), logger.String("request_id", id))))
	})
}

// clientIP returns the host part of the request's remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// guard applies the allow-list, the rate limit and basic authentication
// in that order, then requires the caller to hold role. html selects an
// error page instead of a JSON body.
func (s *Server) guard(role auth.Role, html bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		deny := func(reason string, err error) {
			metrics.RecordAuthFailure(reason)
			s.log.Warn(r.Context(), "request denied",
				logger.String("reason", reason),
				logger.String("ip", ip),
				logger.String("path", r.URL.Path),
			)
			if html {
				s.renderError(w, r, err)
				return
			}
			s.fail(w, r, err)
		}

		if !s.allow.Allowed(ip) {
			deny("ip_denied", NewKind("api.guard", model.ErrForbidden, "Access denied"))
			return
		}
		if !s.limiter.Allow(ip) {
			deny("rate_limited", NewKind("api.guard", model.ErrRateLimited, "Too many requests"))
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !s.auth.Verify(user, pass) {
			reason := "bad_credentials"
			if !ok {
				reason = "missing_credentials"
			}
			w.Header().Set("WWW-Authenticate", authRealm)
			deny(reason, NewKind("api.guard", model.ErrAuth, "Authentication required"))
			return
		}
		if !auth.RoleOf(s.auth, user).Allows(role) {
			deny("forbidden", NewKind("api.guard", model.ErrForbidden, "Insufficient permissions"))
			return
		}
		next(w, r)
	}
}

// recoveryLogger routes gorilla's panic reports to the application logger.
type recoveryLogger struct {
	log logger.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	metrics.RecordErrorByComponent("http", "panic")
	l.log.Error(context.Background(), "panic recovered", logger.String("panic", fmt.Sprint(v...)))
}
