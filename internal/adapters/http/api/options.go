package api

import (
	"io"

	"github.com/okian/sensorboard/internal/auth"
	"github.com/okian/sensorboard/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator sets the credential check for protected routes. Without
// one every protected request is refused.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(s *Server) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithAllowList restricts protected routes to the listed client networks.
func WithAllowList(l *auth.AllowList) Option {
	return func(s *Server) { s.allow = l }
}

// WithRateLimiter limits protected requests per client IP.
func WithRateLimiter(l *auth.RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithLogger sets the application logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAccessLog writes a combined-format access log to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) { s.accessLog = w }
}

// WithTrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
// Enable it only behind a proxy that sets those headers.
func WithTrustProxy(trust bool) Option {
	return func(s *Server) { s.trustProxy = trust }
}
