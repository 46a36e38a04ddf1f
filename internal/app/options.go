package service

import (
	"time"

	"github.com/okian/sensorboard/internal/adapters/cache"
	"github.com/okian/sensorboard/internal/adapters/mq/publisher"
	"github.com/okian/sensorboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache installs a latest-reading cache.
func WithCache(c cache.Latest) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithPublisher installs a publisher that receives every stored reading.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides the time source used to resolve windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPaging sets the default and maximum page sizes for Page.
func WithPaging(defaultPerPage, maxPerPage int) Option {
	return func(s *Service) {
		if defaultPerPage > 0 && maxPerPage >= defaultPerPage {
			s.defaultPerPage = defaultPerPage
			s.maxPerPage = maxPerPage
		}
	}
}
