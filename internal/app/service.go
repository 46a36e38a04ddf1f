// Package service provides the core business service behind the HTTP API
// and the admin CLI: ingestion, windowed queries and aggregates.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/sensorboard/internal/adapters/cache"
	"github.com/okian/sensorboard/internal/adapters/mq/publisher"
	"github.com/okian/sensorboard/internal/adapters/repository"
	"github.com/okian/sensorboard/internal/domain/aggregate"
	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/internal/domain/window"
	"github.com/okian/sensorboard/pkg/logger"
	"github.com/okian/sensorboard/pkg/metrics"
)

// Service implements reading ingestion and queries over a Store.
type Service struct {
	// wmu serializes the write path so store order, cache contents and
	// publish order agree.
	wmu sync.Mutex

	store     repository.Store
	cache     cache.Latest
	publisher publisher.Publisher
	logger    logger.Logger
	now       func() time.Time

	defaultPerPage int
	maxPerPage     int
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		cache:          cache.Nop{},
		publisher:      publisher.Nop{},
		logger:         logger.Nop(),
		now:            time.Now,
		defaultPerPage: 100,
		maxPerPage:     1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time { return s.now().UTC() }

// Ingest validates and stores r, then refreshes the latest-reading cache and
// publishes the stored reading. Cache and publish failures are logged and
// counted; they never fail the ingestion.
func (s *Service) Ingest(ctx context.Context, r model.Reading) (model.Reading, error) {
	if err := model.ValidateValue(r.Value); err != nil {
		metrics.RecordReadingRejected("value")
		return model.Reading{}, err
	}
	if err := r.Validate(); err != nil {
		metrics.RecordReadingRejected("mode")
		return model.Reading{}, err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	stored, err := s.store.Append(ctx, r)
	if err != nil {
		metrics.RecordReadingRejected("storage")
		return model.Reading{}, fmt.Errorf("service.ingest: %w", err)
	}
	metrics.RecordReadingIngested(modeLabel(stored.Mode))

	s.refreshCache(ctx, stored)
	if err := s.publisher.Publish(ctx, stored); err != nil {
		metrics.RecordErrorByComponent("publisher", "publish")
		s.logger.Warn(ctx, "publish failed", logger.Int64("id", stored.ID), logger.Error(err))
	}

	s.logger.Debug(ctx, "reading stored",
		logger.Int64("id", stored.ID),
		logger.Float64("value", stored.Value),
		logger.String("source", stored.Source),
	)
	return stored, nil
}

// refreshCache writes stored to the cache unless the cache already holds a
// newer reading (backdated imports must not hide the real latest value).
func (s *Service) refreshCache(ctx context.Context, stored model.Reading) {
	cur, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cache read failed", logger.Error(err))
	}
	if err == nil && ok && stored.Before(cur) {
		return
	}
	if err := s.cache.Set(ctx, stored); err != nil {
		metrics.RecordErrorByComponent("cache", "set")
		s.logger.Warn(ctx, "cache update failed", logger.Int64("id", stored.ID), logger.Error(err))
		return
	}
	metrics.UpdateLatestValue(stored.Value)
}

// Page is one page of readings, newest first.
type Page struct {
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	Total    int             `json:"total"`
	Pages    int             `json:"pages"`
	Readings []model.Reading `json:"readings"`
}

// Page returns readings newest first. perPage <= 0 selects the default and
// larger values are capped. A page past the last one (other than page 1 of
// an empty store) is ErrNotFound.
func (s *Service) Page(ctx context.Context, page, perPage int) (Page, error) {
	if page < 1 {
		return Page{}, fmt.Errorf("%w: page must be a positive integer", model.ErrValidation)
	}
	if perPage <= 0 {
		perPage = s.defaultPerPage
	}
	perPage = min(perPage, s.maxPerPage)

	total, err := s.store.Count(ctx, repository.Filter{})
	if err != nil {
		return Page{}, fmt.Errorf("service.page: %w", err)
	}
	metrics.UpdateRepositoryRecordsTotal(total)

	pages := (total + perPage - 1) / perPage
	if page > 1 && page > pages {
		return Page{}, fmt.Errorf("page %d %w", page, model.ErrNotFound)
	}

	readings, err := s.store.List(ctx, repository.Filter{Desc: true, Offset: (page - 1) * perPage, Limit: perPage})
	if err != nil {
		return Page{}, fmt.Errorf("service.page: %w", err)
	}
	return Page{Page: page, PerPage: perPage, Total: total, Pages: pages, Readings: readings}, nil
}

// Query returns readings selected by spec in ascending timestamp order.
// The window, if any, is resolved against the current time.
func (s *Service) Query(ctx context.Context, spec window.Spec) ([]model.Reading, error) {
	rg := spec.Resolve(s.Now())
	readings, err := s.store.List(ctx, filterFor(rg, spec.Mode))
	if err != nil {
		return nil, fmt.Errorf("service.query: %w", err)
	}
	return readings, nil
}

// Latest returns the most recent reading, consulting the cache first.
// ok is false when no reading exists.
//
// A miss is filled from the store under the write lock, so a concurrent
// Ingest cannot be overwritten in the cache by the older reading.
func (s *Service) Latest(ctx context.Context) (model.Reading, bool, error) {
	r, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cache read failed, using store", logger.Error(err))
	}
	if err == nil && ok {
		return r, true, nil
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	r, err = s.store.Latest(ctx)
	if errors.Is(err, model.ErrNotFound) {
		return model.Reading{}, false, nil
	}
	if err != nil {
		return model.Reading{}, false, fmt.Errorf("service.latest: %w", err)
	}
	s.refreshCache(ctx, r)
	return r, true, nil
}

// DailyAverage returns the mean value over the last 24 hours.
func (s *Service) DailyAverage(ctx context.Context) (float64, bool, error) {
	readings, err := s.Query(ctx, window.Spec{Window: window.Day})
	if err != nil {
		return 0, false, err
	}
	avg, ok := aggregate.Mean(readings)
	return avg, ok, nil
}

// Trend returns the percentage change of the mean over w relative to the
// period of equal length before it.
func (s *Service) Trend(ctx context.Context, w window.Window) (float64, bool, error) {
	now := s.Now()
	current, err := s.store.List(ctx, filterFor(w.Range(now), nil))
	if err != nil {
		return 0, false, fmt.Errorf("service.trend: %w", err)
	}
	prior, err := s.store.List(ctx, filterFor(w.Prior(now), nil))
	if err != nil {
		return 0, false, fmt.Errorf("service.trend: %w", err)
	}
	pct, ok := aggregate.Trend(current, prior)
	return pct, ok, nil
}

// Summary returns distribution statistics over w.
func (s *Service) Summary(ctx context.Context, w window.Window) (aggregate.Summary, error) {
	readings, err := s.Query(ctx, window.Spec{Window: w})
	if err != nil {
		return aggregate.Summary{}, err
	}
	return aggregate.Summarize(readings), nil
}

// Stats bundles the aggregates shown on the dashboard and /stats.
type Stats struct {
	Window       window.Window     `json:"window"`
	Latest       *model.Reading    `json:"latest"`
	DailyAverage *float64          `json:"daily_average"`
	TrendPercent *float64          `json:"trend_percent"`
	Summary      aggregate.Summary `json:"summary"`
}

// Stats gathers every aggregate for w. Missing values are nil.
func (s *Service) Stats(ctx context.Context, w window.Window) (Stats, error) {
	st := Stats{Window: w}

	latest, ok, err := s.Latest(ctx)
	if err != nil {
		return Stats{}, err
	}
	if ok {
		st.Latest = &latest
	}
	if avg, ok, err := s.DailyAverage(ctx); err != nil {
		return Stats{}, err
	} else if ok {
		st.DailyAverage = &avg
	}
	if pct, ok, err := s.Trend(ctx, w); err != nil {
		return Stats{}, err
	} else if ok {
		st.TrendPercent = &pct
	}
	if st.Summary, err = s.Summary(ctx, w); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close releases the publisher, the cache and the store.
func (s *Service) Close() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return errors.Join(s.publisher.Close(), s.cache.Close(), s.store.Close())
}

func filterFor(rg window.Range, mode *model.Mode) repository.Filter {
	return repository.Filter{From: rg.Start, To: rg.End, ToExclusive: rg.OpenEnd, Mode: mode}
}

func modeLabel(m *model.Mode) string {
	if m == nil {
		return "none"
	}
	return strconv.Itoa(int(*m))
}
