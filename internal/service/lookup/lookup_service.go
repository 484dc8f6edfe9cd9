package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/Domenick1991/jcsyfill/internal/metrics"
	"github.com/Domenick1991/jcsyfill/internal/status"
	"go.uber.org/zap"
)

type LookupUseCase interface {
	Resolve(ctx context.Context, q status.Query) (*domain.LookupResult, error)
	ResolveOn(ctx context.Context, q status.Query, offset int) (*domain.LookupResult, error)
}

type Cache interface {
	GetLookup(ctx context.Context, source, code string, date time.Time) (*domain.FlightTimes, bool, error)
	SetLookup(ctx context.Context, source, code string, date time.Time, times *domain.FlightTimes) error
}

type LookupService struct {
	sources     []status.Source
	cache       Cache
	previousDay bool
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

type Option func(*LookupService)

// WithPreviousDay makes Resolve retry each source on the day before the
// query date when the query date itself gives nothing.
func WithPreviousDay(enabled bool) Option {
	return func(s *LookupService) {
		s.previousDay = enabled
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LookupService) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *LookupService) {
		s.now = now
	}
}

// NewLookupService takes the sources in the order they should be tried.
// cache may be nil.
func NewLookupService(sources []status.Source, cache Cache, logger *zap.Logger, opts ...Option) *LookupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LookupService{
		sources:     sources,
		cache:       cache,
		previousDay: true,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve tries each source on the query date and then, if enabled, on the
// previous day. The first source that returns times wins. When nothing is
// found the attempts are still returned alongside ErrNoResult.
func (s *LookupService) Resolve(ctx context.Context, q status.Query) (*domain.LookupResult, error) {
	offsets := []int{0}
	if s.previousDay {
		offsets = append(offsets, -1)
	}

	res := &domain.LookupResult{}
	for _, src := range s.sources {
		for _, off := range offsets {
			found, err := s.attempt(ctx, src, q, off, res)
			if err != nil {
				return res, err
			}
			if found {
				return res, nil
			}
		}
	}
	return res, fmt.Errorf("%s on %s: %w", q.Code(), q.Date.Format("2006-01-02"), domain.ErrNoResult)
}

// ResolveOn searches every source on the query date shifted by offset days.
func (s *LookupService) ResolveOn(ctx context.Context, q status.Query, offset int) (*domain.LookupResult, error) {
	res := &domain.LookupResult{}
	for _, src := range s.sources {
		found, err := s.attempt(ctx, src, q, offset, res)
		if err != nil {
			return res, err
		}
		if found {
			return res, nil
		}
	}
	date := q.Date.AddDate(0, 0, offset)
	return res, fmt.Errorf("%s on %s: %w", q.Code(), date.Format("2006-01-02"), domain.ErrNoResult)
}

// attempt records one snapshot in res. It only returns an error when ctx is
// done; source failures are recorded and logged.
func (s *LookupService) attempt(ctx context.Context, src status.Source, q status.Query, offset int, res *domain.LookupResult) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	date := q.Date.AddDate(0, 0, offset)
	snap := domain.Snapshot{Source: src.Name(), SearchDate: date, FetchedAt: s.now().UTC()}

	times, cached, err := s.fromCache(ctx, src.Name(), q.Code(), date)
	if !cached {
		dq := q
		dq.Date = date
		times, err = src.Lookup(ctx, dq)
	}

	switch {
	case err == nil && times != nil && !times.Empty():
		snap.Found = true
		snap.Times = *times
		s.metrics.Lookup(src.Name(), "found")
	case err == nil || errors.Is(err, status.ErrNotFound):
		times = nil
		snap.Error = status.ErrNotFound.Error()
		s.metrics.Lookup(src.Name(), "not_found")
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		snap.Error = err.Error()
		s.metrics.Lookup(src.Name(), "error")
		s.logger.Warn("status lookup failed",
			zap.String("source", src.Name()),
			zap.String("flight", q.Code()),
			zap.Time("date", date),
			zap.Error(err))
	}
	res.Attempts = append(res.Attempts, snap)

	if !cached && (err == nil || errors.Is(err, status.ErrNotFound)) {
		s.toCache(ctx, src.Name(), q.Code(), date, times)
	}
	if !snap.Found {
		return false, nil
	}

	res.Times = snap.Times
	res.Source = src.Name()
	res.SearchDate = date
	res.DayOffset = offset
	return true, nil
}

func (s *LookupService) fromCache(ctx context.Context, source, code string, date time.Time) (*domain.FlightTimes, bool, error) {
	if s.cache == nil {
		return nil, false, nil
	}
	times, ok, err := s.cache.GetLookup(ctx, source, code, date)
	if err != nil {
		s.logger.Debug("lookup cache read failed", zap.Error(err))
		return nil, false, nil
	}
	return times, ok, nil
}

func (s *LookupService) toCache(ctx context.Context, source, code string, date time.Time, times *domain.FlightTimes) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetLookup(ctx, source, code, date, times); err != nil {
		s.logger.Debug("lookup cache write failed", zap.Error(err))
	}
}

var _ LookupUseCase = (*LookupService)(nil)
