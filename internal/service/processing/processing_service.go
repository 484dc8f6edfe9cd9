package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/Domenick1991/jcsyfill/internal/jcsy"
	"github.com/Domenick1991/jcsyfill/internal/kafka"
	"github.com/Domenick1991/jcsyfill/internal/metrics"
	"github.com/Domenick1991/jcsyfill/internal/render"
	"github.com/Domenick1991/jcsyfill/internal/repository"
	"github.com/Domenick1991/jcsyfill/internal/service/lookup"
	"github.com/Domenick1991/jcsyfill/internal/status"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidList = errors.New("invalid list")
	ErrListBusy    = errors.New("list is already being processed")
)

type ProcessUseCase interface {
	Process(ctx context.Context, text string) (*Outcome, error)
	Refresh(ctx context.Context, listID int64) (*Outcome, error)
	RefreshUnresolved(ctx context.Context, since time.Time) (int, error)
}

type Locker interface {
	AcquireListLock(ctx context.Context, code string, date time.Time, ttl time.Duration) (bool, error)
	ReleaseListLock(ctx context.Context, code string, date time.Time) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// ProgressFunc is called once per finished row. Calls are serialized.
type ProgressFunc func(done, total int, row domain.QueryFlight)

type Outcome struct {
	List     *domain.ListFlight `json:"list"`
	Text     string             `json:"text"`
	Skips    []jcsy.Skip        `json:"skips,omitempty"`
	Updated  int                `json:"updated"`
	NoResult int                `json:"no_result"`
	Failed   int                `json:"failed"`
	Pending  int                `json:"pending"`
}

type Processor struct {
	repo         repository.ListRepository
	lookup       lookup.LookupUseCase
	parser       *jcsy.Parser
	locker       Locker
	producer     Producer
	resultsTopic string
	workers      int
	lockTTL      time.Duration
	progress     ProgressFunc
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

type Option func(*Processor)

func WithLocker(l Locker) Option {
	return func(p *Processor) {
		p.locker = l
	}
}

func WithProducer(producer Producer, resultsTopic string) Option {
	return func(p *Processor) {
		p.producer = producer
		p.resultsTopic = resultsTopic
	}
}

func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithLockTTL(ttl time.Duration) Option {
	return func(p *Processor) {
		p.lockTTL = ttl
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(p *Processor) {
		p.progress = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

func NewProcessor(repo repository.ListRepository, lookupUC lookup.LookupUseCase, parser *jcsy.Parser, logger *zap.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = jcsy.NewParser(nil)
	}
	p := &Processor{
		repo:    repo,
		lookup:  lookupUC,
		parser:  parser,
		workers: 4,
		lockTTL: 5 * time.Minute,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process parses text, stores the list and resolves every row. Row failures
// are recorded on the row; only input without a header, storage errors and
// a busy lock fail the call.
func (p *Processor) Process(ctx context.Context, text string) (*Outcome, error) {
	start := p.now()

	list, skips, err := jcsy.Build(p.parser.Parse(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidList, err)
	}
	for _, s := range skips {
		p.logger.Info("row skipped", zap.Int("line", s.Index), zap.String("reason", s.Reason))
	}
	list.RawText = text

	release, err := p.lock(ctx, list)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := p.repo.SaveList(ctx, list); err != nil {
		return nil, fmt.Errorf("save list: %w", err)
	}
	p.logger.Info("list stored",
		zap.Int64("list_id", list.ID),
		zap.String("flight", list.FlightCode()),
		zap.Int("rows", len(list.Rows)))

	p.resolveHeader(ctx, list)
	p.resolveRows(ctx, list)

	out, err := p.finish(ctx, list, start)
	if err != nil {
		return nil, err
	}
	out.Skips = skips
	return out, nil
}

// Refresh resolves the rows of a stored list that are not yet updated and
// renders the list again.
func (p *Processor) Refresh(ctx context.Context, listID int64) (*Outcome, error) {
	start := p.now()

	list, err := p.repo.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	release, err := p.lock(ctx, list)
	if err != nil {
		return nil, err
	}
	defer release()

	if list.Times.Empty() {
		p.resolveHeader(ctx, list)
	}
	p.resolveRows(ctx, list)
	return p.finish(ctx, list, start)
}

// RefreshUnresolved refreshes every list dated on or after since that still
// has rows without a result. It returns the number of lists refreshed.
func (p *Processor) RefreshUnresolved(ctx context.Context, since time.Time) (int, error) {
	rows, err := p.repo.UnresolvedRows(ctx, since)
	if err != nil {
		return 0, err
	}

	var ids []int64
	seen := make(map[int64]bool)
	for _, r := range rows {
		if !seen[r.ListID] {
			seen[r.ListID] = true
			ids = append(ids, r.ListID)
		}
	}

	var errs []error
	refreshed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := p.Refresh(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("refresh list %d: %w", id, err))
			continue
		}
		refreshed++
	}
	return refreshed, errors.Join(errs...)
}

func (p *Processor) lock(ctx context.Context, list *domain.ListFlight) (func(), error) {
	if p.locker == nil {
		return func() {}, nil
	}
	ok, err := p.locker.AcquireListLock(ctx, list.FlightCode(), list.FlightDate, p.lockTTL)
	if err != nil {
		p.logger.Warn("list lock unavailable", zap.String("flight", list.FlightCode()), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", list.FlightCode(), list.FlightDate.Format("2006-01-02"), ErrListBusy)
	}
	return func() {
		if err := p.locker.ReleaseListLock(context.WithoutCancel(ctx), list.FlightCode(), list.FlightDate); err != nil {
			p.logger.Warn("release list lock", zap.Error(err))
		}
	}, nil
}

func (p *Processor) resolveHeader(ctx context.Context, list *domain.ListFlight) {
	// Rows on an arrival list feed the header flight, which leaves the list
	// airport. On a departure list the header flight lands there.
	q := status.Query{Airline: list.Airline, FlightNumber: list.FlightNumber, Date: list.FlightDate}
	if list.Direction == domain.DirectionArrival {
		q.DepartureAirport = list.Airport
	} else {
		q.ArrivalAirport = list.Airport
	}

	res, err := p.lookup.Resolve(ctx, q)
	if err != nil {
		p.logger.Warn("header flight not resolved", zap.String("flight", list.FlightCode()), zap.Error(err))
		return
	}
	list.Times = res.Times
	if err := p.repo.UpdateHeaderTimes(context.WithoutCancel(ctx), list.ID, list.Times); err != nil {
		p.logger.Error("store header times", zap.Int64("list_id", list.ID), zap.Error(err))
	}
}

func (p *Processor) resolveRows(ctx context.Context, list *domain.ListFlight) {
	var pending []int
	for i := range list.Rows {
		if list.Rows[i].Status != domain.RowStatusUpdated {
			pending = append(pending, i)
		}
	}

	var (
		mu   sync.Mutex
		done int
	)
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for _, i := range pending {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			p.resolveRow(ctx, list, i)

			mu.Lock()
			defer mu.Unlock()
			done++
			if p.progress != nil {
				p.progress(done, len(pending), list.Rows[i])
			}
			return nil
		})
	}
	_ = g.Wait()
}

// resolveRow owns list.Rows[i] for the duration of the call.
func (p *Processor) resolveRow(ctx context.Context, list *domain.ListFlight, i int) {
	row := &list.Rows[i]
	store := context.WithoutCancel(ctx)

	row.Status = domain.RowStatusProcessing
	p.updateRow(store, row)

	q := status.Query{
		Airline:          row.Airline,
		FlightNumber:     row.FlightNumber,
		Date:             list.FlightDate,
		DepartureAirport: row.DepartureAirport,
		ArrivalAirport:   row.ArrivalAirport,
	}
	res, err := p.resolve(ctx, q, connectionOffset(list, row))

	if res != nil {
		p.storeSnapshots(store, row.ID, res.Attempts)
	}
	if err != nil && ctx.Err() != nil {
		row.Status = domain.RowStatusPending
		p.updateRow(store, row)
		return
	}

	row.QueriedAt = p.now().UTC()
	switch {
	case err == nil:
		std := row.Times.STD
		row.Times = res.Times
		if row.Times.STD == nil && std != nil {
			shifted := std.AddDate(0, 0, res.DayOffset)
			row.Times.STD = &shifted
		}
		row.Delayed = row.Times.Delayed(list.Direction)
		row.Source = res.Source
		row.DayOffset = res.DayOffset
		row.FlightDate = res.SearchDate
		row.Status = domain.RowStatusUpdated
	case errors.Is(err, domain.ErrNoResult) && !allFailed(res):
		row.Status = domain.RowStatusNoResult
	default:
		row.Status = domain.RowStatusError
		p.logger.Warn("row lookup failed", zap.String("flight", row.FlightCode()), zap.Error(err))
	}
	p.updateRow(store, row)
	p.metrics.Row(string(row.Status))
}

// resolve searches the connection day first when one applies and falls back
// to the regular search when nothing is found there.
func (p *Processor) resolve(ctx context.Context, q status.Query, offset int) (*domain.LookupResult, error) {
	if offset == 0 {
		return p.lookup.Resolve(ctx, q)
	}
	res, err := p.lookup.ResolveOn(ctx, q, offset)
	if !errors.Is(err, domain.ErrNoResult) {
		return res, err
	}
	var attempts []domain.Snapshot
	if res != nil {
		attempts = res.Attempts
	}
	res, err = p.lookup.Resolve(ctx, q)
	if res != nil {
		res.Attempts = append(attempts, res.Attempts...)
	}
	return res, err
}

// connectionOffset is -1 when a row on an arrival list is scheduled after
// the header flight leaves, and +1 when a row on a departure list is
// scheduled before the header flight arrives.
func connectionOffset(list *domain.ListFlight, row *domain.QueryFlight) int {
	ref := list.Reference()
	if ref == nil || row.Times.STD == nil {
		return 0
	}
	switch {
	case list.Direction == domain.DirectionArrival && row.Times.STD.After(*ref):
		return -1
	case list.Direction == domain.DirectionDeparture && row.Times.STD.Before(*ref):
		return 1
	}
	return 0
}

// allFailed reports whether every attempt ended in an error rather than a
// plain miss.
func allFailed(res *domain.LookupResult) bool {
	if res == nil || len(res.Attempts) == 0 {
		return false
	}
	for _, a := range res.Attempts {
		if a.Error == "" || a.Error == status.ErrNotFound.Error() {
			return false
		}
	}
	return true
}

func (p *Processor) updateRow(ctx context.Context, row *domain.QueryFlight) {
	if err := p.repo.UpdateRow(ctx, row); err != nil {
		p.logger.Error("store row", zap.Int64("row_id", row.ID), zap.Error(err))
	}
}

func (p *Processor) storeSnapshots(ctx context.Context, rowID int64, attempts []domain.Snapshot) {
	for _, a := range attempts {
		a.QueryFlightID = rowID
		if err := p.repo.AddSnapshot(ctx, &a); err != nil {
			p.logger.Error("store snapshot", zap.Int64("row_id", rowID), zap.Error(err))
		}
	}
}

func (p *Processor) finish(ctx context.Context, list *domain.ListFlight, start time.Time) (*Outcome, error) {
	text := render.Annotate(list.RawText, list)
	if err := p.repo.SetProcessedText(context.WithoutCancel(ctx), list.ID, text); err != nil {
		return nil, fmt.Errorf("store processed text: %w", err)
	}
	list.ProcessedText = text
	list.ProcessedAt = p.now().UTC()

	out := &Outcome{List: list, Text: text}
	for _, r := range list.Rows {
		switch r.Status {
		case domain.RowStatusUpdated:
			out.Updated++
		case domain.RowStatusNoResult:
			out.NoResult++
		case domain.RowStatusError:
			out.Failed++
		default:
			out.Pending++
		}
	}

	p.publish(ctx, list, out)
	p.metrics.ObserveList(p.now().Sub(start))
	p.logger.Info("list processed",
		zap.Int64("list_id", list.ID),
		zap.String("flight", list.FlightCode()),
		zap.Int("updated", out.Updated),
		zap.Int("no_result", out.NoResult),
		zap.Int("failed", out.Failed),
		zap.Int("pending", out.Pending))
	return out, nil
}

func (p *Processor) publish(ctx context.Context, list *domain.ListFlight, out *Outcome) {
	if p.producer == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	date := list.FlightDate.Format("2006-01-02")
	key := list.FlightCode() + "_" + date

	event := kafka.ListEvent{
		Type:        kafka.EventListProcessed,
		ListID:      list.ID,
		Code:        list.FlightCode(),
		Date:        date,
		Direction:   string(list.Direction),
		Rows:        len(list.Rows),
		Updated:     out.Updated,
		Text:        out.Text,
		ProcessedAt: list.ProcessedAt,
	}
	if err := p.producer.Publish(ctx, p.resultsTopic, key, event); err != nil {
		p.logger.Warn("publish list event", zap.String("key", key), zap.Error(err))
	}

	for _, r := range list.Rows {
		if r.Status != domain.RowStatusUpdated {
			continue
		}
		rowEvent := kafka.RowEvent{
			Type:      kafka.EventRowResolved,
			ListID:    list.ID,
			RowID:     r.ID,
			Code:      r.FlightCode(),
			Airport:   r.Airport(list.Direction),
			Status:    string(r.Status),
			Source:    r.Source,
			DayOffset: r.DayOffset,
			Time:      r.Times.Best(list.Direction),
			Delayed:   r.Delayed,
		}
		if err := p.producer.Publish(ctx, p.resultsTopic, key, rowEvent); err != nil {
			p.logger.Warn("publish row event", zap.String("key", key), zap.Error(err))
		}
	}
}

var _ ProcessUseCase = (*Processor)(nil)
