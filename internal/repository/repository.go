package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

var ErrNotFound = domain.ErrNotFound

// ListRepository stores JCSY lists (jcsy_flights), their rows
// (query_flights) and every lookup attempt made for a row (lookup_snapshots).
type ListRepository interface {
	Migrate(ctx context.Context) error
	// SaveList upserts on airline, flight number and date and replaces the
	// stored rows with list.Rows. IDs are written back into list.
	SaveList(ctx context.Context, list *domain.ListFlight) error
	GetList(ctx context.Context, id int64) (*domain.ListFlight, error)
	FindList(ctx context.Context, airline, number string, date time.Time) (*domain.ListFlight, error)
	RecentLists(ctx context.Context, limit int) ([]domain.ListFlight, error)
	SearchLists(ctx context.Context, term string, limit int) ([]domain.ListFlight, error)
	UpdateHeaderTimes(ctx context.Context, id int64, times domain.FlightTimes) error
	UpdateRow(ctx context.Context, row *domain.QueryFlight) error
	AddSnapshot(ctx context.Context, s *domain.Snapshot) error
	ListSnapshots(ctx context.Context, queryFlightID int64) ([]domain.Snapshot, error)
	SetProcessedText(ctx context.Context, id int64, text string) error
	// UnresolvedRows returns rows left at no_result or error in lists dated
	// on or after since.
	UnresolvedRows(ctx context.Context, since time.Time) ([]domain.QueryFlight, error)
	DeleteList(ctx context.Context, id int64) error
	Close() error
}

// Open connects to the configured database and creates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (ListRepository, error) {
	var repo ListRepository
	switch cfg.Driver {
	case "sqlite", "sqlite3":
		r, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		repo = r
	case "postgres", "pgx":
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo = NewPGListRepository(pool)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

func schemaStatements(name string) ([]string, error) {
	data, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return nil, err
	}
	var stmts []string
	for _, s := range strings.Split(string(data), ";\n") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}

const listColumns = `id, airline, flight_number, flight_date, airport, direction, std_text,
	std, etd, atd, sta, eta, ata, raw_text, processed_text, processed_at`

const rowColumns = `id, jcsy_flight_id, row_index, line, airline, flight_number, flight_date,
	departure_airport, arrival_airport, std_text, std, etd, atd, sta, eta, ata, delayed,
	booked_non_economy, booked_economy, checked_non_economy, checked_economy, checked_infant,
	bag_pieces, bag_weight, status, source, day_offset, queried_at`

const snapshotColumns = `id, query_flight_id, source, search_date, std, etd, atd, sta, eta, ata,
	found, error, fetched_at`

// Queries use ? placeholders; the postgres repository rebinds them.
const (
	upsertListSQL = `INSERT INTO jcsy_flights (airline, flight_number, flight_date, airport, direction, std_text,
		std, etd, atd, sta, eta, ata, raw_text, processed_text, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (airline, flight_number, flight_date) DO UPDATE SET
			airport = excluded.airport, direction = excluded.direction, std_text = excluded.std_text,
			std = excluded.std, etd = excluded.etd, atd = excluded.atd,
			sta = excluded.sta, eta = excluded.eta, ata = excluded.ata,
			raw_text = excluded.raw_text, processed_text = excluded.processed_text,
			processed_at = excluded.processed_at
		RETURNING id`

	deleteRowsSQL = `DELETE FROM query_flights WHERE jcsy_flight_id = ?`

	insertRowSQL = `INSERT INTO query_flights (jcsy_flight_id, row_index, line, airline, flight_number, flight_date,
		departure_airport, arrival_airport, std_text, std, etd, atd, sta, eta, ata, delayed,
		booked_non_economy, booked_economy, checked_non_economy, checked_economy, checked_infant,
		bag_pieces, bag_weight, status, source, day_offset, queried_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	getListSQL  = `SELECT ` + listColumns + ` FROM jcsy_flights WHERE id = ?`
	findListSQL = `SELECT ` + listColumns + ` FROM jcsy_flights WHERE airline = ? AND flight_number = ? AND flight_date = ?`
	listRowsSQL = `SELECT ` + rowColumns + ` FROM query_flights WHERE jcsy_flight_id = ? ORDER BY row_index`

	recentListsSQL = `SELECT ` + listColumns + ` FROM jcsy_flights ORDER BY flight_date DESC, id DESC LIMIT ?`
	searchListsSQL = `SELECT ` + listColumns + ` FROM jcsy_flights
		WHERE airline || flight_number LIKE ? OR airport LIKE ?
			OR id IN (SELECT jcsy_flight_id FROM query_flights WHERE airline || flight_number LIKE ?)
		ORDER BY flight_date DESC, id DESC LIMIT ?`

	updateHeaderTimesSQL = `UPDATE jcsy_flights SET std = ?, etd = ?, atd = ?, sta = ?, eta = ?, ata = ? WHERE id = ?`
	setProcessedTextSQL  = `UPDATE jcsy_flights SET processed_text = ?, processed_at = ? WHERE id = ?`
	deleteListSQL        = `DELETE FROM jcsy_flights WHERE id = ?`

	updateRowSQL = `UPDATE query_flights SET flight_date = ?, std = ?, etd = ?, atd = ?, sta = ?, eta = ?, ata = ?,
		delayed = ?, status = ?, source = ?, day_offset = ?, queried_at = ? WHERE id = ?`

	unresolvedRowsSQL = `SELECT q.id, q.jcsy_flight_id, q.row_index, q.line, q.airline, q.flight_number, q.flight_date,
		q.departure_airport, q.arrival_airport, q.std_text, q.std, q.etd, q.atd, q.sta, q.eta, q.ata, q.delayed,
		q.booked_non_economy, q.booked_economy, q.checked_non_economy, q.checked_economy, q.checked_infant,
		q.bag_pieces, q.bag_weight, q.status, q.source, q.day_offset, q.queried_at
		FROM query_flights q JOIN jcsy_flights j ON j.id = q.jcsy_flight_id
		WHERE q.status IN (?, ?) AND j.flight_date >= ?
		ORDER BY q.jcsy_flight_id, q.row_index`

	insertSnapshotSQL = `INSERT INTO lookup_snapshots (query_flight_id, source, search_date, std, etd, atd, sta, eta, ata,
		found, error, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	listSnapshotsSQL = `SELECT ` + snapshotColumns + ` FROM lookup_snapshots WHERE query_flight_id = ? ORDER BY id`
)

type timeColumns struct {
	STD sql.NullTime `db:"std"`
	ETD sql.NullTime `db:"etd"`
	ATD sql.NullTime `db:"atd"`
	STA sql.NullTime `db:"sta"`
	ETA sql.NullTime `db:"eta"`
	ATA sql.NullTime `db:"ata"`
}

func (c timeColumns) toDomain() domain.FlightTimes {
	return domain.FlightTimes{
		STD: timePtr(c.STD), ETD: timePtr(c.ETD), ATD: timePtr(c.ATD),
		STA: timePtr(c.STA), ETA: timePtr(c.ETA), ATA: timePtr(c.ATA),
	}
}

type listRecord struct {
	ID            int64     `db:"id"`
	Airline       string    `db:"airline"`
	FlightNumber  string    `db:"flight_number"`
	FlightDate    time.Time `db:"flight_date"`
	Airport       string    `db:"airport"`
	Direction     string    `db:"direction"`
	STDText       string    `db:"std_text"`
	timeColumns
	RawText       string       `db:"raw_text"`
	ProcessedText string       `db:"processed_text"`
	ProcessedAt   sql.NullTime `db:"processed_at"`
}

func (r listRecord) toDomain() domain.ListFlight {
	l := domain.ListFlight{
		ID:            r.ID,
		Airline:       r.Airline,
		FlightNumber:  r.FlightNumber,
		FlightDate:    dateOnly(r.FlightDate),
		Airport:       r.Airport,
		Direction:     domain.Direction(r.Direction),
		STDText:       r.STDText,
		Times:         r.timeColumns.toDomain(),
		RawText:       r.RawText,
		ProcessedText: r.ProcessedText,
	}
	if r.ProcessedAt.Valid {
		l.ProcessedAt = r.ProcessedAt.Time
	}
	return l
}

type rowRecord struct {
	ID                int64     `db:"id"`
	ListID            int64     `db:"jcsy_flight_id"`
	RowIndex          int       `db:"row_index"`
	Line              string    `db:"line"`
	Airline           string    `db:"airline"`
	FlightNumber      string    `db:"flight_number"`
	FlightDate        time.Time `db:"flight_date"`
	DepartureAirport  string    `db:"departure_airport"`
	ArrivalAirport    string    `db:"arrival_airport"`
	STDText           string    `db:"std_text"`
	timeColumns
	Delayed           bool         `db:"delayed"`
	BookedNonEconomy  int          `db:"booked_non_economy"`
	BookedEconomy     int          `db:"booked_economy"`
	CheckedNonEconomy int          `db:"checked_non_economy"`
	CheckedEconomy    int          `db:"checked_economy"`
	CheckedInfant     int          `db:"checked_infant"`
	BagPieces         int          `db:"bag_pieces"`
	BagWeight         int          `db:"bag_weight"`
	Status            string       `db:"status"`
	Source            string       `db:"source"`
	DayOffset         int          `db:"day_offset"`
	QueriedAt         sql.NullTime `db:"queried_at"`
}

func (r rowRecord) toDomain() domain.QueryFlight {
	q := domain.QueryFlight{
		ID:               r.ID,
		ListID:           r.ListID,
		Row:              r.RowIndex,
		Line:             r.Line,
		Airline:          r.Airline,
		FlightNumber:     r.FlightNumber,
		FlightDate:       dateOnly(r.FlightDate),
		DepartureAirport: r.DepartureAirport,
		ArrivalAirport:   r.ArrivalAirport,
		STDText:          r.STDText,
		Times:            r.timeColumns.toDomain(),
		Delayed:          r.Delayed,
		Counts: domain.Counts{
			BookedNonEconomy:  r.BookedNonEconomy,
			BookedEconomy:     r.BookedEconomy,
			CheckedNonEconomy: r.CheckedNonEconomy,
			CheckedEconomy:    r.CheckedEconomy,
			CheckedInfant:     r.CheckedInfant,
			BagPieces:         r.BagPieces,
			BagWeight:         r.BagWeight,
		},
		Status:    domain.RowStatus(r.Status),
		Source:    r.Source,
		DayOffset: r.DayOffset,
	}
	if r.QueriedAt.Valid {
		q.QueriedAt = r.QueriedAt.Time
	}
	return q
}

type snapshotRecord struct {
	ID            int64     `db:"id"`
	QueryFlightID int64     `db:"query_flight_id"`
	Source        string    `db:"source"`
	SearchDate    time.Time `db:"search_date"`
	timeColumns
	Found     bool      `db:"found"`
	Error     string    `db:"error"`
	FetchedAt time.Time `db:"fetched_at"`
}

func (r snapshotRecord) toDomain() domain.Snapshot {
	return domain.Snapshot{
		ID:            r.ID,
		QueryFlightID: r.QueryFlightID,
		Source:        r.Source,
		SearchDate:    dateOnly(r.SearchDate),
		Times:         r.timeColumns.toDomain(),
		Found:         r.Found,
		Error:         r.Error,
		FetchedAt:     r.FetchedAt,
	}
}

func listArgs(l *domain.ListFlight) []any {
	t := l.Times
	return []any{
		l.Airline, l.FlightNumber, dateOnly(l.FlightDate), l.Airport, string(l.Direction), l.STDText,
		nullTime(t.STD), nullTime(t.ETD), nullTime(t.ATD), nullTime(t.STA), nullTime(t.ETA), nullTime(t.ATA),
		l.RawText, l.ProcessedText, nullZero(l.ProcessedAt),
	}
}

func rowArgs(q *domain.QueryFlight) []any {
	t, c := q.Times, q.Counts
	return []any{
		q.ListID, q.Row, q.Line, q.Airline, q.FlightNumber, dateOnly(q.FlightDate),
		q.DepartureAirport, q.ArrivalAirport, q.STDText,
		nullTime(t.STD), nullTime(t.ETD), nullTime(t.ATD), nullTime(t.STA), nullTime(t.ETA), nullTime(t.ATA),
		q.Delayed, c.BookedNonEconomy, c.BookedEconomy, c.CheckedNonEconomy, c.CheckedEconomy, c.CheckedInfant,
		c.BagPieces, c.BagWeight, string(q.Status), q.Source, q.DayOffset, nullZero(q.QueriedAt),
	}
}

func updateRowArgs(q *domain.QueryFlight) []any {
	t := q.Times
	return []any{
		dateOnly(q.FlightDate),
		nullTime(t.STD), nullTime(t.ETD), nullTime(t.ATD), nullTime(t.STA), nullTime(t.ETA), nullTime(t.ATA),
		q.Delayed, string(q.Status), q.Source, q.DayOffset, nullZero(q.QueriedAt), q.ID,
	}
}

func timesArgs(t domain.FlightTimes) []any {
	return []any{nullTime(t.STD), nullTime(t.ETD), nullTime(t.ATD), nullTime(t.STA), nullTime(t.ETA), nullTime(t.ATA)}
}

func snapshotArgs(s *domain.Snapshot) []any {
	return append(append([]any{s.QueryFlightID, s.Source, dateOnly(s.SearchDate)}, timesArgs(s.Times)...),
		s.Found, s.Error, s.FetchedAt)
}

func searchArgs(term string, limit int) []any {
	like := "%" + strings.ToUpper(strings.TrimSpace(term)) + "%"
	return []any{like, like, like, limit}
}

func unresolvedArgs(since time.Time) []any {
	return []any{string(domain.RowStatusNoResult), string(domain.RowStatusError), dateOnly(since)}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullZero(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
