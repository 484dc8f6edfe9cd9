package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteListRepository struct {
	db *sqlx.DB
}

// OpenSQLite opens path with foreign keys enforced. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string) (*SQLiteListRepository, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	if path == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite serialises writers anyway, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)
	return NewSQLiteListRepository(db), nil
}

func NewSQLiteListRepository(db *sqlx.DB) *SQLiteListRepository {
	return &SQLiteListRepository{db: db}
}

func (r *SQLiteListRepository) Migrate(ctx context.Context) error {
	stmts, err := schemaStatements("sqlite.sql")
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *SQLiteListRepository) SaveList(ctx context.Context, list *domain.ListFlight) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.QueryRowxContext(ctx, upsertListSQL, listArgs(list)...).Scan(&list.ID); err != nil {
		return fmt.Errorf("save list: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteRowsSQL, list.ID); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}
	for i := range list.Rows {
		row := &list.Rows[i]
		row.ListID = list.ID
		if err := tx.QueryRowxContext(ctx, insertRowSQL, rowArgs(row)...).Scan(&row.ID); err != nil {
			return fmt.Errorf("save row %d: %w", row.Row, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteListRepository) GetList(ctx context.Context, id int64) (*domain.ListFlight, error) {
	return r.getList(ctx, getListSQL, id)
}

func (r *SQLiteListRepository) FindList(ctx context.Context, airline, number string, date time.Time) (*domain.ListFlight, error) {
	return r.getList(ctx, findListSQL, airline, number, dateOnly(date))
}

func (r *SQLiteListRepository) getList(ctx context.Context, query string, args ...any) (*domain.ListFlight, error) {
	var rec listRecord
	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get list: %w", err)
	}
	list := rec.toDomain()

	var rows []rowRecord
	if err := r.db.SelectContext(ctx, &rows, listRowsSQL, list.ID); err != nil {
		return nil, fmt.Errorf("get rows: %w", err)
	}
	for _, row := range rows {
		list.Rows = append(list.Rows, row.toDomain())
	}
	return &list, nil
}

func (r *SQLiteListRepository) RecentLists(ctx context.Context, limit int) ([]domain.ListFlight, error) {
	return r.selectLists(ctx, recentListsSQL, limitOrDefault(limit))
}

func (r *SQLiteListRepository) SearchLists(ctx context.Context, term string, limit int) ([]domain.ListFlight, error) {
	return r.selectLists(ctx, searchListsSQL, searchArgs(term, limitOrDefault(limit))...)
}

func (r *SQLiteListRepository) selectLists(ctx context.Context, query string, args ...any) ([]domain.ListFlight, error) {
	var recs []listRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("select lists: %w", err)
	}
	lists := make([]domain.ListFlight, 0, len(recs))
	for _, rec := range recs {
		lists = append(lists, rec.toDomain())
	}
	return lists, nil
}

func (r *SQLiteListRepository) UpdateHeaderTimes(ctx context.Context, id int64, times domain.FlightTimes) error {
	return r.execOne(ctx, updateHeaderTimesSQL, append(timesArgs(times), id)...)
}

func (r *SQLiteListRepository) UpdateRow(ctx context.Context, row *domain.QueryFlight) error {
	return r.execOne(ctx, updateRowSQL, updateRowArgs(row)...)
}

func (r *SQLiteListRepository) SetProcessedText(ctx context.Context, id int64, text string) error {
	return r.execOne(ctx, setProcessedTextSQL, text, time.Now().UTC(), id)
}

func (r *SQLiteListRepository) DeleteList(ctx context.Context, id int64) error {
	return r.execOne(ctx, deleteListSQL, id)
}

func (r *SQLiteListRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteListRepository) AddSnapshot(ctx context.Context, s *domain.Snapshot) error {
	if s.FetchedAt.IsZero() {
		s.FetchedAt = time.Now().UTC()
	}
	return r.db.QueryRowxContext(ctx, insertSnapshotSQL, snapshotArgs(s)...).Scan(&s.ID)
}

func (r *SQLiteListRepository) ListSnapshots(ctx context.Context, queryFlightID int64) ([]domain.Snapshot, error) {
	var recs []snapshotRecord
	if err := r.db.SelectContext(ctx, &recs, listSnapshotsSQL, queryFlightID); err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	out := make([]domain.Snapshot, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *SQLiteListRepository) UnresolvedRows(ctx context.Context, since time.Time) ([]domain.QueryFlight, error) {
	var recs []rowRecord
	if err := r.db.SelectContext(ctx, &recs, unresolvedRowsSQL, unresolvedArgs(since)...); err != nil {
		return nil, fmt.Errorf("select unresolved rows: %w", err)
	}
	out := make([]domain.QueryFlight, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *SQLiteListRepository) Close() error {
	return r.db.Close()
}

var _ ListRepository = (*SQLiteListRepository)(nil)
