package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
)

type PGListRepository struct {
	db *pgxpool.Pool
}

func NewPGListRepository(db *pgxpool.Pool) *PGListRepository {
	return &PGListRepository{db: db}
}

func pg(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

func (r *PGListRepository) Migrate(ctx context.Context) error {
	stmts, err := schemaStatements("postgres.sql")
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *PGListRepository) SaveList(ctx context.Context, list *domain.ListFlight) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, pg(upsertListSQL), listArgs(list)...).Scan(&list.ID); err != nil {
		return fmt.Errorf("save list: %w", err)
	}
	if _, err := tx.Exec(ctx, pg(deleteRowsSQL), list.ID); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}
	for i := range list.Rows {
		row := &list.Rows[i]
		row.ListID = list.ID
		if err := tx.QueryRow(ctx, pg(insertRowSQL), rowArgs(row)...).Scan(&row.ID); err != nil {
			return fmt.Errorf("save row %d: %w", row.Row, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PGListRepository) GetList(ctx context.Context, id int64) (*domain.ListFlight, error) {
	return r.getList(ctx, getListSQL, id)
}

func (r *PGListRepository) FindList(ctx context.Context, airline, number string, date time.Time) (*domain.ListFlight, error) {
	return r.getList(ctx, findListSQL, airline, number, dateOnly(date))
}

func (r *PGListRepository) getList(ctx context.Context, query string, args ...any) (*domain.ListFlight, error) {
	rows, err := r.db.Query(ctx, pg(query), args...)
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[listRecord])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get list: %w", err)
	}
	list := rec.toDomain()

	rowRecs, err := collect[rowRecord](ctx, r.db, listRowsSQL, list.ID)
	if err != nil {
		return nil, fmt.Errorf("get rows: %w", err)
	}
	for _, row := range rowRecs {
		list.Rows = append(list.Rows, row.toDomain())
	}
	return &list, nil
}

func (r *PGListRepository) RecentLists(ctx context.Context, limit int) ([]domain.ListFlight, error) {
	return r.selectLists(ctx, recentListsSQL, limitOrDefault(limit))
}

func (r *PGListRepository) SearchLists(ctx context.Context, term string, limit int) ([]domain.ListFlight, error) {
	return r.selectLists(ctx, searchListsSQL, searchArgs(term, limitOrDefault(limit))...)
}

func (r *PGListRepository) selectLists(ctx context.Context, query string, args ...any) ([]domain.ListFlight, error) {
	recs, err := collect[listRecord](ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select lists: %w", err)
	}
	lists := make([]domain.ListFlight, 0, len(recs))
	for _, rec := range recs {
		lists = append(lists, rec.toDomain())
	}
	return lists, nil
}

func (r *PGListRepository) UpdateHeaderTimes(ctx context.Context, id int64, times domain.FlightTimes) error {
	return r.execOne(ctx, updateHeaderTimesSQL, append(timesArgs(times), id)...)
}

func (r *PGListRepository) UpdateRow(ctx context.Context, row *domain.QueryFlight) error {
	return r.execOne(ctx, updateRowSQL, updateRowArgs(row)...)
}

func (r *PGListRepository) SetProcessedText(ctx context.Context, id int64, text string) error {
	return r.execOne(ctx, setProcessedTextSQL, text, time.Now().UTC(), id)
}

func (r *PGListRepository) DeleteList(ctx context.Context, id int64) error {
	return r.execOne(ctx, deleteListSQL, id)
}

func (r *PGListRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.Exec(ctx, pg(query), args...)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGListRepository) AddSnapshot(ctx context.Context, s *domain.Snapshot) error {
	if s.FetchedAt.IsZero() {
		s.FetchedAt = time.Now().UTC()
	}
	return r.db.QueryRow(ctx, pg(insertSnapshotSQL), snapshotArgs(s)...).Scan(&s.ID)
}

func (r *PGListRepository) ListSnapshots(ctx context.Context, queryFlightID int64) ([]domain.Snapshot, error) {
	recs, err := collect[snapshotRecord](ctx, r.db, listSnapshotsSQL, queryFlightID)
	if err != nil {
		return nil, fmt.Errorf("select snapshots: %w", err)
	}
	out := make([]domain.Snapshot, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *PGListRepository) UnresolvedRows(ctx context.Context, since time.Time) ([]domain.QueryFlight, error) {
	recs, err := collect[rowRecord](ctx, r.db, unresolvedRowsSQL, unresolvedArgs(since)...)
	if err != nil {
		return nil, fmt.Errorf("select unresolved rows: %w", err)
	}
	out := make([]domain.QueryFlight, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *PGListRepository) Close() error {
	r.db.Close()
	return nil
}

func collect[T any](ctx context.Context, db *pgxpool.Pool, query string, args ...any) ([]T, error) {
	rows, err := db.Query(ctx, pg(query), args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

var _ ListRepository = (*PGListRepository)(nil)
