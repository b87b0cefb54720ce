package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/evalix/core/sheet"
)

const uniqueViolation = pq.ErrorCode("23505")

type sheetRow struct {
	ID            string `db:"id"`
	Year          int    `db:"year"`
	Period        int    `db:"period"`
	NextAutoID    int    `db:"next_auto_id"`
	AutoIDEnabled bool   `db:"auto_id_enabled"`
	Rows          string `db:"rows"` // jsonb; pq sends []byte as bytea
}

func (r sheetRow) record() sheet.Record {
	return sheet.Record{
		ID:            r.ID,
		Year:          r.Year,
		Period:        r.Period,
		NextAutoID:    r.NextAutoID,
		AutoIDEnabled: r.AutoIDEnabled,
		Rows:          json.RawMessage(r.Rows),
	}
}

type sheetRepository struct {
	db *sqlx.DB
}

var _ sheet.Repository = (*sheetRepository)(nil)

func NewSheetRepository(db *sqlx.DB) sheet.Repository {
	return &sheetRepository{db: db}
}

const selectSheets = `SELECT id, year, period, next_auto_id, auto_id_enabled, rows FROM sheets`

func (repo *sheetRepository) ListSheets(ctx context.Context, filter sheet.Filter) ([]sheet.Record, error) {
	q := selectSheets + ` WHERE ($1 = 0 OR year = $1) AND ($2 = 0 OR period = $2) ORDER BY created_at, id`
	var rows []sheetRow
	if err := repo.db.SelectContext(ctx, &rows, q, filter.Year, filter.Period); err != nil {
		return nil, errors.Wrap(err, "selecting sheets")
	}

	recs := make([]sheet.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.record())
	}
	return recs, nil
}

func (repo *sheetRepository) GetSheet(ctx context.Context, id string) (sheet.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return sheet.Record{}, sheet.ErrNotFound
	}
	var r sheetRow
	if err := repo.db.GetContext(ctx, &r, selectSheets+` WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return sheet.Record{}, sheet.ErrNotFound
		}
		return sheet.Record{}, errors.Wrap(err, "selecting sheet")
	}
	return r.record(), nil
}

func (repo *sheetRepository) CreateSheet(ctx context.Context, doc sheet.Document) (sheet.Record, error) {
	r, err := newSheetRow(uuid.New().String(), doc)
	if err != nil {
		return sheet.Record{}, err
	}

	q := `INSERT INTO sheets (id, year, period, next_auto_id, auto_id_enabled, rows)
		VALUES (:id, :year, :period, :next_auto_id, :auto_id_enabled, :rows)`
	if _, err = repo.db.NamedExecContext(ctx, q, r); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return sheet.Record{}, sheet.ErrExists
		}
		return sheet.Record{}, errors.Wrap(err, "inserting sheet")
	}
	return r.record(), nil
}

func (repo *sheetRepository) UpdateSheet(ctx context.Context, id string, doc sheet.Document) (sheet.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return sheet.Record{}, sheet.ErrNotFound
	}
	r, err := newSheetRow(id, doc)
	if err != nil {
		return sheet.Record{}, err
	}

	q := `UPDATE sheets
		SET year = :year, period = :period, next_auto_id = :next_auto_id,
			auto_id_enabled = :auto_id_enabled, rows = :rows, updated_at = NOW()
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, r)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return sheet.Record{}, sheet.ErrExists
		}
		return sheet.Record{}, errors.Wrap(err, "updating sheet")
	}
	if n, err := res.RowsAffected(); err != nil {
		return sheet.Record{}, errors.Wrap(err, "updating sheet")
	} else if n == 0 {
		return sheet.Record{}, sheet.ErrNotFound
	}
	return r.record(), nil
}

func (repo *sheetRepository) DeleteSheet(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return sheet.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM sheets WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting sheet")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting sheet")
	} else if n == 0 {
		return sheet.ErrNotFound
	}
	return nil
}

func newSheetRow(id string, doc sheet.Document) (sheetRow, error) {
	rows := doc.Rows
	if rows == nil {
		rows = []sheet.Row{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return sheetRow{}, errors.Wrap(err, "marshalling rows")
	}
	return sheetRow{
		ID:            id,
		Year:          doc.Year,
		Period:        doc.Period,
		NextAutoID:    doc.NextAutoID,
		AutoIDEnabled: doc.AutoIDEnabled,
		Rows:          string(data),
	}, nil
}
