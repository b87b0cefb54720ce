package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/evalix/core/sheet"
)

type sheetRepository struct {
	db *sheetTable
}

var _ sheet.Repository = (*sheetRepository)(nil)

func NewSheetRepository(db *DB) sheet.Repository {
	return &sheetRepository{db: db.sheet}
}

func (repo *sheetRepository) ListSheets(_ context.Context, filter sheet.Filter) ([]sheet.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]sheet.Record, 0)
	for _, id := range repo.db.order {
		doc := repo.db.table[id]
		if !filter.Match(doc.Year, doc.Period) {
			continue
		}
		rec, err := sheet.NewRecord(id, *doc)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (repo *sheetRepository) GetSheet(_ context.Context, id string) (sheet.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if doc, ok := repo.db.table[id]; ok {
		return sheet.NewRecord(id, *doc)
	}
	return sheet.Record{}, sheet.ErrNotFound
}

func (repo *sheetRepository) CreateSheet(_ context.Context, doc sheet.Document) (sheet.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	id := uuid.New().String()
	doc.Rows = copyRows(doc.Rows)
	repo.db.table[id] = &doc
	repo.db.order = append(repo.db.order, id)
	return sheet.NewRecord(id, doc)
}

func (repo *sheetRepository) UpdateSheet(_ context.Context, id string, doc sheet.Document) (sheet.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return sheet.Record{}, sheet.ErrNotFound
	}
	doc.Rows = copyRows(doc.Rows)
	repo.db.table[id] = &doc
	return sheet.NewRecord(id, doc)
}

func (repo *sheetRepository) DeleteSheet(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return sheet.ErrNotFound
	}
	delete(repo.db.table, id)
	for i, oid := range repo.db.order {
		if oid == id {
			repo.db.order = append(repo.db.order[:i], repo.db.order[i+1:]...)
			break
		}
	}
	return nil
}

func copyRows(rows []sheet.Row) []sheet.Row {
	cp := make([]sheet.Row, len(rows))
	copy(cp, rows)
	return cp
}
