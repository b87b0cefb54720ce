package remote

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/evalix/core/sheet"
)

type sheetRepository struct {
	client *Client
}

var _ sheet.Repository = (*sheetRepository)(nil)

// NewSheetRepository stores sheets in the collection served by client.
// Errors are the client's *RequestError, unchanged.
func NewSheetRepository(client *Client) sheet.Repository {
	return &sheetRepository{client: client}
}

func (repo *sheetRepository) ListSheets(ctx context.Context, filter sheet.Filter) ([]sheet.Record, error) {
	params := make(map[string]interface{}, 2)
	if filter.Year != 0 {
		params["year"] = filter.Year
	}
	if filter.Period != 0 {
		params["period"] = filter.Period
	}

	var raw json.RawMessage
	if err := repo.client.List(ctx, params, &raw); err != nil {
		return nil, err
	}
	// anything but an array lists nothing
	if raw = bytes.TrimSpace(raw); len(raw) == 0 || raw[0] != '[' {
		return []sheet.Record{}, nil
	}
	recs := make([]sheet.Record, 0)
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, errors.Wrap(err, "decoding sheets")
	}
	return recs, nil
}

func (repo *sheetRepository) GetSheet(ctx context.Context, id string) (sheet.Record, error) {
	var rec sheet.Record
	if err := repo.client.Get(ctx, id, &rec); err != nil {
		return sheet.Record{}, err
	}
	return rec, nil
}

func (repo *sheetRepository) CreateSheet(ctx context.Context, doc sheet.Document) (sheet.Record, error) {
	var rec sheet.Record
	if err := repo.client.Create(ctx, doc, &rec); err != nil {
		return sheet.Record{}, err
	}
	return rec, nil
}

func (repo *sheetRepository) UpdateSheet(ctx context.Context, id string, doc sheet.Document) (sheet.Record, error) {
	var rec sheet.Record
	if err := repo.client.Update(ctx, id, doc, &rec); err != nil {
		return sheet.Record{}, err
	}
	return rec, nil
}

func (repo *sheetRepository) DeleteSheet(ctx context.Context, id string) error {
	return repo.client.Delete(ctx, id, nil)
}
