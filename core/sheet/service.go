package sheet

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound      = errors.New("sheet not found")
	ErrExists        = errors.New("a sheet for this period already exists")
	ErrInvalidPeriod = errors.New("year and period must be positive numbers")
)

type (
	// Repository persists sheets. Implementations return records as stored; normalization is the Service's job.
	Repository interface {
		// ListSheets returns the sheets matching filter, in store order.
		ListSheets(ctx context.Context, filter Filter) ([]Record, error)
		GetSheet(ctx context.Context, id string) (Record, error)
		CreateSheet(ctx context.Context, doc Document) (Record, error)
		// UpdateSheet replaces the whole document stored under id.
		UpdateSheet(ctx context.Context, id string, doc Document) (Record, error)
		DeleteSheet(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		GetSheet(ctx context.Context, year, period int) (Sheet, error)
		SaveSheet(ctx context.Context, year, period int, payload Payload) (Sheet, error)
		ListAll(ctx context.Context) ([]Sheet, error)
		GetByID(ctx context.Context, id string) (Sheet, error)
		Delete(ctx context.Context, id string) error
	}

	// Service reconciles sheets against a Repository.
	// It holds no state between calls: every operation re-fetches.
	//
	// Find-then-create is not atomic. Two concurrent GetSheet calls for an unseen period may create two
	// sheets unless the Repository rejects duplicates with ErrExists.
	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetSheet returns the sheet of (year, period), creating an empty one if none exists yet.
func (svc *Service) GetSheet(ctx context.Context, year, period int) (Sheet, error) {
	if year <= 0 || period <= 0 {
		return Sheet{}, ErrInvalidPeriod
	}

	if rec, found, err := svc.find(ctx, year, period); err != nil {
		return Sheet{}, err
	} else if found {
		return Normalize(rec)
	}

	created, err := svc.repo.CreateSheet(ctx, NewDocument(year, period))
	if err != nil {
		if errors.Cause(err) != ErrExists {
			return Sheet{}, errors.Wrap(err, "creating sheet")
		}
		// lost the race to another writer: theirs is the one
		rec, found, err := svc.find(ctx, year, period)
		if err != nil {
			return Sheet{}, err
		}
		if !found {
			return Sheet{}, errors.Wrap(ErrNotFound, "finding sheet after conflict")
		}
		return Normalize(rec)
	}
	return Normalize(created)
}

// SaveSheet replaces the sheet of (year, period) with payload, creating it if needed.
// The stored record is returned as the Repository handed it back, without defaults applied.
func (svc *Service) SaveSheet(ctx context.Context, year, period int, payload Payload) (Sheet, error) {
	if year <= 0 || period <= 0 {
		return Sheet{}, ErrInvalidPeriod
	}
	doc := payload.Document(year, period)

	current, found, err := svc.find(ctx, year, period)
	if err != nil {
		return Sheet{}, err
	}

	var saved Record
	if found {
		if saved, err = svc.repo.UpdateSheet(ctx, current.ID, doc); err != nil {
			return Sheet{}, errors.Wrap(err, "updating sheet")
		}
	} else {
		if saved, err = svc.repo.CreateSheet(ctx, doc); err != nil {
			return Sheet{}, errors.Wrap(err, "creating sheet")
		}
	}
	return Decode(saved)
}

func (svc *Service) ListAll(ctx context.Context) ([]Sheet, error) {
	recs, err := svc.repo.ListSheets(ctx, Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "listing sheets")
	}
	sheets := make([]Sheet, 0, len(recs))
	for _, rec := range recs {
		s, err := Decode(rec)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Sheet, error) {
	rec, err := svc.repo.GetSheet(ctx, id)
	if err != nil {
		return Sheet{}, errors.Wrap(err, "getting sheet")
	}
	return Normalize(rec)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteSheet(ctx, id); err != nil {
		return errors.Wrap(err, "deleting sheet")
	}
	return nil
}

// find returns the first stored sheet of (year, period).
func (svc *Service) find(ctx context.Context, year, period int) (Record, bool, error) {
	recs, err := svc.repo.ListSheets(ctx, Filter{Year: year, Period: period})
	if err != nil {
		return Record{}, false, errors.Wrap(err, "listing sheets")
	}
	if len(recs) == 0 {
		return Record{}, false, nil
	}
	return recs[0], true, nil
}
