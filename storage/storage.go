package storage

import (
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/evalix/core"
	"github.com/trezcool/evalix/core/sheet"
	"github.com/trezcool/evalix/services/session"
	"github.com/trezcool/evalix/storage/database"
	inmemdb "github.com/trezcool/evalix/storage/database/inmem"
	sqlxrepos "github.com/trezcool/evalix/storage/database/sqlx"
	"github.com/trezcool/evalix/storage/remote"
)

// Open returns the sheet.Repository selected by conf.Store.Driver.
// The returned io.Closer releases whatever the repository holds.
func Open(conf *core.Config, logger core.Logger) (sheet.Repository, io.Closer, error) {
	switch conf.Store.Driver {
	case core.DriverRemote, "":
		return remote.NewSheetRepository(NewRemoteClient(conf, logger)), nopCloser{}, nil
	case core.DriverPostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return sqlxrepos.NewSheetRepository(db), db, nil
	case core.DriverMemory:
		db := inmemdb.Open()
		return inmemdb.NewSheetRepository(db), db, nil
	default:
		return nil, nil, errors.Errorf("unknown store driver %q", conf.Store.Driver)
	}
}

// NewRemoteClient builds the remote.Client for conf.Store.
// A configured token wins over the session file.
func NewRemoteClient(conf *core.Config, logger core.Logger) *remote.Client {
	var tokens remote.TokenProvider = session.NewFileStore(conf.Store.SessionFile)
	if conf.Store.Token != "" {
		tokens = remote.StaticToken(conf.Store.Token)
	}
	return remote.New(
		conf.Store.BaseURL,
		conf.Store.Resource,
		remote.WithHTTPClient(&http.Client{Timeout: conf.Store.Timeout}),
		remote.WithTokenProvider(tokens),
		remote.WithMaxAttempts(conf.Store.MaxAttempts),
		remote.WithBackoffStep(conf.Store.BackoffStep),
		remote.WithUserAgent(conf.AppName+"/"+conf.Build),
		remote.WithLogger(logger),
	)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
