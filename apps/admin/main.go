package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/evalix/core"
	"github.com/trezcool/evalix/core/sheet"
	emailsvc "github.com/trezcool/evalix/services/email"
	logsvc "github.com/trezcool/evalix/services/logger"
	"github.com/trezcool/evalix/services/session"
	"github.com/trezcool/evalix/storage"
	"github.com/trezcool/evalix/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewStdLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds)).Quiet(!conf.Debug)

	repo, closer, err := storage.Open(conf, logger)
	if err != nil {
		logger.Fatal("opening sheet store", err)
	}

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	sheet.InitValidators(validate, translator)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, os.Stdout)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	cli := commandLine{
		conf:       conf,
		svc:        sheet.NewService(repo),
		validate:   validate,
		translator: translator,
		mailSvc:    mailSvc,
		session:    session.NewFileStore(conf.Store.SessionFile),
		openDB:     func() (*sqlx.DB, error) { return database.Open(conf) },
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = closer.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}
}
