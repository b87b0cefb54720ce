package dig_container

import (
	"io"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/evalix/apps/api/echo"
	"github.com/trezcool/evalix/core"
	"github.com/trezcool/evalix/core/sheet"
	logsvc "github.com/trezcool/evalix/services/logger"
	"github.com/trezcool/evalix/storage"
)

type StoreLoggerParam struct {
	dig.In
	Logger core.Logger `name:"storeLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStoreLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStore(conf *core.Config, loggerParam StoreLoggerParam) (sheet.Repository, io.Closer, error) {
	repo, closer, err := storage.Open(conf, loggerParam.Logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %q sheet store", conf.Store.Driver)
	}
	return repo, closer, nil
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	sheet.InitValidators(validate, translator)
	return validate
}

func newServerDeps(svc sheet.ServiceInterface, validate *validator.Validate, translator ut.Translator) echoapi.ServerDeps {
	return echoapi.ServerDeps{
		SheetSvc:   svc,
		Validate:   validate,
		Translator: translator,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newStoreLogger, dig.Name("storeLogger")))
	must(c.Provide(newStore))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(sheet.NewService, dig.As(new(sheet.ServiceInterface))))
	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
