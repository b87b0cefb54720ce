package logsvc

import (
	"log"

	"github.com/trezcool/evalix/core"
)

// StdLogger only writes to a *log.Logger. Used by the CLI and in tests.
type StdLogger struct {
	std   *log.Logger
	quiet bool
}

var _ core.Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger) *StdLogger {
	return &StdLogger{std: std}
}

// Quiet drops Debug and Info entries.
func (l *StdLogger) Quiet(quiet bool) *StdLogger {
	l.quiet = quiet
	return l
}

func (l *StdLogger) Debug(msg string, args ...interface{}) {
	if !l.quiet {
		logTo(l.std, "DEBUG", msg, args)
	}
}

func (l *StdLogger) Info(msg string, args ...interface{}) {
	if !l.quiet {
		logTo(l.std, "INFO", msg, args)
	}
}

func (l *StdLogger) Warn(msg string, args ...interface{})  { logTo(l.std, "WARN", msg, args) }
func (l *StdLogger) Error(msg string, args ...interface{}) { logTo(l.std, "ERROR", msg, args) }

func (l *StdLogger) Fatal(msg string, args ...interface{}) {
	logTo(l.std, "FATAL", msg, args)
	l.std.Fatal(msg)
}

func logTo(std *log.Logger, level, msg string, args []interface{}) {
	std.Printf("%s: %s", level, msg)
	for _, arg := range args {
		if _, ok := arg.(core.Person); ok {
			continue
		}
		std.Printf("%+v\n", arg)
	}
}
