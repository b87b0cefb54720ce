package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/evalix/core"
	"github.com/trezcool/evalix/core/sheet"
	"github.com/trezcool/evalix/services/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	svc        sheet.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
	mailSvc    core.EmailService
	session    *session.FileStore
	openDB     func() (*sqlx.DB, error) // only migrate needs the database
	out        io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Manage Evalix grade sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.getCmd(),
		cli.saveCmd(),
		cli.listCmd(),
		cli.deleteCmd(),
		cli.exportCmd(),
		cli.loginCmd(),
		cli.logoutCmd(),
		cli.tokenCmd(),
		cli.migrateCmd(),
	)
	return root
}

// run executes the command line args; args[0] is the program name.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

func periodFlags(cmd *cobra.Command, year, period *int) {
	cmd.Flags().IntVarP(year, "year", "y", 0, "school year, e.g. 2025")
	cmd.Flags().IntVarP(period, "period", "p", 0, "grading period, e.g. 1")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("period")
}

func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// validationError flattens validator errors into a core.ValidationError with stable field order.
func (cli *commandLine) validationError(err error) error {
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	translated := core.TranslateErrors(vErrs, cli.translator)
	fields := make([]core.FieldError, 0, len(translated))
	for fld, msg := range translated {
		fields = append(fields, core.FieldError{Field: fld, Error: msg})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return core.NewValidationError(nil, fields...)
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
