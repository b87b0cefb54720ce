package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/evalix/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "migrate COMMAND [ARGS...]",
		Short:              "Run a goose command against the postgres sheet store",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.openDB()
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}
	return gooseRunFunc(db, args[0], args[1:]...)
}
