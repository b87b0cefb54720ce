package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/evalix/core/auth"
	"github.com/trezcool/evalix/services/session"
)

func (cli *commandLine) loginCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the sheet store token in the session file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printf(cli.out, "Enter token:")
			token, err := readPasswordFunc(int(os.Stdin.Fd()))
			printf(cli.out, "\n")
			if err != nil {
				return err
			}
			if strings.TrimSpace(string(token)) == "" {
				_ = cmd.Usage()
				return errHelp
			}

			sess := session.Session{Username: username, Token: strings.TrimSpace(string(token))}
			if err = cli.session.Save(sess); err != nil {
				return err
			}
			printf(cli.out, "session saved to %s\n", cli.session.Path())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "who the token belongs to")
	return cmd
}

func (cli *commandLine) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the session file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.session.Clear()
		},
	}
}

func (cli *commandLine) tokenCmd() *cobra.Command {
	var (
		username string
		isAdmin  bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			claims := auth.NewClaims(cli.conf, username, isAdmin)
			token, err := auth.GenerateToken(claims, cli.conf.SecretKey)
			if err != nil {
				return errors.Wrap(err, "generating token")
			}
			printf(cli.out, "%s\n", token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "token subject")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "allow deleting sheets")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
