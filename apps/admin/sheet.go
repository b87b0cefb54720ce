package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/mail"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/evalix/core"
	"github.com/trezcool/evalix/core/sheet"
	"github.com/trezcool/evalix/services/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (cli *commandLine) getCmd() *cobra.Command {
	var year, period int
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the sheet of a period, creating it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.svc.GetSheet(cmdContext(cmd), year, period)
			if err != nil {
				return err
			}
			return cli.printJSON(s)
		},
	}
	periodFlags(cmd, &year, &period)
	return cmd
}

func (cli *commandLine) saveCmd() *cobra.Command {
	var (
		year, period int
		file         string
		raw          bool
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a sheet payload (JSON) for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readFile(file)
			if err != nil {
				return errors.Wrap(err, "reading payload")
			}
			var payload sheet.Payload
			if err = json.Unmarshal(data, &payload); err != nil {
				return errors.Wrap(err, "decoding payload")
			}
			if !raw {
				payload = payload.Derive()
			}
			if err = payload.Validate(cli.validate); err != nil {
				return cli.validationError(err)
			}

			s, err := cli.svc.SaveSheet(cmdContext(cmd), year, period, payload)
			if err != nil {
				return err
			}
			return cli.printJSON(s)
		},
	}
	periodFlags(cmd, &year, &period)
	cmd.Flags().StringVarP(&file, "file", "f", "", `payload file, "-" for stdin`)
	cmd.Flags().BoolVar(&raw, "raw", false, "store rows as given, without assigning ids or recomputing averages")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (cli *commandLine) listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sheets, err := cli.svc.ListAll(cmdContext(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				return cli.printJSON(sheets)
			}

			w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
			printf(w, "ID\tYEAR\tPERIOD\tROWS\tNEXT ID\n")
			for _, s := range sheets {
				printf(w, "%s\t%d\t%d\t%d\t%d\n", s.ID, s.Year, s.Period, len(s.Rows), s.NextAutoID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func (cli *commandLine) deleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a sheet by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.svc.Delete(cmdContext(cmd), id); err != nil {
				return err
			}
			printf(cli.out, "deleted %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "sheet id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (cli *commandLine) exportCmd() *cobra.Command {
	var (
		year, period int
		output       string
		mailTo       []string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the sheet of a period as xlsx, to a file and/or by email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.svc.GetSheet(cmdContext(cmd), year, period)
			if err != nil {
				return err
			}
			filename := export.SheetName(s) + ".xlsx"

			buf := new(bytes.Buffer)
			if err = export.WriteXLSX(buf, s); err != nil {
				return err
			}

			if len(mailTo) > 0 {
				if err = cli.mailSheet(s, filename, buf.Bytes(), mailTo); err != nil {
					return err
				}
				printf(cli.out, "sent %s to %d recipient(s)\n", filename, len(mailTo))
				if output == "" {
					return nil
				}
			}

			if output == "" {
				output = filename
			}
			if err = os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return errors.Wrap(err, "writing export")
			}
			printf(cli.out, "wrote %s\n", output)
			return nil
		},
	}
	periodFlags(cmd, &year, &period)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <year>-P<period>.xlsx)")
	cmd.Flags().StringSliceVar(&mailTo, "mail-to", nil, "email the export to these addresses")
	return cmd
}

func (cli *commandLine) mailSheet(s sheet.Sheet, filename string, content []byte, to []string) error {
	msg := &core.EmailMessage{
		Subject: "Grade sheet " + export.SheetName(s),
		Body:    "Please find attached the grade sheet of " + export.SheetName(s) + ".",
	}
	for _, addr := range to {
		a, err := mail.ParseAddress(addr)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "mail-to", Error: "invalid email address " + addr})
		}
		msg.To = append(msg.To, *a)
	}
	if err := msg.Attach(bytes.NewReader(content), filename, xlsxContentType); err != nil {
		return errors.Wrap(err, "attaching export")
	}
	return errors.Wrap(cli.mailSvc.SendMessages(msg), "mailing export")
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
