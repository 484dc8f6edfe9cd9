package main

import (
	"fmt"
	"os"

	"github.com/Domenick1991/jcsyfill/internal/bootstrap"
	"github.com/Domenick1991/jcsyfill/internal/render"
	"github.com/Domenick1991/jcsyfill/internal/spool"
	"github.com/spf13/cobra"
)

func newExportCmd(flags *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a stored list to an xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(app *bootstrap.App) error {
				list, err := app.Repo.GetList(cmd.Context(), id)
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = fmt.Sprintf("%s_%s.xlsx", list.FlightCode(), list.FlightDate.Format("20060102"))
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := render.XLSX(f, list); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <flight>_<date>.xlsx)")
	return cmd
}

func newPrintCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "print <id>",
		Short: "Send a stored list to the print spool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(app *bootstrap.App) error {
				list, err := app.Repo.GetList(cmd.Context(), id)
				if err != nil {
					return err
				}
				text := list.ProcessedText
				if text == "" {
					text = list.RawText
				}
				s := spool.NewSpooler(app.Config.Spool, app.Logger)
				path, err := s.Print(cmd.Context(), list.FlightCode(), list.FlightDate.Format("2006-01-02"), text)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
}
