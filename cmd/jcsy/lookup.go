package main

import (
	"errors"
	"strings"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/bootstrap"
	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/Domenick1991/jcsyfill/internal/status"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newLookupCmd(flags *globalFlags) *cobra.Command {
	var date, dep, arr string
	cmd := &cobra.Command{
		Use:   "lookup <flight>",
		Short: "Look up one flight, e.g. lookup CA984 --date 2024-12-11",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			airline, number, err := domain.ParseFlightCode(strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			day := time.Now().UTC().Truncate(24 * time.Hour)
			if date != "" {
				if day, err = time.Parse("2006-01-02", date); err != nil {
					return err
				}
			}
			q := status.Query{
				Airline:          airline,
				FlightNumber:     number,
				Date:             day,
				DepartureAirport: strings.ToUpper(dep),
				ArrivalAirport:   strings.ToUpper(arr),
			}

			return withApp(cmd, flags, func(app *bootstrap.App) error {
				res, err := app.Lookup.Resolve(cmd.Context(), q)
				if res != nil {
					writeAttempts(cmd, q, res)
				}
				if errors.Is(err, domain.ErrNoResult) {
					cmd.PrintErrln("no result")
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "flight date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&dep, "dep", "", "departure airport")
	cmd.Flags().StringVar(&arr, "arr", "", "arrival airport")
	return cmd
}

func writeAttempts(cmd *cobra.Command, q status.Query, res *domain.LookupResult) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.SetTitle("%s %s", q.Code(), q.Date.Format("2006-01-02"))
	t.AppendHeader(table.Row{"Source", "Date", "STD", "ETD", "ATD", "STA", "ETA", "ATA", "Result"})
	for _, a := range res.Attempts {
		result := "found"
		if !a.Found {
			result = a.Error
		}
		t.AppendRow(table.Row{
			a.Source, a.SearchDate.Format("2006-01-02"),
			clock(a.Times.STD), clock(a.Times.ETD), clock(a.Times.ATD),
			clock(a.Times.STA), clock(a.Times.ETA), clock(a.Times.ATA),
			result,
		})
	}
	t.Render()
}

func clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("01-02 15:04")
}
