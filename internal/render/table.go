package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Table writes the list as a boxed terminal table.
func Table(w io.Writer, list *domain.ListFlight) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("%s%s %s %s %s", list.Airline, list.FlightNumber,
		strings.ToUpper(list.FlightDate.Format("02Jan06")), list.Airport, list.Direction.Flag())

	t.AppendHeader(table.Row{"#", "Flight", "Airport", "STD", "Time", "Delay", "Booked", "Checked", "Bags", "Source", "Status"})
	for _, q := range list.Rows {
		var stamp string
		if q.Status == domain.RowStatusUpdated {
			if best := q.Times.Best(list.Direction); best != nil {
				stamp = Stamp(*best, q.DayOffset)
			}
		}
		t.AppendRow(table.Row{
			q.Row,
			q.FlightCode(),
			q.Airport(list.Direction),
			q.STDText,
			stamp,
			RowDelay(q.Times, list.Direction),
			fmt.Sprintf("%d/%d", q.Counts.BookedNonEconomy, q.Counts.BookedEconomy),
			fmt.Sprintf("%d/%d+%d", q.Counts.CheckedNonEconomy, q.Counts.CheckedEconomy, q.Counts.CheckedInfant),
			fmt.Sprintf("%d/%d", q.Counts.BagPieces, q.Counts.BagWeight),
			q.Source,
			string(q.Status),
		})
	}
	t.Render()
}

// ListsTable writes a one-line summary per list, used by history and search.
func ListsTable(w io.Writer, lists []domain.ListFlight) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Flight", "Date", "Airport", "Dir", "Processed"})
	for _, l := range lists {
		processed := ""
		if !l.ProcessedAt.IsZero() {
			processed = l.ProcessedAt.Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{l.ID, l.FlightCode(), l.FlightDate.Format("2006-01-02"), l.Airport, l.Direction.Flag(), processed})
	}
	t.Render()
}
