package render

import (
	"fmt"
	"io"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Flights"

var xlsxHeader = []string{
	"Row", "Flight", "From", "To", "STD", "Time", "Delay", "Status", "Source",
	"Booked F", "Booked Y", "Checked F", "Checked Y", "Infants", "Bags", "Bag Weight",
}

// XLSX writes the list rows to a single-sheet workbook.
func XLSX(w io.Writer, list *domain.ListFlight) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range xlsxHeader {
		if err := setCell(f, i+1, 1, h); err != nil {
			return err
		}
	}

	for r, q := range list.Rows {
		var stamp string
		if q.Status == domain.RowStatusUpdated {
			if best := q.Times.Best(list.Direction); best != nil {
				stamp = Stamp(*best, q.DayOffset)
			}
		}
		values := []any{
			q.Row, q.FlightCode(), q.DepartureAirport, q.ArrivalAirport, q.STDText, stamp,
			RowDelay(q.Times, list.Direction), string(q.Status), q.Source,
			q.Counts.BookedNonEconomy, q.Counts.BookedEconomy,
			q.Counts.CheckedNonEconomy, q.Counts.CheckedEconomy, q.Counts.CheckedInfant,
			q.Counts.BagPieces, q.Counts.BagWeight,
		}
		for c, v := range values {
			if err := setCell(f, c+1, r+2, v); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(sheetName, cell, v); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return nil
}
