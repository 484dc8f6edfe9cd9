package jcsy

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
)

var ErrNoHeader = errors.New("jcsy: no header line")

var airportRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Skip explains why a matched row did not become a query flight.
type Skip struct {
	Index  int    `json:"index"`
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// Build maps a parsed document onto the list flight and its rows.
func Build(doc *Document) (*domain.ListFlight, []Skip, error) {
	if doc == nil || doc.HeaderLine < 0 {
		return nil, nil, ErrNoHeader
	}
	h := doc.Header

	list := &domain.ListFlight{
		Airline:      h.String("header_airline"),
		FlightNumber: h.String("header_flight_number"),
		Airport:      h.String("header_airport"),
		Direction:    domain.Direction(h.String("direction")),
	}
	if list.Direction != domain.DirectionArrival && list.Direction != domain.DirectionDeparture {
		return nil, nil, fmt.Errorf("jcsy: header has no direction")
	}
	date, err := time.Parse(DateLayout, h.String("header_flight_date"))
	if err != nil {
		return nil, nil, fmt.Errorf("jcsy: header date %q: %w", h.String("header_flight_date"), err)
	}
	list.FlightDate = date

	var skips []Skip
	for _, row := range doc.Rows {
		q, reason := buildRow(row, list)
		if reason != "" {
			skips = append(skips, Skip{Index: row.Index, Line: row.Line, Reason: reason})
			continue
		}
		list.Rows = append(list.Rows, *q)
	}
	return list, skips, nil
}

func buildRow(row Row, list *domain.ListFlight) (*domain.QueryFlight, string) {
	r := row.Record
	airline, number, airport := r.String("airline"), r.String("flight_number"), r.String("airport")
	if !domain.ValidFlight(airline, number) {
		return nil, fmt.Sprintf("invalid flight code %q", airline+number)
	}
	if !airportRe.MatchString(airport) {
		return nil, fmt.Sprintf("invalid airport %q", airport)
	}

	q := &domain.QueryFlight{
		Row:          row.Index,
		Line:         row.Line,
		Airline:      airline,
		FlightNumber: number,
		FlightDate:   list.FlightDate,
		STDText:      r.String("std_text"),
		Status:       domain.RowStatusPending,
		Counts: domain.Counts{
			BookedNonEconomy:  r.Int("booked_count_non_economy"),
			BookedEconomy:     r.Int("booked_count_economy"),
			CheckedNonEconomy: r.Int("checked_count_non_economy"),
			CheckedEconomy:    r.Int("checked_count_economy"),
			CheckedInfant:     r.Int("checked_count_infant"),
			BagPieces:         r.Int("bags_count_piece"),
			BagWeight:         r.Int("bags_count_weight"),
		},
	}
	if list.Direction == domain.DirectionArrival {
		q.DepartureAirport, q.ArrivalAirport = airport, list.Airport
	} else {
		q.DepartureAirport, q.ArrivalAirport = list.Airport, airport
	}
	if std, ok := ClockOn(list.FlightDate, q.STDText); ok {
		q.Times.STD = &std
	}
	return q, ""
}

// ClockOn combines a HH:MM clock time with a date.
func ClockOn(date time.Time, hhmm string) (time.Time, bool) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location()), true
}
