// Package status looks up flight times on third-party flight-status sites.
// Each site is a Source; the HTML extraction for a site lives in its own file.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/domain"
)

// ErrNotFound means the source answered but had no usable times.
var ErrNotFound = errors.New("flight not found")

const (
	NameFlightView  = "flightview"
	NameFlightStats = "flightstats"
)

type Query struct {
	Airline          string
	FlightNumber     string
	Date             time.Time
	DepartureAirport string
	ArrivalAirport   string
}

func (q Query) Code() string {
	return q.Airline + q.FlightNumber
}

type Source interface {
	Name() string
	Lookup(ctx context.Context, q Query) (*domain.FlightTimes, error)
}

// NewSources builds the sources named in cfg.Sources, in that order.
func NewSources(cfg config.LookupConfig, f *Fetcher) ([]Source, error) {
	sources := make([]Source, 0, len(cfg.Sources))
	for _, name := range cfg.Sources {
		switch name {
		case NameFlightView:
			sources = append(sources, NewFlightView(f, cfg.FlightViewBaseURL))
		case NameFlightStats:
			sources = append(sources, NewFlightStats(f, cfg.FlightStatsBaseURL))
		default:
			return nil, fmt.Errorf("unknown status source %q", name)
		}
	}
	return sources, nil
}

// onDate puts a clock time on the calendar day of date.
func onDate(date, clock time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, date.Location())
}

// rollArrival moves arrival times a day forward when they come out earlier
// than the scheduled departure, as happens for overnight flights.
func rollArrival(t *domain.FlightTimes) {
	if t.STD == nil {
		return
	}
	for _, p := range []**time.Time{&t.STA, &t.ETA, &t.ATA} {
		if *p != nil && (*p).Before(*t.STD) {
			next := (*p).AddDate(0, 0, 1)
			*p = &next
		}
	}
}
