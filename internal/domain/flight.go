package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrNoResult = errors.New("no flight status found")
)

type Direction string

const (
	DirectionArrival   Direction = "arrival"
	DirectionDeparture Direction = "departure"
)

// Flag returns the single letter used on the JCSY header line.
func (d Direction) Flag() string {
	if d == DirectionArrival {
		return "I"
	}
	return "O"
}

type RowStatus string

const (
	RowStatusPending    RowStatus = "pending"
	RowStatusProcessing RowStatus = "processing"
	RowStatusUpdated    RowStatus = "updated"
	RowStatusNoResult   RowStatus = "no_result"
	RowStatusError      RowStatus = "error"
)

type FlightTimes struct {
	STD *time.Time `json:"std,omitempty"`
	ETD *time.Time `json:"etd,omitempty"`
	ATD *time.Time `json:"atd,omitempty"`
	STA *time.Time `json:"sta,omitempty"`
	ETA *time.Time `json:"eta,omitempty"`
	ATA *time.Time `json:"ata,omitempty"`
}

func (t FlightTimes) Empty() bool {
	return t.STD == nil && t.ETD == nil && t.ATD == nil &&
		t.STA == nil && t.ETA == nil && t.ATA == nil
}

// Merge fills the unset fields of t from other.
func (t *FlightTimes) Merge(other FlightTimes) {
	fill := func(dst **time.Time, src *time.Time) {
		if *dst == nil && src != nil {
			*dst = src
		}
	}
	fill(&t.STD, other.STD)
	fill(&t.ETD, other.ETD)
	fill(&t.ATD, other.ATD)
	fill(&t.STA, other.STA)
	fill(&t.ETA, other.ETA)
	fill(&t.ATA, other.ATA)
}

func (t FlightTimes) DepartureBest() *time.Time {
	return firstSet(t.ATD, t.ETD, t.STD)
}

func (t FlightTimes) ArrivalBest() *time.Time {
	return firstSet(t.ATA, t.ETA, t.STA)
}

// Best picks the time shown on an annotated list: arrival times for
// arrival lists, departure times otherwise.
func (t FlightTimes) Best(d Direction) *time.Time {
	if d == DirectionArrival {
		return t.ArrivalBest()
	}
	return t.DepartureBest()
}

// Delayed reports whether the actual (or estimated) time is later than the
// scheduled one on the side of the flight that matters for d.
func (t FlightTimes) Delayed(d Direction) bool {
	var actual, scheduled *time.Time
	if d == DirectionArrival {
		actual, scheduled = firstSet(t.ATA, t.ETA), t.STA
	} else {
		actual, scheduled = firstSet(t.ATD, t.ETD), t.STD
	}
	if actual == nil || scheduled == nil {
		return false
	}
	return actual.After(*scheduled)
}

func firstSet(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}

type Counts struct {
	BookedNonEconomy  int `json:"booked_non_economy"`
	BookedEconomy     int `json:"booked_economy"`
	CheckedNonEconomy int `json:"checked_non_economy"`
	CheckedEconomy    int `json:"checked_economy"`
	CheckedInfant     int `json:"checked_infant"`
	BagPieces         int `json:"bag_pieces"`
	BagWeight         int `json:"bag_weight"`
}

// ListFlight is the flight named on a JCSY header line. The rows of the list
// are the connecting flights queried against it.
type ListFlight struct {
	ID            int64         `json:"id"`
	Airline       string        `json:"airline"`
	FlightNumber  string        `json:"flight_number"`
	FlightDate    time.Time     `json:"flight_date"`
	Airport       string        `json:"airport"`
	Direction     Direction     `json:"direction"`
	STDText       string        `json:"std_text,omitempty"`
	Times         FlightTimes   `json:"times"`
	RawText       string        `json:"raw_text,omitempty"`
	ProcessedText string        `json:"processed_text,omitempty"`
	ProcessedAt   time.Time     `json:"processed_at"`
	Rows          []QueryFlight `json:"rows,omitempty"`
}

func (l *ListFlight) FlightCode() string {
	return l.Airline + l.FlightNumber
}

// Reference is the header time that connecting flights are compared to:
// STD for arrival lists, STA for departure lists.
func (l *ListFlight) Reference() *time.Time {
	if l.Direction == DirectionArrival {
		return l.Times.STD
	}
	return l.Times.STA
}

type QueryFlight struct {
	ID               int64       `json:"id"`
	ListID           int64       `json:"list_id"`
	Row              int         `json:"row"`
	Line             string      `json:"line"`
	Airline          string      `json:"airline"`
	FlightNumber     string      `json:"flight_number"`
	FlightDate       time.Time   `json:"flight_date"`
	DepartureAirport string      `json:"departure_airport"`
	ArrivalAirport   string      `json:"arrival_airport"`
	STDText          string      `json:"std_text,omitempty"`
	Times            FlightTimes `json:"times"`
	Delayed          bool        `json:"delayed"`
	Counts           Counts      `json:"counts"`
	Status           RowStatus   `json:"status"`
	Source           string      `json:"source,omitempty"`
	DayOffset        int         `json:"day_offset"`
	QueriedAt        time.Time   `json:"queried_at"`
}

func (q *QueryFlight) FlightCode() string {
	return q.Airline + q.FlightNumber
}

// Airport returns the far-end airport as listed on the row.
func (q *QueryFlight) Airport(d Direction) string {
	if d == DirectionArrival {
		return q.DepartureAirport
	}
	return q.ArrivalAirport
}

// Snapshot records one lookup attempt against one source.
type Snapshot struct {
	ID            int64       `json:"id"`
	QueryFlightID int64       `json:"query_flight_id"`
	Source        string      `json:"source"`
	SearchDate    time.Time   `json:"search_date"`
	Times         FlightTimes `json:"times"`
	Found         bool        `json:"found"`
	Error         string      `json:"error,omitempty"`
	FetchedAt     time.Time   `json:"fetched_at"`
}

type LookupResult struct {
	Times      FlightTimes `json:"times"`
	Source     string      `json:"source"`
	SearchDate time.Time   `json:"search_date"`
	DayOffset  int         `json:"day_offset"`
	Attempts   []Snapshot  `json:"attempts,omitempty"`
}

var (
	airlineRe = regexp.MustCompile(`^[A-Z0-9]{2}$`)
	numberRe  = regexp.MustCompile(`^\d{1,4}[A-Z]?$`)
)

// ValidFlight reports whether airline and number form a flight designator,
// e.g. "CA" and "0984".
func ValidFlight(airline, number string) bool {
	return airlineRe.MatchString(airline) && numberRe.MatchString(number)
}

// ParseFlightCode splits "CA0984" into airline "CA" and number "984".
func ParseFlightCode(code string) (string, string, error) {
	if len(code) < 3 {
		return "", "", fmt.Errorf("flight code %q too short", code)
	}
	airline := code[:2]
	number := code[2:]
	if !ValidFlight(airline, number) {
		return "", "", fmt.Errorf("invalid flight code %q", code)
	}
	for len(number) > 1 && number[0] == '0' {
		number = number[1:]
	}
	return airline, number, nil
}
