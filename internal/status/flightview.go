package status

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/PuerkitoBio/goquery"
)

var clock12Re = regexp.MustCompile(`(\d{1,2}:\d{2})\s*([AaPp][Mm])`)

type FlightView struct {
	fetcher *Fetcher
	baseURL string
}

func NewFlightView(f *Fetcher, baseURL string) *FlightView {
	return &FlightView{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *FlightView) Name() string { return NameFlightView }

func (s *FlightView) Lookup(ctx context.Context, q Query) (*domain.FlightTimes, error) {
	body, err := s.fetcher.Get(ctx, s.url(q))
	if err != nil {
		return nil, err
	}
	return parseFlightView(body, q.Date)
}

func (s *FlightView) url(q Query) string {
	v := url.Values{}
	v.Set("date", q.Date.Format("20060102"))
	if q.DepartureAirport != "" {
		v.Set("depapt", q.DepartureAirport)
	}
	if q.ArrivalAirport != "" {
		v.Set("arrapt", q.ArrivalAirport)
	}
	return fmt.Sprintf("%s/%s/%s?%s", s.baseURL, url.PathEscape(q.Airline), url.PathEscape(q.FlightNumber), v.Encode())
}

func parseFlightView(body []byte, date time.Time) (*domain.FlightTimes, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse flightview html: %w", err)
	}
	if doc.Find(".flight-status").Length() == 0 {
		return nil, ErrNotFound
	}

	// The page may show a different day than the one asked for.
	if text := cleanText(doc.Find(".fvDate").First().Text()); text != "" {
		if d, err := time.Parse("Monday, January 2, 2006", text); err == nil {
			date = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, date.Location())
		}
	}

	dep := doc.Find("table#ffDepartureInfo").First()
	arr := doc.Find("table#ffArrivalInfo").First()
	t := &domain.FlightTimes{
		STD: fvTime(dep, "Scheduled Time", date),
		ETD: fvTime(dep, "Estimated Time", date),
		ATD: fvTime(dep, "Actual Time", date),
		STA: fvTime(arr, "Scheduled Time", date),
		ETA: fvTime(arr, "Estimated Time", date),
		ATA: fvTime(arr, "Actual Time", date),
	}
	if t.Empty() {
		return nil, ErrNotFound
	}
	rollArrival(t)
	return t, nil
}

func fvTime(table *goquery.Selection, label string, date time.Time) *time.Time {
	var value string
	table.Find("th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		if !strings.Contains(cleanText(th.Text()), label) {
			return true
		}
		td := th.NextAllFiltered("td").First()
		if td.Length() == 0 {
			td = th.Parent().Find("td").First()
		}
		value = cleanText(td.Text())
		return false
	})

	m := clock12Re.FindStringSubmatch(value)
	if m == nil {
		return nil
	}
	c, err := time.Parse("3:04PM", m[1]+strings.ToUpper(m[2]))
	if err != nil {
		return nil
	}
	t := onDate(date, c)
	return &t
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}
