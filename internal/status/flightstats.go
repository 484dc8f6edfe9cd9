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

const (
	fsCardSel  = `div[class*="ticket__TicketCard-"]`
	fsLabelSel = `div[class*="ticket__InfoSection-"] div[class*="text-helper__TextHelper-"]`
)

var clock24Re = regexp.MustCompile(`^(\d{1,2}:\d{2})`)

type FlightStats struct {
	fetcher *Fetcher
	baseURL string
}

func NewFlightStats(f *Fetcher, baseURL string) *FlightStats {
	return &FlightStats{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *FlightStats) Name() string { return NameFlightStats }

func (s *FlightStats) Lookup(ctx context.Context, q Query) (*domain.FlightTimes, error) {
	body, err := s.fetcher.Get(ctx, s.url(q))
	if err != nil {
		return nil, err
	}
	return parseFlightStats(body, q.Date)
}

func (s *FlightStats) url(q Query) string {
	v := url.Values{}
	v.Set("year", q.Date.Format("2006"))
	v.Set("month", q.Date.Format("01"))
	v.Set("date", q.Date.Format("02"))
	return fmt.Sprintf("%s/%s/%s?%s", s.baseURL, url.PathEscape(q.Airline), url.PathEscape(q.FlightNumber), v.Encode())
}

func parseFlightStats(body []byte, date time.Time) (*domain.FlightTimes, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse flightstats html: %w", err)
	}
	cards := doc.Find(fsCardSel)
	if cards.Length() < 2 {
		return nil, ErrNotFound
	}
	dep, arr := cards.Eq(0), cards.Eq(1)

	t := &domain.FlightTimes{
		STD: fsTime(dep, "Scheduled", date),
		ETD: fsTime(dep, "Estimated", date),
		ATD: fsTime(dep, "Actual", date),
		STA: fsTime(arr, "Scheduled", date),
		ETA: fsTime(arr, "Estimated", date),
		ATA: fsTime(arr, "Actual", date),
	}
	if t.Empty() {
		return nil, ErrNotFound
	}
	rollArrival(t)
	return t, nil
}

func fsTime(card *goquery.Selection, label string, date time.Time) *time.Time {
	var value string
	card.Find(fsLabelSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if cleanText(s.Text()) != label {
			return true
		}
		value = cleanText(s.Next().Text())
		return false
	})
	return parseFSValue(value, date)
}

// parseFSValue accepts either an ISO timestamp or a 24-hour clock with an
// optional zone suffix, e.g. "13:05 CST".
func parseFSValue(value string, date time.Time) *time.Time {
	if value == "" {
		return nil
	}
	// fractions and a trailing zone are dropped; times stay wall clock
	if len(value) >= 19 && value[10] == 'T' {
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", value[:19], date.Location()); err == nil {
			return &t
		}
	}
	m := clock24Re.FindStringSubmatch(value)
	if m == nil {
		return nil
	}
	c, err := time.Parse("15:04", m[1])
	if err != nil {
		return nil
	}
	t := onDate(date, c)
	return &t
}
