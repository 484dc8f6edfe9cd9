package status

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func day(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func testFetcher(retries int) *Fetcher {
	cfg := config.Default().Lookup
	cfg.RatePerSecond = 1000
	cfg.Burst = 100
	cfg.RetryAttempts = retries
	f := NewFetcher(cfg, zap.NewNop())
	f.retry.InitialDelay = time.Millisecond
	return f
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return b
}

func TestParseFlightView(t *testing.T) {
	times, err := parseFlightView(fixture(t, "flightview.html"), day(2024, time.December, 10, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, day(2024, time.December, 11, 23, 30), *times.STD)
	assert.Equal(t, day(2024, time.December, 11, 23, 52), *times.ATD)
	assert.Nil(t, times.ETD)
	assert.Equal(t, day(2024, time.December, 12, 19, 40), *times.STA)
	assert.Nil(t, times.ETA)
	assert.Equal(t, day(2024, time.December, 12, 20, 5), *times.ATA)
}

func TestParseFlightView_NoStatus(t *testing.T) {
	_, err := parseFlightView([]byte(`<html><body><p>No flights</p></body></html>`), day(2024, time.December, 11, 0, 0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseFlightView_NoTimes(t *testing.T) {
	_, err := parseFlightView([]byte(`<div class="flight-status">Unknown</div>`), day(2024, time.December, 11, 0, 0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseFlightStats(t *testing.T) {
	times, err := parseFlightStats(fixture(t, "flightstats.html"), day(2024, time.December, 11, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, day(2024, time.December, 11, 13, 0), *times.STD)
	assert.Equal(t, day(2024, time.December, 11, 13, 25), *times.ATD)
	assert.Equal(t, day(2024, time.December, 12, 9, 5), *times.STA)
	assert.Equal(t, day(2024, time.December, 12, 9, 30), *times.ETA)
	assert.Nil(t, times.ATA)
}

func TestParseFlightStats_NoCards(t *testing.T) {
	_, err := parseFlightStats([]byte(`<html><body>Flight not found</body></html>`), day(2024, time.December, 11, 0, 0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseFSValue(t *testing.T) {
	date := day(2024, time.December, 11, 0, 0)
	want := day(2024, time.December, 11, 13, 5)

	for _, v := range []string{
		"2024-12-11T13:05:00",
		"2024-12-11T13:05:00.000",
		"2024-12-11T13:05:00Z",
		"2024-12-11T13:05:00.000+08:00",
		"13:05 CST",
	} {
		got := parseFSValue(v, date)
		if assert.NotNil(t, got, v) {
			assert.Equal(t, want, *got, v)
		}
	}
	assert.Nil(t, parseFSValue("", date))
	assert.Nil(t, parseFSValue("n/a", date))
}

func TestFlightView_Lookup(t *testing.T) {
	body := fixture(t, "flightview.html")
	var gotPath, gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotUA = r.URL.Path, r.URL.RawQuery, r.UserAgent()
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	src := NewFlightView(testFetcher(0), srv.URL+"/flight-tracker/")
	times, err := src.Lookup(context.Background(), Query{
		Airline:          "CA",
		FlightNumber:     "983",
		Date:             day(2024, time.December, 11, 0, 0),
		DepartureAirport: "PEK",
		ArrivalAirport:   "LAX",
	})
	require.NoError(t, err)
	assert.NotNil(t, times.STA)

	assert.Equal(t, "/flight-tracker/CA/983", gotPath)
	assert.Equal(t, "arrapt=LAX&date=20241211&depapt=PEK", gotQuery)
	assert.Contains(t, gotUA, "Mozilla")
	assert.Equal(t, "flightview", src.Name())
}

func TestFlightStats_Lookup(t *testing.T) {
	body := fixture(t, "flightstats.html")
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	src := NewFlightStats(testFetcher(0), srv.URL)
	_, err := src.Lookup(context.Background(), Query{Airline: "CA", FlightNumber: "983", Date: day(2024, time.March, 5, 0, 0)})
	require.NoError(t, err)

	assert.Equal(t, "/CA/983", gotPath)
	assert.Equal(t, "date=05&month=03&year=2024", gotQuery)
}

func TestFetcher_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := testFetcher(2).Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := testFetcher(2).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetcher_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testFetcher(2).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewSources(t *testing.T) {
	cfg := config.Default().Lookup

	sources, err := NewSources(cfg, testFetcher(0))
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "flightview", sources[0].Name())
	assert.Equal(t, "flightstats", sources[1].Name())

	cfg.Sources = []string{"flightaware"}
	_, err = NewSources(cfg, testFetcher(0))
	assert.Error(t, err)
}
