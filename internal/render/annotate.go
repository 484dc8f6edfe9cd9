// Package render turns a processed list back into text for printing and
// export.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
)

// Annotate writes the resolved time of every updated row into the original
// text, right after the row's airport. Other lines are returned unchanged.
func Annotate(text string, list *domain.ListFlight) string {
	if list == nil {
		return text
	}
	lines := strings.Split(text, "\n")
	for _, row := range list.Rows {
		if row.Status != domain.RowStatusUpdated || row.Row < 0 || row.Row >= len(lines) {
			continue
		}
		t := row.Times.Best(list.Direction)
		if t == nil {
			continue
		}
		line := lines[row.Row]
		cr := strings.HasSuffix(line, "\r")
		line = strings.TrimSuffix(line, "\r")

		annotated, ok := annotateLine(line, row.Airport(list.Direction), Stamp(*t, row.DayOffset))
		if !ok {
			continue
		}
		if cr {
			annotated += "\r"
		}
		lines[row.Row] = annotated
	}
	return strings.Join(lines, "\n")
}

// Stamp formats t as HHMM with "-" for a previous-day and "+" for a
// next-day result.
func Stamp(t time.Time, dayOffset int) string {
	s := t.Format("1504")
	switch {
	case dayOffset < 0:
		s += "-"
	case dayOffset > 0:
		s += "+"
	}
	return s
}

func annotateLine(line, airport, stamp string) (string, bool) {
	if airport == "" {
		return line, false
	}
	// the airport follows the flight code
	from := strings.IndexByte(line, ' ')
	if from < 0 {
		return line, false
	}
	at := strings.Index(line[from:], airport)
	if at < 0 {
		return line, false
	}
	at += from
	end := at + len(airport)
	rest := line[end:]

	gap := len(rest) - len(strings.TrimLeft(rest, " "))
	tail := rest[gap:]
	if gap > 0 && isClock(tail) {
		width := 4
		if len(tail) > 4 && (tail[4] == '-' || tail[4] == '+') {
			width = 5
		}
		tail = tail[width:]
		// keep the following columns aligned when the day marker changes
		switch {
		case len(stamp) > width && strings.HasPrefix(tail, "  "):
			tail = tail[1:]
		case len(stamp) < width && tail != "":
			tail = " " + tail
		}
		return line[:end] + rest[:gap] + stamp + tail, true
	}
	sep := ""
	if rest != "" && gap == 0 {
		sep = " "
	}
	return line[:end] + " " + stamp + sep + rest, true
}

// isClock reports whether s starts with a 4-digit token.
func isClock(s string) bool {
	if len(s) < 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) == 4 || s[4] == ' ' || s[4] == '-' || s[4] == '+'
}

// Delay is the positive difference between actual and scheduled, rounded to
// the minute: "15m", "2h" or "2h5m". Early or missing times give "".
func Delay(actual, scheduled *time.Time) string {
	if actual == nil || scheduled == nil {
		return ""
	}
	d := actual.Sub(*scheduled).Round(time.Minute)
	if d <= 0 {
		return ""
	}
	h, m := int(d.Hours()), int(d.Minutes())%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%dm", h, m)
	}
}

// RowDelay applies Delay to the side of the flight that matters for d.
func RowDelay(t domain.FlightTimes, d domain.Direction) string {
	if d == domain.DirectionArrival {
		actual := t.ATA
		if actual == nil {
			actual = t.ETA
		}
		return Delay(actual, t.STA)
	}
	actual := t.ATD
	if actual == nil {
		actual = t.ETD
	}
	return Delay(actual, t.STD)
}
