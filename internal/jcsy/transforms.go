package jcsy

import (
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
)

// DateLayout is the layout jcsy_date produces and Build expects.
const DateLayout = "2006-01-02"

type transformFunc func(value string, now time.Time) string

// transforms is the closed set of named transforms a schema may reference.
var transforms = map[string]transformFunc{
	"trim":                func(v string, _ time.Time) string { return strings.TrimSpace(v) },
	"upper":               func(v string, _ time.Time) string { return strings.ToUpper(v) },
	"strip_slash":         func(v string, _ time.Time) string { return strings.Trim(strings.TrimSpace(v), "/") },
	"strip_leading_zeros": stripLeadingZeros,
	"jcsy_date":           jcsyDate,
	"direction":           direction,
}

func stripLeadingZeros(v string, _ time.Time) string {
	v = strings.TrimSpace(v)
	trimmed := strings.TrimLeft(v, "0")
	if trimmed == "" && v != "" {
		return "0"
	}
	return trimmed
}

// jcsyDate turns 11DEC24 or 11DEC into 2024-12-11. Two-digit years below 70
// are 20xx. Without a year the current year is used, except that a December
// list read in January belongs to the previous year.
func jcsyDate(v string, now time.Time) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if len(v) < 5 {
		return ""
	}
	day, err := strconv.Atoi(v[:2])
	if err != nil {
		return ""
	}
	month, ok := months[v[2:5]]
	if !ok {
		return ""
	}

	var year int
	switch len(v) {
	case 5:
		year = now.Year()
		if month == time.December && now.Month() == time.January {
			year--
		}
	case 7:
		yy, err := strconv.Atoi(v[5:])
		if err != nil {
			return ""
		}
		if yy < 70 {
			year = 2000 + yy
		} else {
			year = 1900 + yy
		}
	default:
		return ""
	}

	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day {
		return ""
	}
	return d.Format(DateLayout)
}

func direction(v string, _ time.Time) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "I":
		return string(domain.DirectionArrival)
	case "O":
		return string(domain.DirectionDeparture)
	}
	return ""
}

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

type converterFunc func(value string, f *Field) any

// converters is the closed set of field types.
var converters = map[string]converterFunc{
	"string": func(v string, _ *Field) any { return strings.TrimSpace(v) },
	"int":    toInt,
	"bool":   toBool,
	"date":   toDate,
	"hhmm":   toHHMM,
}

func toInt(v string, f *Field) any {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err == nil {
		return n
	}
	if d, err := strconv.Atoi(strings.TrimSpace(f.Default)); err == nil {
		return d
	}
	return 0
}

func toBool(v string, f *Field) any {
	key := strings.ToUpper(strings.TrimSpace(v))
	for k, b := range f.Mapping {
		if strings.ToUpper(k) == key {
			return b
		}
	}
	return false
}

func toDate(v string, f *Field) any {
	layout := f.Format
	if layout == "" {
		layout = DateLayout
	}
	t, err := time.Parse(layout, strings.TrimSpace(v))
	if err != nil {
		return nil
	}
	return t
}

// toHHMM normalises a 4-digit clock time to HH:MM, or "" when it is not one.
func toHHMM(v string, _ *Field) any {
	v = strings.TrimSpace(v)
	if len(v) != 4 {
		return ""
	}
	h, err1 := strconv.Atoi(v[:2])
	m, err2 := strconv.Atoi(v[2:])
	if err1 != nil || err2 != nil || h > 23 || m > 59 {
		return ""
	}
	return v[:2] + ":" + v[2:]
}
