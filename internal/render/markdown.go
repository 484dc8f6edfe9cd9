package render

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/domain"
)

const (
	DefaultHeaderTemplate = "## {{.Airline}}{{.FlightNumber}} {{date .FlightDate}} {{.Airport}} {{flag .Direction}}\n\n" +
		"| Flight | Airport | Time | Delay | Booked F/Y | Checked F/Y+INF | Bags |\n" +
		"|---|---|---|---|---|---|---|"
	DefaultRowTemplate = "| {{.Row.Airline}}{{.Row.FlightNumber}} | {{airport .Row .Direction}} | {{hhmm .Time}} | {{delay .Row.Times .Direction}} " +
		"| {{.Row.Counts.BookedNonEconomy}}/{{.Row.Counts.BookedEconomy}} " +
		"| {{.Row.Counts.CheckedNonEconomy}}/{{.Row.Counts.CheckedEconomy}}+{{.Row.Counts.CheckedInfant}} " +
		"| {{.Row.Counts.BagPieces}}/{{.Row.Counts.BagWeight}} |"
)

// Templates holds the markdown header and row templates. Empty fields fall
// back to the defaults.
type Templates struct {
	Header string
	Row    string
}

func TemplatesFrom(cfg config.RenderConfig) Templates {
	return Templates{Header: cfg.MarkdownHeader, Row: cfg.MarkdownRow}
}

// RowData is what the row template is executed with.
type RowData struct {
	Row       domain.QueryFlight
	Direction domain.Direction
	Time      *time.Time
}

var funcs = template.FuncMap{
	"flag": func(d domain.Direction) string { return d.Flag() },
	"airport": func(q domain.QueryFlight, d domain.Direction) string {
		return q.Airport(d)
	},
	"delay": RowDelay,
	"hhmm": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("1504")
	},
	"date": func(t time.Time) string {
		return strings.ToUpper(t.Format("02Jan06"))
	},
}

// Markdown renders the list as a header followed by one table row per
// query flight. Rows without a resolved time show an empty time cell.
func Markdown(list *domain.ListFlight, tpl Templates) (string, error) {
	if tpl.Header == "" {
		tpl.Header = DefaultHeaderTemplate
	}
	if tpl.Row == "" {
		tpl.Row = DefaultRowTemplate
	}
	header, err := template.New("header").Funcs(funcs).Parse(tpl.Header)
	if err != nil {
		return "", fmt.Errorf("parse header template: %w", err)
	}
	row, err := template.New("row").Funcs(funcs).Parse(tpl.Row)
	if err != nil {
		return "", fmt.Errorf("parse row template: %w", err)
	}

	var buf bytes.Buffer
	if err := header.Execute(&buf, list); err != nil {
		return "", fmt.Errorf("render header: %w", err)
	}
	buf.WriteByte('\n')
	for _, q := range list.Rows {
		data := RowData{Row: q, Direction: list.Direction}
		if q.Status == domain.RowStatusUpdated {
			data.Time = q.Times.Best(list.Direction)
		}
		if err := row.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("render row %d: %w", q.Row, err)
		}
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}
