package jcsy

import (
	"strings"
	"time"
)

// Record holds named field values. Values are strings unless the schema
// gives the field a type.
type Record map[string]any

func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

func (r Record) Int(key string) int {
	if v, ok := r[key].(int); ok {
		return v
	}
	return 0
}

type Row struct {
	Index  int    `json:"index"`
	Line   string `json:"line"`
	Record Record `json:"record"`
}

// Document is the result of parsing a list. Lines keeps every input line so
// that the list can be rendered back byte for byte.
type Document struct {
	Lines      []string `json:"lines"`
	HeaderLine int      `json:"header_line"`
	Header     Record   `json:"header"`
	Context    Record   `json:"context"`
	Rows       []Row    `json:"rows"`
}

type Parser struct {
	schema *Schema
	now    func() time.Time
}

type Option func(*Parser)

// WithClock sets the clock used to infer years missing from list dates.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

func NewParser(schema *Schema, opts ...Option) *Parser {
	if schema == nil {
		schema = DefaultSchema()
	}
	p := &Parser{schema: schema, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse never fails: short or unrecognised lines are left out of the
// header, context and rows but remain in Document.Lines.
func (p *Parser) Parse(text string) *Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	doc := &Document{
		Lines:      strings.Split(text, "\n"),
		HeaderLine: -1,
		Header:     Record{},
		Context:    Record{},
	}
	now := p.now()

	var rowLines []int
	for i, raw := range doc.Lines {
		line := strings.TrimRight(raw, " \t")
		if len(line) < p.schema.MinLineLength {
			continue
		}
		switch {
		case p.schema.headerRe.MatchString(line):
			doc.Header = p.parseHeader(line, now)
			doc.HeaderLine = i
		case p.schema.titleRe != nil && p.schema.titleRe.MatchString(line):
			doc.Context = p.parseTitle(line)
		case p.schema.rowRe.MatchString(line):
			rowLines = append(rowLines, i)
		}
	}

	for _, i := range rowLines {
		line := strings.TrimRight(doc.Lines[i], " \t")
		rec := Record{}
		for k, v := range doc.Header {
			rec[k] = v
		}
		for k, v := range p.parseRow(line, doc.Context, now) {
			rec[k] = v
		}
		rec["line"] = doc.Lines[i]
		doc.Rows = append(doc.Rows, Row{Index: i, Line: doc.Lines[i], Record: rec})
	}
	return doc
}

func (p *Parser) parseHeader(line string, now time.Time) Record {
	rec := Record{}
	m := p.schema.headerRe.FindStringSubmatch(line)
	if m == nil {
		return rec
	}
	for i, name := range p.schema.headerRe.SubexpNames() {
		if name == "" || i >= len(m) {
			continue
		}
		v := m[i]
		if t, ok := p.schema.Header.Transforms[name]; ok {
			v = transforms[t](v, now)
		}
		rec[name] = v
	}
	return rec
}

func (p *Parser) parseTitle(line string) Record {
	rec := Record{}
	for name, label := range p.schema.Title.Columns {
		if idx := strings.Index(line, label); idx >= 0 {
			rec["col_"+name] = idx
		}
	}
	return rec
}

func (p *Parser) parseRow(line string, ctx Record, now time.Time) Record {
	rec := Record{}
	groups := map[string]string{}
	if m := p.schema.rowRe.FindStringSubmatch(line); m != nil {
		for i, name := range p.schema.rowRe.SubexpNames() {
			if name != "" {
				groups[name] = m[i]
			}
		}
	}
	tokens := strings.Fields(line)

	for i := range p.schema.Row.Fields {
		f := &p.schema.Row.Fields[i]
		v, ok := extract(f, line, groups, tokens, ctx)
		if ok && f.sepRe != nil {
			parts := f.sepRe.Split(v, -1)
			if f.Part < len(parts) {
				v = parts[f.Part]
			} else {
				ok = false
			}
		}
		if !ok {
			v = f.Default
		}
		if f.Transform != "" {
			v = transforms[f.Transform](v, now)
		}
		rec[f.Name] = converters[typeOf(f)](v, f)
	}
	return rec
}

func extract(f *Field, line string, groups map[string]string, tokens []string, ctx Record) (string, bool) {
	switch {
	case f.Position != nil:
		start, end := f.Position[0], f.Position[1]
		if end < 0 {
			end = len(line) + end + 1
		}
		if start >= len(line) || start < 0 {
			return "", false
		}
		if end > len(line) {
			end = len(line)
		}
		if end <= start {
			return "", false
		}
		return line[start:end], true
	case f.Group != "":
		v, ok := groups[f.Group]
		return v, ok && v != ""
	}

	if f.Column != "" {
		if off, ok := ctx["col_"+f.Column].(int); ok {
			return columnValue(line, off, f.Width)
		}
	}
	if f.Token != nil {
		if *f.Token < len(tokens) {
			return tokens[*f.Token], true
		}
	}
	return "", false
}

// columnValue reads a fixed-width slice at off, or the whitespace-delimited
// token starting there when width is zero.
func columnValue(line string, off, width int) (string, bool) {
	if off >= len(line) || line[off] == ' ' {
		return "", false
	}
	rest := line[off:]
	if width > 0 {
		if width < len(rest) {
			rest = rest[:width]
		}
		return strings.TrimSpace(rest), true
	}
	if end := strings.IndexAny(rest, " \t"); end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}

// ColumnOffset reports where a titled column starts, for callers that
// rewrite lines in place.
func (d *Document) ColumnOffset(name string) (int, bool) {
	off, ok := d.Context["col_"+name].(int)
	return off, ok
}
