// Package jcsy parses JCSY flight lists using a YAML schema that describes
// how header, title and flight row lines are sliced into named fields.
package jcsy

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed schema/jcsy.yaml
var defaultSchema []byte

type Schema struct {
	MinLineLength int           `yaml:"min_line_length"`
	Header        HeaderSection `yaml:"header"`
	Title         TitleSection  `yaml:"title"`
	Row           RowSection    `yaml:"row"`

	headerRe *regexp.Regexp
	titleRe  *regexp.Regexp
	rowRe    *regexp.Regexp
}

// HeaderSection matches the header line with a regex whose named groups
// become header fields.
type HeaderSection struct {
	Pattern    string            `yaml:"pattern"`
	Transforms map[string]string `yaml:"transforms"`
}

// TitleSection matches the column label line. The byte offset of each label
// is stored in the context record as col_<name>.
type TitleSection struct {
	Pattern string            `yaml:"pattern"`
	Columns map[string]string `yaml:"columns"`
}

type RowSection struct {
	Pattern string  `yaml:"pattern"`
	Fields  []Field `yaml:"fields"`
}

// Field describes one value cut out of a row. Extractors are tried in the
// order position, group, column, token; the first one that applies wins.
type Field struct {
	Name      string          `yaml:"name"`
	Position  []int           `yaml:"position"`
	Group     string          `yaml:"group"`
	Column    string          `yaml:"column"`
	Width     int             `yaml:"width"`
	Token     *int            `yaml:"token"`
	Sep       string          `yaml:"sep"`
	Part      int             `yaml:"part"`
	Type      string          `yaml:"type"`
	Format    string          `yaml:"format"`
	Mapping   map[string]bool `yaml:"mapping"`
	Default   string          `yaml:"default"`
	Transform string          `yaml:"transform"`

	sepRe *regexp.Regexp
}

func DefaultSchema() *Schema {
	s, err := ParseSchema(defaultSchema)
	if err != nil {
		panic(fmt.Sprintf("embedded jcsy schema: %v", err))
	}
	return s
}

// LoadSchema reads a schema file. An empty path yields the embedded default.
func LoadSchema(path string) (*Schema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(data)
}

func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if s.MinLineLength == 0 {
		s.MinLineLength = 12
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate compiles the patterns and rejects unknown transform and type
// names so that a bad schema fails at load time rather than mid-parse.
func (s *Schema) Validate() error {
	var err error
	if s.Header.Pattern == "" {
		return fmt.Errorf("schema: header pattern is required")
	}
	if s.headerRe, err = regexp.Compile(s.Header.Pattern); err != nil {
		return fmt.Errorf("schema: header pattern: %w", err)
	}
	for field, name := range s.Header.Transforms {
		if _, ok := transforms[name]; !ok {
			return fmt.Errorf("schema: header field %s: unknown transform %q", field, name)
		}
	}
	if s.Title.Pattern != "" {
		if s.titleRe, err = regexp.Compile(s.Title.Pattern); err != nil {
			return fmt.Errorf("schema: title pattern: %w", err)
		}
	}
	if s.Row.Pattern == "" {
		return fmt.Errorf("schema: row pattern is required")
	}
	if s.rowRe, err = regexp.Compile(s.Row.Pattern); err != nil {
		return fmt.Errorf("schema: row pattern: %w", err)
	}

	groups := map[string]bool{}
	for _, g := range s.rowRe.SubexpNames() {
		if g != "" {
			groups[g] = true
		}
	}
	for i := range s.Row.Fields {
		f := &s.Row.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("schema: row field %d has no name", i)
		}
		if f.Position != nil && len(f.Position) != 2 {
			return fmt.Errorf("schema: field %s: position needs [start, end]", f.Name)
		}
		if f.Group != "" && !groups[f.Group] {
			return fmt.Errorf("schema: field %s: row pattern has no group %q", f.Name, f.Group)
		}
		if f.Position == nil && f.Group == "" && f.Column == "" && f.Token == nil {
			return fmt.Errorf("schema: field %s has no extractor", f.Name)
		}
		if f.Transform != "" {
			if _, ok := transforms[f.Transform]; !ok {
				return fmt.Errorf("schema: field %s: unknown transform %q", f.Name, f.Transform)
			}
		}
		if _, ok := converters[typeOf(f)]; !ok {
			return fmt.Errorf("schema: field %s: unknown type %q", f.Name, f.Type)
		}
		if f.Sep != "" {
			if f.sepRe, err = regexp.Compile(f.Sep); err != nil {
				return fmt.Errorf("schema: field %s: sep: %w", f.Name, err)
			}
		}
	}
	return nil
}

func typeOf(f *Field) string {
	if f.Type == "" {
		return "string"
	}
	return f.Type
}
