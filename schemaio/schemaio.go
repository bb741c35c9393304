// Package schemaio reads and writes schema documents. A document is the
// YAML or JSON form of a table schema: a version header, the table options,
// and the declared columns, checks, and index levels. Checks serialize by
// registry name and arguments, so only builtin checks round-trip; a schema
// carrying custom checks refuses to serialize.
package schemaio

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

const (
	// DocSchemaType tags documents this package understands.
	DocSchemaType = "table"
	// DocVersion is the document format version written and accepted.
	DocVersion = "1"
)

// Document is the wire form of a table schema.
type Document struct {
	SchemaType  string `yaml:"schema_type" json:"schema_type"`
	Version     string `yaml:"version" json:"version"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Title       string `yaml:"title,omitempty" json:"title,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Columns []ColumnDoc `yaml:"columns" json:"columns"`
	Checks  []CheckDoc  `yaml:"checks,omitempty" json:"checks,omitempty"`

	Index []IndexDoc `yaml:"index,omitempty" json:"index,omitempty"`
	// IndexName, IndexUnordered, IndexCoerce, and IndexUnique apply to
	// multi-level indexes only.
	IndexName      string   `yaml:"index_name,omitempty" json:"index_name,omitempty"`
	IndexUnordered bool     `yaml:"index_unordered,omitempty" json:"index_unordered,omitempty"`
	IndexCoerce    bool     `yaml:"index_coerce,omitempty" json:"index_coerce,omitempty"`
	IndexUnique    []string `yaml:"index_unique,omitempty" json:"index_unique,omitempty"`

	DType             string         `yaml:"dtype,omitempty" json:"dtype,omitempty"`
	Coerce            bool           `yaml:"coerce,omitempty" json:"coerce,omitempty"`
	Strict            Strict         `yaml:"strict" json:"strict"`
	Ordered           bool           `yaml:"ordered,omitempty" json:"ordered,omitempty"`
	Unique            [][]string     `yaml:"unique,omitempty" json:"unique,omitempty"`
	ReportDuplicates  string         `yaml:"report_duplicates,omitempty" json:"report_duplicates,omitempty"`
	UniqueColumnNames bool           `yaml:"unique_column_names,omitempty" json:"unique_column_names,omitempty"`
	AddMissingColumns bool           `yaml:"add_missing_columns,omitempty" json:"add_missing_columns,omitempty"`
	DropInvalidRows   bool           `yaml:"drop_invalid_rows,omitempty" json:"drop_invalid_rows,omitempty"`
	Metadata          map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// ColumnDoc is the wire form of one column declaration.
type ColumnDoc struct {
	Name             string         `yaml:"name" json:"name"`
	DType            string         `yaml:"dtype,omitempty" json:"dtype,omitempty"`
	Checks           []CheckDoc     `yaml:"checks,omitempty" json:"checks,omitempty"`
	Nullable         bool           `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	Unique           bool           `yaml:"unique,omitempty" json:"unique,omitempty"`
	ReportDuplicates string         `yaml:"report_duplicates,omitempty" json:"report_duplicates,omitempty"`
	Coerce           bool           `yaml:"coerce,omitempty" json:"coerce,omitempty"`
	Required         *bool          `yaml:"required,omitempty" json:"required,omitempty"`
	Regex            bool           `yaml:"regex,omitempty" json:"regex,omitempty"`
	Title            string         `yaml:"title,omitempty" json:"title,omitempty"`
	Description      string         `yaml:"description,omitempty" json:"description,omitempty"`
	Default          any            `yaml:"default,omitempty" json:"default,omitempty"`
	Metadata         map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	DropInvalidRows  bool           `yaml:"drop_invalid_rows,omitempty" json:"drop_invalid_rows,omitempty"`
}

// IndexDoc is the wire form of one index level.
type IndexDoc struct {
	Name             string     `yaml:"name,omitempty" json:"name,omitempty"`
	DType            string     `yaml:"dtype,omitempty" json:"dtype,omitempty"`
	Checks           []CheckDoc `yaml:"checks,omitempty" json:"checks,omitempty"`
	Nullable         bool       `yaml:"nullable,omitempty" json:"nullable,omitempty"`
	Unique           bool       `yaml:"unique,omitempty" json:"unique,omitempty"`
	ReportDuplicates string     `yaml:"report_duplicates,omitempty" json:"report_duplicates,omitempty"`
	Coerce           bool       `yaml:"coerce,omitempty" json:"coerce,omitempty"`
	Title            string     `yaml:"title,omitempty" json:"title,omitempty"`
	Description      string     `yaml:"description,omitempty" json:"description,omitempty"`
}

// CheckDoc is the wire form of one check: the registry name, its arguments,
// and the reporting options.
type CheckDoc struct {
	Name            string   `yaml:"name" json:"name"`
	Args            []any    `yaml:"args,omitempty" json:"args,omitempty"`
	Error           string   `yaml:"error,omitempty" json:"error,omitempty"`
	Groupby         []string `yaml:"groupby,omitempty" json:"groupby,omitempty"`
	IgnoreNulls     bool     `yaml:"ignore_nulls,omitempty" json:"ignore_nulls,omitempty"`
	MaxFailureCases int      `yaml:"max_failure_cases,omitempty" json:"max_failure_cases,omitempty"`
	Title           string   `yaml:"title,omitempty" json:"title,omitempty"`
	Description     string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// Strict wraps the strictness setting, which serializes as true, false, or
// the string "filter".
type Strict struct {
	Value schema.Strictness
}

func (s Strict) marshal() any {
	switch s.Value {
	case schema.Filter:
		return "filter"
	case schema.EnforceStrict:
		return true
	}
	return false
}

func (s Strict) MarshalYAML() (any, error) {
	return s.marshal(), nil
}

func (s *Strict) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	v, err := schema.ParseStrictness(raw)
	if err != nil {
		return err
	}
	s.Value = v
	return nil
}

func (s Strict) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.marshal())
}

func (s *Strict) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := schema.ParseStrictness(raw)
	if err != nil {
		return err
	}
	s.Value = v
	return nil
}

// FromYAML reads a YAML schema document.
func FromYAML(r io.Reader) (*schema.Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, schemaerr.WrapInit(err, "invalid schema document")
	}
	return Decode(&doc)
}

// ToYAML writes the schema as a YAML document.
func ToYAML(w io.Writer, t *schema.Table) error {
	doc, err := Encode(t)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// FromJSON reads a JSON schema document.
func FromJSON(r io.Reader) (*schema.Table, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, schemaerr.WrapInit(err, "invalid schema document")
	}
	return Decode(&doc)
}

// ToJSON writes the schema as a JSON document.
func ToJSON(w io.Writer, t *schema.Table) error {
	doc, err := Encode(t)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
