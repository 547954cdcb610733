package models

import (
	"bytes"
	"fmt"

	"github.com/ajitpratap0/lakeflow/pkg/json"
)

// Row is one query result row. It marshals as a JSON object whose keys keep
// the column order of the query.
type Row struct {
	Columns []string
	Values  []interface{}
}

// NewRow builds a row; columns and values must have the same length.
func NewRow(columns []string, values []interface{}) Row {
	return Row{Columns: columns, Values: values}
}

// Get returns the value of column name.
func (r Row) Get(name string) (interface{}, bool) {
	for i, c := range r.Columns {
		if c == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON implements json.Marshaler
func (r Row) MarshalJSON() ([]byte, error) {
	if len(r.Columns) != len(r.Values) {
		return nil, fmt.Errorf("row has %d columns but %d values", len(r.Columns), len(r.Values))
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeRows serializes rows as an indented JSON array.
func EncodeRows(rows []Row) ([]byte, error) {
	if rows == nil {
		rows = []Row{}
	}
	out, err := json.EncodeDocument(rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return out, nil
}
