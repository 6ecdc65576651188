// Package frame holds the tabular results returned by providers and the
// rules that turn them into flat JSON records.
package frame

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/vnmarket/internal/contracts"
)

// Frame is an ordered set of columns with one value slice per row
type Frame struct {
	Columns []string
	Rows    [][]interface{}
}

// New creates an empty frame with the given columns
func New(columns ...string) *Frame {
	return &Frame{Columns: columns}
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Append adds a row; the value count must match the column count
func (f *Frame) Append(values ...interface{}) error {
	if len(values) != len(f.Columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.Columns))
	}
	f.Rows = append(f.Rows, values)
	return nil
}

// FromMaps builds a frame from provider objects. Nested objects are
// flattened with "_"; columns keep first-seen order, keys within a row sorted.
func FromMaps(items []map[string]interface{}) *Frame {
	f := &Frame{}
	index := make(map[string]int)

	flat := make([]map[string]interface{}, len(items))
	for i, item := range items {
		flat[i] = Flatten(item)

		keys := make([]string, 0, len(flat[i]))
		for k := range flat[i] {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(f.Columns)
				f.Columns = append(f.Columns, k)
			}
		}
	}

	for _, item := range flat {
		row := make([]interface{}, len(f.Columns))
		for k, v := range item {
			row[index[k]] = v
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

// Column returns the index of name, or -1
func (f *Frame) Column(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Rename changes column names using mapping; unknown columns are kept.
// A renamed column whose new name is taken more than once keeps its old name
// as a suffix, e.g. "Other income (isa12)".
func (f *Frame) Rename(mapping map[string]string) {
	names := make([]string, len(f.Columns))
	counts := make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c
		if to, ok := mapping[c]; ok && to != "" {
			names[i] = to
		}
		counts[names[i]]++
	}

	for i, c := range f.Columns {
		if names[i] != c && counts[names[i]] > 1 {
			names[i] = fmt.Sprintf("%s (%s)", names[i], c)
		}
	}
	f.Columns = names
}

// ParseTime converts string cells of column into time.Time using the first
// layout that matches. Cells that match no layout are left as they are.
func (f *Frame) ParseTime(column string, layouts ...string) {
	col := f.Column(column)
	if col < 0 {
		return
	}

	for _, row := range f.Rows {
		s, ok := row[col].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.ParseInLocation(layout, s, contracts.Location); err == nil {
				row[col] = t
				break
			}
		}
	}
}

// MapStrings applies fn to every string cell
func (f *Frame) MapStrings(fn func(string) string) {
	for _, row := range f.Rows {
		for i, v := range row {
			if s, ok := v.(string); ok {
				row[i] = fn(s)
			}
		}
	}
}

// Flatten collapses nested objects into a single level joined with "_"
func Flatten(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	flattenInto(out, "", m)
	return out
}

func flattenInto(out map[string]interface{}, prefix string, m map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

// Rule selects which coercions Records applies
type Rule int

const (
	// CoerceAll stringifies datetimes and converts numerics to float64
	CoerceAll Rule = iota
	// NumericOnly converts numerics to float64 and leaves everything else
	NumericOnly
)

// Records converts every row to a flat record; never returns nil
func (f *Frame) Records(rule Rule) []contracts.Record {
	out := make([]contracts.Record, 0, len(f.Rows))
	for _, row := range f.Rows {
		rec := make(contracts.Record, len(f.Columns))
		for i, col := range f.Columns {
			rec[col] = Coerce(row[i], rule)
		}
		out = append(out, rec)
	}
	return out
}

// Coerce applies rule to one value
func Coerce(v interface{}, rule Rule) interface{} {
	switch val := v.(type) {
	case time.Time:
		if rule == CoerceAll {
			return formatTime(val)
		}
		return val
	case *time.Time:
		if val == nil {
			return nil
		}
		return Coerce(*val, rule)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case []interface{}:
		items := make([]interface{}, len(val))
		for i, item := range val {
			items[i] = Coerce(item, rule)
		}
		return items
	default:
		return v
	}
}

func formatTime(t time.Time) string {
	return t.In(contracts.Location).Format(contracts.TimestampLayout)
}
