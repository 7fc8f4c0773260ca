// Package model defines the record, frame and matrix types shared by the
// feature pipeline.
package model

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Record is one customer row keyed by attribute name. Cell values are
// string, int64, float64, bool or nil. A nil (or NaN) cell is missing.
type Record map[string]any

// Frame is an ordered batch of records that share one column list.
type Frame struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// FeatureVector maps a final column name to its numeric value.
type FeatureVector map[string]float64

// Matrix is the numeric boundary handed to the model scorer.
// Rows are aligned 1:1 with the input records.
type Matrix struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// NewFrame builds a frame from records. Columns follow first appearance;
// keys first seen in the same record are added in sorted order.
func NewFrame(records []Record) Frame {
	seen := map[string]bool{}
	var cols []string
	for _, r := range records {
		var fresh []string
		for k := range r {
			if !seen[k] {
				seen[k] = true
				fresh = append(fresh, k)
			}
		}
		sort.Strings(fresh)
		cols = append(cols, fresh...)
	}
	return Frame{Columns: cols, Rows: records}
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// Has reports whether the frame carries the named column.
func (f Frame) Has(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column in row order.
func (f Frame) Column(name string) []any {
	out := make([]any, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r[name]
	}
	return out
}

// Clone returns a deep copy of the frame's column list and records.
func (f Frame) Clone() Frame {
	out := Frame{
		Columns: append([]string(nil), f.Columns...),
		Rows:    make([]Record, len(f.Rows)),
	}
	for i, r := range f.Rows {
		nr := make(Record, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// Kind classifies a column by the Go types of its non-missing cells.
type Kind int

const (
	KindEmpty Kind = iota
	KindNumeric
	KindBool
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	}
	return "empty"
}

// ColumnKind inspects the non-missing cells of a column. Any string cell
// makes the column textual; a mix of bools and numbers is numeric.
func (f Frame) ColumnKind(name string) Kind {
	kind := KindEmpty
	for _, r := range f.Rows {
		v := r[name]
		if IsMissing(v) {
			continue
		}
		switch v.(type) {
		case string:
			return KindText
		case bool:
			if kind == KindEmpty {
				kind = KindBool
			}
		default:
			kind = KindNumeric
		}
	}
	return kind
}

// IsMissing reports whether v is an absent cell.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// AsFloat converts a numeric cell to float64. Strings are parsed after
// trimming; bools become 0 or 1.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// AsString renders a cell as text for categorical handling.
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	}
	return ""
}
