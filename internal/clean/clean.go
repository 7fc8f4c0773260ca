// Package clean normalizes raw customer frames: header whitespace,
// identifier columns, the target label and numeric coercion.
package clean

import (
	"math"
	"slices"
	"strings"

	"github.com/rcliao/churn-features/internal/model"
)

// IdentifierColumns are dropped when present.
var IdentifierColumns = []string{"customerID", "CustomerID", "customer_id"}

// DefaultNumeric lists the attributes declared numeric for telco data.
var DefaultNumeric = []string{"SeniorCitizen", "tenure", "MonthlyCharges", "TotalCharges"}

// Options configures Clean.
type Options struct {
	Target  string
	Numeric []string // declared numeric attributes; nil means DefaultNumeric
}

// Report counts the values Clean absorbed instead of failing on.
type Report struct {
	DroppedColumns   []string       `json:"dropped_columns,omitempty"`
	DuplicateHeaders []string       `json:"duplicate_headers,omitempty"`
	UnmappedTargets  int            `json:"unmapped_targets"`
	CoercionFailures map[string]int `json:"coercion_failures,omitempty"`
	FilledMissing    map[string]int `json:"filled_missing,omitempty"`
}

// Clean returns a cleaned copy of f. It never fails on individual cells:
// unparseable numbers become missing (then 0 for declared numerics) and
// target literals other than Yes/No become missing.
func Clean(f model.Frame, opts Options) (model.Frame, Report) {
	numeric := opts.Numeric
	if numeric == nil {
		numeric = DefaultNumeric
	}
	rep := Report{
		CoercionFailures: map[string]int{},
		FilledMissing:    map[string]int{},
	}

	out := tidyHeaders(f, &rep)
	out = dropIdentifiers(out, &rep)

	if opts.Target != "" && out.Has(opts.Target) && out.ColumnKind(opts.Target) == model.KindText {
		mapTarget(out, opts.Target, &rep)
	}

	// SeniorCitizen defaults to 0 before it is typed, unlike TotalCharges
	// below which is coerced first and left missing on failure.
	if out.Has("SeniorCitizen") {
		fillThenInt(out, "SeniorCitizen", &rep)
	}
	if out.Has("TotalCharges") {
		coerceFloat(out, "TotalCharges", &rep)
	}

	for _, c := range numeric {
		if !out.Has(c) || c == "SeniorCitizen" || c == "TotalCharges" {
			continue
		}
		coerceFloat(out, c, &rep)
	}

	// Only declared numerics are filled; textual gaps stay missing.
	for _, c := range numeric {
		if out.Has(c) {
			fillZero(out, c, &rep)
		}
	}
	return out, rep
}

// tidyHeaders trims header whitespace. Headers that trim to the same
// name collapse onto the first one in column order; later ones are
// reported and only fill cells the first left absent.
func tidyHeaders(f model.Frame, rep *Report) model.Frame {
	out := model.Frame{
		Columns: make([]string, 0, len(f.Columns)),
		Rows:    make([]model.Record, len(f.Rows)),
	}
	rename := make(map[string]string, len(f.Columns))
	for _, c := range f.Columns {
		t := strings.TrimSpace(c)
		rename[c] = t
		if slices.Contains(out.Columns, t) {
			rep.DuplicateHeaders = append(rep.DuplicateHeaders, c)
			continue
		}
		out.Columns = append(out.Columns, t)
	}
	for i, r := range f.Rows {
		nr := make(model.Record, len(r))
		for _, c := range f.Columns {
			if v, ok := r[c]; ok {
				if _, taken := nr[rename[c]]; !taken {
					nr[rename[c]] = v
				}
			}
		}
		// Keys outside the header list, in a stable order.
		var extra []string
		for k := range r {
			if _, ok := rename[k]; !ok {
				extra = append(extra, k)
			}
		}
		slices.Sort(extra)
		for _, k := range extra {
			t := strings.TrimSpace(k)
			if _, taken := nr[t]; !taken {
				nr[t] = r[k]
			}
		}
		out.Rows[i] = nr
	}
	return out
}

func dropIdentifiers(f model.Frame, rep *Report) model.Frame {
	kept := f.Columns[:0:0]
	for _, c := range f.Columns {
		if slices.Contains(IdentifierColumns, c) {
			rep.DroppedColumns = append(rep.DroppedColumns, c)
			continue
		}
		kept = append(kept, c)
	}
	for _, r := range f.Rows {
		for _, c := range IdentifierColumns {
			delete(r, c)
		}
	}
	f.Columns = kept
	return f
}

func mapTarget(f model.Frame, target string, rep *Report) {
	for _, r := range f.Rows {
		v := r[target]
		if model.IsMissing(v) {
			continue
		}
		switch strings.TrimSpace(model.AsString(v)) {
		case "No":
			r[target] = int64(0)
		case "Yes":
			r[target] = int64(1)
		default:
			r[target] = nil
			rep.UnmappedTargets++
		}
	}
}

func fillThenInt(f model.Frame, col string, rep *Report) {
	for _, r := range f.Rows {
		v := r[col]
		if model.IsMissing(v) {
			r[col] = int64(0)
			rep.FilledMissing[col]++
			continue
		}
		x, ok := model.AsFloat(v)
		if !ok {
			r[col] = int64(0)
			rep.CoercionFailures[col]++
			continue
		}
		r[col] = int64(math.Trunc(x))
	}
}

func coerceFloat(f model.Frame, col string, rep *Report) {
	for _, r := range f.Rows {
		v := r[col]
		if model.IsMissing(v) {
			r[col] = nil
			continue
		}
		switch v.(type) {
		case int64, float64:
			continue
		}
		x, ok := model.AsFloat(v)
		if !ok {
			r[col] = nil
			rep.CoercionFailures[col]++
			continue
		}
		r[col] = x
	}
}

func fillZero(f model.Frame, col string, rep *Report) {
	for _, r := range f.Rows {
		if model.IsMissing(r[col]) {
			r[col] = 0.0
			rep.FilledMissing[col]++
		}
	}
}
