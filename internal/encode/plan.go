package encode

import (
	"github.com/rcliao/churn-features/internal/model"
)

type treatment int

const (
	keep treatment = iota
	toNumber
	toBinary
	toOneHot
	drop
)

// columnPlan is the encoding decided for one input column.
type columnPlan struct {
	name    string
	treat   treatment
	mapping map[string]int // toBinary
	levels  []string       // toOneHot, in output order
}

// apply builds the encoded frame. Columns that are not one-hot expanded
// keep their position; indicator columns follow in plan order.
func apply(f model.Frame, plans []columnPlan) model.Frame {
	var cols, expanded []string
	for _, p := range plans {
		switch p.treat {
		case toOneHot:
			for _, lv := range p.levels {
				expanded = append(expanded, OneHotName(p.name, lv))
			}
		case drop:
		default:
			cols = append(cols, p.name)
		}
	}
	cols = append(cols, expanded...)

	rows := make([]model.Record, len(f.Rows))
	for i, r := range f.Rows {
		out := make(model.Record, len(cols))
		for _, p := range plans {
			v := r[p.name]
			switch p.treat {
			case keep:
				out[p.name] = v
			case toNumber:
				out[p.name] = numberCell(v)
			case toBinary:
				// Missing cells in a binary column encode to 0.
				var code int64
				if !model.IsMissing(v) {
					code = int64(p.mapping[model.AsString(v)])
				}
				out[p.name] = code
			case toOneHot:
				s, missing := model.AsString(v), model.IsMissing(v)
				for _, lv := range p.levels {
					var hit int64
					if !missing && s == lv {
						hit = 1
					}
					out[OneHotName(p.name, lv)] = hit
				}
			}
		}
		rows[i] = out
	}
	return model.Frame{Columns: cols, Rows: rows}
}

// numberCell casts bools to 0/1 and numeric strings to float64. Missing
// cells stay missing.
func numberCell(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case int64, float64:
		return x
	}
	if model.IsMissing(v) {
		return nil
	}
	if f, ok := model.AsFloat(v); ok {
		return f
	}
	return v
}

// allNumeric reports whether every level parses as a number.
func allNumeric(levels []string) bool {
	if len(levels) == 0 {
		return false
	}
	for _, lv := range levels {
		if _, ok := model.AsFloat(lv); !ok {
			return false
		}
	}
	return true
}
