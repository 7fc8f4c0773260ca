// Package align reindexes encoded feature frames against a trained schema.
package align

import (
	"fmt"

	"github.com/rcliao/churn-features/internal/model"
	"github.com/rcliao/churn-features/internal/schema"
)

// NonNumericCellError reports a schema column whose cell is not numeric.
type NonNumericCellError struct {
	Row    int
	Column string
	Value  any
}

func (e *NonNumericCellError) Error() string {
	return fmt.Sprintf("row %d column %q: non-numeric value %v (%T)", e.Row, e.Column, e.Value, e.Value)
}

// Align returns a matrix with exactly the columns of s, in order. Schema
// columns absent from f (or missing in a row) are 0; columns of f that
// s does not list are dropped. The only failure is a kept cell that
// cannot be read as a number.
func Align(f model.Frame, s *schema.Schema) (model.Matrix, error) {
	cols := s.Columns()
	m := model.Matrix{
		Columns: cols,
		Rows:    make([][]float64, len(f.Rows)),
	}
	for i, r := range f.Rows {
		row := make([]float64, len(cols))
		for j, c := range cols {
			v, ok := r[c]
			if !ok || model.IsMissing(v) {
				continue
			}
			x, ok := model.AsFloat(v)
			if !ok {
				return model.Matrix{}, &NonNumericCellError{Row: i, Column: c, Value: v}
			}
			row[j] = x
		}
		m.Rows[i] = row
	}
	return m, nil
}

// AlignVector aligns a single feature vector.
func AlignVector(v model.FeatureVector, s *schema.Schema) []float64 {
	cols := s.Columns()
	out := make([]float64, len(cols))
	for j, c := range cols {
		out[j] = v[c]
	}
	return out
}

// AlignMatrix re-aligns an existing matrix to s. Aligning a matrix that
// already matches s returns an equal matrix.
func AlignMatrix(m model.Matrix, s *schema.Schema) model.Matrix {
	src := make(map[string]int, len(m.Columns))
	for j, c := range m.Columns {
		src[c] = j
	}
	cols := s.Columns()
	out := model.Matrix{Columns: cols, Rows: make([][]float64, len(m.Rows))}
	for i, r := range m.Rows {
		row := make([]float64, len(cols))
		for j, c := range cols {
			if k, ok := src[c]; ok && k < len(r) {
				row[j] = r[k]
			}
		}
		out.Rows[i] = row
	}
	return out
}

// Frame converts a matrix back into a frame of float64 cells.
func Frame(m model.Matrix) model.Frame {
	f := model.Frame{
		Columns: append([]string(nil), m.Columns...),
		Rows:    make([]model.Record, len(m.Rows)),
	}
	for i, r := range m.Rows {
		rec := make(model.Record, len(m.Columns))
		for j, c := range m.Columns {
			rec[c] = r[j]
		}
		f.Rows[i] = rec
	}
	return f
}
