package encode

import (
	"fmt"
	"sort"

	"github.com/rcliao/churn-features/internal/model"
)

// Mode names the encoder operating mode in errors and logs.
type Mode string

const (
	ModeDiscovery      Mode = "discovery"
	ModeReconciliation Mode = "reconciliation"
)

// UnencodableColumnError reports a textual column that no encoding rule
// can turn into numbers.
type UnencodableColumnError struct {
	Column string
	Mode   Mode
	Reason string
}

func (e *UnencodableColumnError) Error() string {
	return fmt.Sprintf("unencodable column %q (%s): %s", e.Column, e.Mode, e.Reason)
}

// EncodeBinary returns the deterministic 0/1 assignment for a column with
// exactly two distinct non-missing values. {Yes,No} and {Male,Female} use
// the known table; any other pair maps the lexicographically smaller
// value to 0. The result never depends on row order.
func EncodeBinary(values []any) (map[string]int, bool) {
	return binaryMapping(distinct(values))
}

func binaryMapping(levels []string) (map[string]int, bool) {
	if len(levels) != 2 {
		return nil, false
	}
	if p, ok := matchPair(levels); ok {
		return p.mapping(), true
	}
	// levels are sorted
	return map[string]int{levels[0]: 0, levels[1]: 1}, true
}

// distinct returns the sorted distinct non-missing values of a column,
// rendered as text.
func distinct(values []any) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if model.IsMissing(v) {
			continue
		}
		s := model.AsString(v)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// OneHotName is the generated column name for one category value.
func OneHotName(column, value string) string {
	return column + "_" + value
}
