package encode

import (
	"fmt"

	"github.com/rcliao/churn-features/internal/model"
	"github.com/rcliao/churn-features/internal/schema"
)

// Discover encodes a full training frame and returns the encoded frame
// together with its feature schema. Column treatment is decided from the
// distinct non-missing values observed in f:
//
//   - numeric columns pass through, booleans become 0/1
//   - two values use the binary rule (see EncodeBinary)
//   - three or more values are one-hot expanded, dropping the smallest
//     value as the reference level
//
// The target column is carried through unchanged and left out of the
// schema. A textual column with fewer than two values returns an
// *UnencodableColumnError.
func Discover(f model.Frame, target string) (model.Frame, *schema.Schema, error) {
	plans := make([]columnPlan, 0, len(f.Columns))
	for _, c := range f.Columns {
		if c == target {
			plans = append(plans, columnPlan{name: c, treat: keep})
			continue
		}

		switch f.ColumnKind(c) {
		case model.KindNumeric, model.KindBool:
			plans = append(plans, columnPlan{name: c, treat: toNumber})
			continue
		case model.KindEmpty:
			return model.Frame{}, nil, &UnencodableColumnError{
				Column: c, Mode: ModeDiscovery, Reason: "no non-missing values",
			}
		}

		levels := distinct(f.Column(c))
		switch {
		case len(levels) == 2:
			m, _ := binaryMapping(levels)
			plans = append(plans, columnPlan{name: c, treat: toBinary, mapping: m})
		case len(levels) > 2:
			plans = append(plans, columnPlan{name: c, treat: toOneHot, levels: levels[1:]})
		default:
			return model.Frame{}, nil, &UnencodableColumnError{
				Column: c, Mode: ModeDiscovery,
				Reason: fmt.Sprintf("single value %q carries no information", levels[0]),
			}
		}
	}

	out := apply(f, plans)

	features := make([]string, 0, len(out.Columns))
	for _, c := range out.Columns {
		if c != target {
			features = append(features, c)
		}
	}
	s, err := schema.New(features)
	if err != nil {
		return model.Frame{}, nil, fmt.Errorf("build schema: %w", err)
	}
	return out, s, nil
}
