package encode

import (
	"fmt"

	"github.com/rcliao/churn-features/internal/model"
	"github.com/rcliao/churn-features/internal/schema"
)

// Reconcile encodes a serving batch without inferring column kinds from
// the batch's cardinality. Textual columns whose values all fall inside
// one known pair are mapped to 0/1 even when the batch shows a single
// value. Other textual columns get one indicator per value present,
// without dropping a reference level; the aligner later zero-fills the
// indicators this batch never produced and drops the ones the trained
// schema does not list.
//
// guide, when non-nil, is the trained schema. It settles columns whose
// values look binary but were one-hot expanded at training time (for
// example a Yes/No/"No phone service" column seen here only as "No").
func Reconcile(f model.Frame, target string, guide *schema.Schema) (model.Frame, error) {
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
			// Nothing to emit; the aligner zero-fills whatever the schema expects.
			plans = append(plans, columnPlan{name: c, treat: drop})
			continue
		}

		levels := distinct(f.Column(c))
		trainedBinary := guide != nil && guide.Has(c)
		expanded := guide != nil && !guide.Has(c) && guide.HasPrefix(c+"_")

		if p, ok := coveringPair(levels); ok && !expanded {
			plans = append(plans, columnPlan{name: c, treat: toBinary, mapping: p.mapping()})
			continue
		}

		if trainedBinary {
			if allNumeric(levels) {
				plans = append(plans, columnPlan{name: c, treat: toNumber})
				continue
			}
			if m, ok := binaryMapping(levels); ok && !touchesKnown(levels) {
				plans = append(plans, columnPlan{name: c, treat: toBinary, mapping: m})
				continue
			}
			return model.Frame{}, &UnencodableColumnError{
				Column: c, Mode: ModeReconciliation,
				Reason: fmt.Sprintf("trained as a binary column but values %q match no known pair", levels),
			}
		}

		plans = append(plans, columnPlan{name: c, treat: toOneHot, levels: levels})
	}
	return apply(f, plans), nil
}
