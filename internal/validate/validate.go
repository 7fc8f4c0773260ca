package validate

import (
	"fmt"
	"math"
	"slices"

	"github.com/rcliao/churn-features/internal/model"
)

// Result is the validator response shape.
type Result struct {
	OK       bool     `json:"ok"`
	Problems []string `json:"problems"`
}

func result(problems []string) Result {
	if problems == nil {
		problems = []string{}
	}
	return Result{OK: len(problems) == 0, Problems: problems}
}

// Validate runs the schema check (against the first record) and the
// value-domain check (against every record) and reports all problems.
func Validate(records []model.Record, c Contract) Result {
	if len(records) == 0 {
		return result([]string{"empty payload: at least one record is required"})
	}

	var problems []string
	first := records[0]
	for _, name := range c.Required() {
		if _, ok := first[name]; !ok {
			problems = append(problems, fmt.Sprintf("missing attribute %q", name))
		}
	}

	for i, r := range records {
		for _, a := range c.Attributes {
			v, ok := r[a.Name]
			if !ok {
				continue
			}
			if p := checkValue(a, v); p != "" {
				problems = append(problems, fmt.Sprintf("record %d: %s", i, p))
			}
		}
	}
	return result(problems)
}

func checkValue(a Attribute, v any) string {
	if model.IsMissing(v) {
		return fmt.Sprintf("%s: value is missing", a.Name)
	}
	if a.Numeric {
		x, ok := model.AsFloat(v)
		if !ok {
			return fmt.Sprintf("%s: %q is not a number", a.Name, model.AsString(v))
		}
		if _, isBool := v.(bool); isBool {
			return fmt.Sprintf("%s: boolean is not a number", a.Name)
		}
		if a.Integer && x != math.Trunc(x) {
			return fmt.Sprintf("%s: %v is not an integer", a.Name, x)
		}
		if x < a.Min || x > a.Max {
			return fmt.Sprintf("%s: %v is outside [%v, %v]", a.Name, x, a.Min, a.Max)
		}
		return ""
	}
	if len(a.Enum) > 0 {
		s, isText := v.(string)
		if !isText || !slices.Contains(a.Enum, s) {
			return fmt.Sprintf("%s: %q is not one of %q", a.Name, model.AsString(v), a.Enum)
		}
	}
	return ""
}

// RequireColumns reports each required column the frame lacks.
func RequireColumns(f model.Frame, required []string) Result {
	var problems []string
	for _, name := range required {
		if !f.Has(name) {
			problems = append(problems, fmt.Sprintf("missing column %q", name))
		}
	}
	return result(problems)
}

// maxMissingTotalCharges is the tolerated share of unparseable TotalCharges.
const maxMissingTotalCharges = 0.2

// Sanity runs the training-time data checks. Callers usually log these
// as warnings and continue.
func Sanity(f model.Frame) Result {
	var problems []string
	if f.Len() == 0 {
		problems = append(problems, "empty dataset")
	}

	if f.Has("TotalCharges") && f.Len() > 0 {
		missing := 0
		for _, r := range f.Rows {
			if _, ok := model.AsFloat(r["TotalCharges"]); !ok {
				missing++
			}
		}
		if ratio := float64(missing) / float64(f.Len()); ratio > maxMissingTotalCharges {
			problems = append(problems, fmt.Sprintf("too many missing TotalCharges values (%.1f%%)", ratio*100))
		}
	}

	if f.Has("tenure") {
		for _, r := range f.Rows {
			if x, ok := model.AsFloat(r["tenure"]); ok && x < 0 {
				problems = append(problems, "tenure contains negative values")
				break
			}
		}
	}
	return result(problems)
}
