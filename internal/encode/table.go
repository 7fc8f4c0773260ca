// Package encode turns cleaned customer frames into numeric feature
// columns. Discover is used at training time and fixes the column set;
// Reconcile is used at serving time and only needs the known-value table.
package encode

// KnownTableVersion identifies the known binary pairings below. Bump it
// whenever a pairing is added or changed; trained schemas depend on it.
const KnownTableVersion = 1

// Pair is a two-value categorical vocabulary with a fixed 0/1 assignment.
type Pair struct {
	Zero string
	One  string
}

// KnownPairs is the fixed binary mapping table shared by both modes.
var KnownPairs = []Pair{
	{Zero: "No", One: "Yes"},
	{Zero: "Female", One: "Male"},
}

func (p Pair) mapping() map[string]int {
	return map[string]int{p.Zero: 0, p.One: 1}
}

func (p Pair) contains(v string) bool {
	return v == p.Zero || v == p.One
}

// matchPair returns the known pair whose vocabulary equals values exactly.
func matchPair(values []string) (Pair, bool) {
	if len(values) != 2 {
		return Pair{}, false
	}
	for _, p := range KnownPairs {
		if p.contains(values[0]) && p.contains(values[1]) && values[0] != values[1] {
			return p, true
		}
	}
	return Pair{}, false
}

// coveringPair returns the known pair whose vocabulary includes every
// value. It accepts a single observed value.
func coveringPair(values []string) (Pair, bool) {
	if len(values) == 0 || len(values) > 2 {
		return Pair{}, false
	}
	for _, p := range KnownPairs {
		ok := true
		for _, v := range values {
			if !p.contains(v) {
				ok = false
				break
			}
		}
		if ok {
			return p, true
		}
	}
	return Pair{}, false
}

// touchesKnown reports whether any value belongs to a known pair.
func touchesKnown(values []string) bool {
	for _, v := range values {
		for _, p := range KnownPairs {
			if p.contains(v) {
				return true
			}
		}
	}
	return false
}
