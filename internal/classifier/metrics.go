package classifier

import (
	"fmt"
	"sort"
	"strings"
)

// Evaluate computes binary classification metrics at threshold.
func Evaluate(yTrue, proba []float64, threshold float64) map[string]float64 {
	pred := Predict(proba, threshold)
	truth := make([]int, len(yTrue))
	for i, v := range yTrue {
		if v >= 0.5 {
			truth[i] = 1
		}
	}
	prec, rec, f1 := PrecisionRecallF1(truth, pred)
	return map[string]float64{
		"accuracy":  Accuracy(truth, pred),
		"precision": prec,
		"recall":    rec,
		"f1":        f1,
		"roc_auc":   ROCAUC(truth, proba),
	}
}

// Accuracy is the share of matching labels.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// PrecisionRecallF1 scores the positive class.
func PrecisionRecallF1(yTrue, yPred []int) (prec, rec, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1 && yTrue[i] == 0:
			fp++
		case yPred[i] == 0 && yTrue[i] == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		prec = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		rec = float64(tp) / float64(tp+fn)
	}
	if prec+rec > 0 {
		f1 = 2 * prec * rec / (prec + rec)
	}
	return
}

// ROCAUC is the probability that a random positive outranks a random
// negative, with ties counted as half. Returns 0 when a class is absent.
func ROCAUC(yTrue []int, proba []float64) float64 {
	type pair struct {
		p float64
		y int
	}
	ps := make([]pair, len(yTrue))
	var pos, neg int
	for i := range yTrue {
		ps[i] = pair{proba[i], yTrue[i]}
		if yTrue[i] == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].p < ps[j].p })

	// Sum of positive ranks, averaging ranks over ties.
	var rankSum float64
	for i := 0; i < len(ps); {
		j := i
		for j < len(ps) && ps[j].p == ps[i].p {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if ps[k].y == 1 {
				rankSum += avg
			}
		}
		i = j
	}
	return (rankSum - float64(pos*(pos+1))/2) / float64(pos*neg)
}

// Report renders a per-class precision/recall table.
func Report(yTrue, proba []float64, threshold float64) string {
	pred := Predict(proba, threshold)
	truth := make([]int, len(yTrue))
	inverted := make([]int, len(yTrue))
	invPred := make([]int, len(pred))
	for i, v := range yTrue {
		if v >= 0.5 {
			truth[i] = 1
		}
		inverted[i] = 1 - truth[i]
		invPred[i] = 1 - pred[i]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %9s %9s %9s %8s\n", "class", "precision", "recall", "f1", "support")
	for _, cls := range []int{0, 1} {
		yt, yp := truth, pred
		if cls == 0 {
			yt, yp = inverted, invPred
		}
		p, r, f := PrecisionRecallF1(yt, yp)
		support := 0
		for _, v := range yt {
			support += v
		}
		fmt.Fprintf(&b, "%-8d %9.4f %9.4f %9.4f %8d\n", cls, p, r, f, support)
	}
	fmt.Fprintf(&b, "accuracy %.4f (threshold %.2f)\n", Accuracy(truth, pred), threshold)
	return b.String()
}
