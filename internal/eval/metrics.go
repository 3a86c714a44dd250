package eval

// Confusion holds raw per-attachment counts with "relevant" as the positive
// label.
type Confusion struct {
	TP int `json:"true_positives"`
	FP int `json:"false_positives"`
	FN int `json:"false_negatives"`
	TN int `json:"true_negatives"`
}

func (c Confusion) add(o Confusion) Confusion {
	return Confusion{TP: c.TP + o.TP, FP: c.FP + o.FP, FN: c.FN + o.FN, TN: c.TN + o.TN}
}

// Precision is TP/(TP+FP), 0 when the denominator is 0.
func (c Confusion) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

// Recall is TP/(TP+FN), 0 when the denominator is 0.
func (c Confusion) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// F1 is the harmonic mean of precision and recall, 0 when both are 0.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy is (TP+TN)/total, 0 when there are no counts.
func (c Confusion) Accuracy() float64 {
	return ratio(c.TP+c.TN, c.TP+c.FP+c.FN+c.TN)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
