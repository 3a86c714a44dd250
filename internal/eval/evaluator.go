// Package eval scores stored predictions against ground truth: per-file
// confusion counts and derived metrics, aggregated as a macro average
// (headline) and a micro/pooled average (secondary diagnostic).
package eval

import (
	"fmt"
	"sort"

	"github.com/mikey/attachment-triage/internal/core"
)

// MissingPolicy controls how a ground-truth file without a matching
// prediction enters the macro average.
type MissingPolicy string

const (
	// MissingZero scores the file as an all-zero row and keeps it in the
	// macro denominators. This is the default.
	MissingZero MissingPolicy = "zero"
	// MissingExclude reports the row but leaves it out of the macro
	// denominators.
	MissingExclude MissingPolicy = "exclude"
)

// ParseMissingPolicy validates a configured policy name.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(s) {
	case MissingZero, MissingExclude:
		return MissingPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown missing-prediction policy %q (want %q or %q)", s, MissingZero, MissingExclude)
	}
}

// FileMetrics is the evaluation row for one email id.
type FileMetrics struct {
	ID string `json:"id"`
	Confusion
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Accuracy  float64 `json:"accuracy"`

	// MissingPrediction marks a ground-truth file with no stored prediction.
	MissingPrediction bool `json:"missing_prediction,omitempty"`
	// LoadError records a prediction file that could not be read or parsed.
	LoadError string `json:"load_error,omitempty"`
	// MissingAttachments are in the ground truth but absent from the
	// prediction's union; ExtraAttachments the reverse. Neither contributes
	// confusion counts.
	MissingAttachments []string `json:"missing_attachments,omitempty"`
	ExtraAttachments   []string `json:"extra_attachments,omitempty"`
}

func (m FileMetrics) scored() bool {
	return !m.MissingPrediction && m.LoadError == ""
}

// Aggregate is one summary row over all evaluated files.
type Aggregate struct {
	Files     int     `json:"files"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Accuracy  float64 `json:"accuracy"`
}

// MetricsReport is the full outcome of one evaluation run.
type MetricsReport struct {
	Files []FileMetrics `json:"files"`
	// Macro is the unweighted mean of per-file metrics: the headline summary.
	Macro Aggregate `json:"macro"`
	// Micro is computed on confusion counts pooled across scored files.
	Micro  Aggregate `json:"micro"`
	Pooled Confusion `json:"pooled_counts"`
	// UnmatchedPredictions are prediction ids with no ground-truth file.
	UnmatchedPredictions []string `json:"unmatched_predictions,omitempty"`
	Policy               MissingPolicy `json:"missing_prediction_policy"`
}

// HasFailures reports whether any row was missing or unreadable, i.e. the
// evaluation covered the ground truth only partially.
func (r *MetricsReport) HasFailures() bool {
	for _, f := range r.Files {
		if !f.scored() {
			return true
		}
	}
	return false
}

// Evaluate scores predictions against ground truth. predErrs carries
// per-file load failures from the prediction directory; such rows are
// flagged and zero-scored rather than aborting the report. Ground truth ids
// drive the iteration; predictions without ground truth are listed as
// unmatched and otherwise ignored.
func Evaluate(
	preds map[string]*core.ClassificationResult,
	truth map[string]*core.GroundTruthRecord,
	predErrs map[string]error,
	policy MissingPolicy,
) *MetricsReport {
	report := &MetricsReport{Policy: policy}

	ids := make([]string, 0, len(truth))
	for id := range truth {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		row := FileMetrics{ID: id}
		switch {
		case predErrs[id] != nil:
			row.LoadError = predErrs[id].Error()
		case preds[id] == nil:
			row.MissingPrediction = true
		default:
			row = scoreFile(id, preds[id], truth[id])
		}
		report.Files = append(report.Files, row)
	}

	for id := range preds {
		if _, ok := truth[id]; !ok {
			report.UnmatchedPredictions = append(report.UnmatchedPredictions, id)
		}
	}
	sort.Strings(report.UnmatchedPredictions)

	report.Macro = macroAverage(report.Files, policy)
	report.Pooled, report.Micro = microAverage(report.Files)
	return report
}

// scoreFile classifies every attachment in the intersection of prediction
// and ground truth as TP/FP/FN/TN, treating relevant as positive. Names
// present on only one side are reported but not counted.
func scoreFile(id string, pred *core.ClassificationResult, gt *core.GroundTruthRecord) FileMetrics {
	predRel := toSet(pred.Relevant)
	predIrr := toSet(pred.Irrelevant)
	gtRel := toSet(gt.Relevant)
	gtIrr := toSet(gt.Irrelevant)

	row := FileMetrics{ID: id}
	for name := range gtRel {
		switch {
		case predRel[name]:
			row.TP++
		case predIrr[name]:
			row.FN++
		default:
			row.MissingAttachments = append(row.MissingAttachments, name)
		}
	}
	for name := range gtIrr {
		switch {
		case predRel[name]:
			row.FP++
		case predIrr[name]:
			row.TN++
		default:
			row.MissingAttachments = append(row.MissingAttachments, name)
		}
	}
	for name := range predRel {
		if !gtRel[name] && !gtIrr[name] {
			row.ExtraAttachments = append(row.ExtraAttachments, name)
		}
	}
	for name := range predIrr {
		if !gtRel[name] && !gtIrr[name] {
			row.ExtraAttachments = append(row.ExtraAttachments, name)
		}
	}
	sort.Strings(row.MissingAttachments)
	sort.Strings(row.ExtraAttachments)

	row.Precision = row.Confusion.Precision()
	row.Recall = row.Confusion.Recall()
	row.F1 = row.Confusion.F1()
	row.Accuracy = row.Confusion.Accuracy()
	return row
}

func macroAverage(files []FileMetrics, policy MissingPolicy) Aggregate {
	var agg Aggregate
	for _, f := range files {
		if !f.scored() && policy == MissingExclude {
			continue
		}
		agg.Files++
		agg.Precision += f.Precision
		agg.Recall += f.Recall
		agg.F1 += f.F1
		agg.Accuracy += f.Accuracy
	}
	if agg.Files > 0 {
		n := float64(agg.Files)
		agg.Precision /= n
		agg.Recall /= n
		agg.F1 /= n
		agg.Accuracy /= n
	}
	return agg
}

func microAverage(files []FileMetrics) (Confusion, Aggregate) {
	var pooled Confusion
	n := 0
	for _, f := range files {
		if !f.scored() {
			continue
		}
		pooled = pooled.add(f.Confusion)
		n++
	}
	return pooled, Aggregate{
		Files:     n,
		Precision: pooled.Precision(),
		Recall:    pooled.Recall(),
		F1:        pooled.F1(),
		Accuracy:  pooled.Accuracy(),
	}
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}
