package eval

import (
	"fmt"
	"io"
	"strings"
)

// WriteText renders the report in the human-readable layout: one block per
// file, then the macro (headline) and micro (diagnostic) aggregates.
func (r *MetricsReport) WriteText(w io.Writer) {
	for _, f := range r.Files {
		fmt.Fprintf(w, "%s:\n", f.ID)
		switch {
		case f.MissingPrediction:
			fmt.Fprintf(w, "  no matching prediction (scored per policy %q)\n", r.Policy)
		case f.LoadError != "":
			fmt.Fprintf(w, "  prediction unreadable: %s\n", f.LoadError)
		default:
			fmt.Fprintf(w, "  Accuracy:  %.4f\n", f.Accuracy)
			fmt.Fprintf(w, "  Precision: %.4f\n", f.Precision)
			fmt.Fprintf(w, "  Recall:    %.4f\n", f.Recall)
			fmt.Fprintf(w, "  F1 Score:  %.4f\n", f.F1)
			fmt.Fprintf(w, "  TP: %d, TN: %d, FP: %d, FN: %d\n", f.TP, f.TN, f.FP, f.FN)
			if len(f.MissingAttachments) > 0 {
				fmt.Fprintf(w, "  Missing: %s\n", strings.Join(f.MissingAttachments, ", "))
			}
			if len(f.ExtraAttachments) > 0 {
				fmt.Fprintf(w, "  Extra: %s\n", strings.Join(f.ExtraAttachments, ", "))
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "MACRO AVERAGE (%d files):\n", r.Macro.Files)
	writeAggregate(w, r.Macro)
	fmt.Fprintf(w, "\nMICRO AVERAGE (pooled over %d files):\n", r.Micro.Files)
	writeAggregate(w, r.Micro)
	fmt.Fprintf(w, "Pooled counts - TP: %d, TN: %d, FP: %d, FN: %d\n",
		r.Pooled.TP, r.Pooled.TN, r.Pooled.FP, r.Pooled.FN)

	if len(r.UnmatchedPredictions) > 0 {
		fmt.Fprintf(w, "\nPredictions without ground truth: %s\n",
			strings.Join(r.UnmatchedPredictions, ", "))
	}
}

func writeAggregate(w io.Writer, a Aggregate) {
	fmt.Fprintf(w, "  Accuracy:  %.4f\n", a.Accuracy)
	fmt.Fprintf(w, "  Precision: %.4f\n", a.Precision)
	fmt.Fprintf(w, "  Recall:    %.4f\n", a.Recall)
	fmt.Fprintf(w, "  F1 Score:  %.4f\n", a.F1)
}
