package eval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/attachment-triage/internal/core"
)

func result(relevant, irrelevant []string) *core.ClassificationResult {
	return &core.ClassificationResult{Relevant: relevant, Irrelevant: irrelevant}
}

func TestEvaluatePerfectPrediction(t *testing.T) {
	truth := map[string]*core.GroundTruthRecord{
		"1": result([]string{"a"}, []string{"b"}),
	}
	preds := map[string]*core.ClassificationResult{
		"1": result([]string{"a"}, []string{"b"}),
	}

	report := Evaluate(preds, truth, nil, MissingZero)
	require.Len(t, report.Files, 1)

	row := report.Files[0]
	assert.Equal(t, Confusion{TP: 1, TN: 1}, row.Confusion)
	assert.Equal(t, 1.0, row.Precision)
	assert.Equal(t, 1.0, row.Recall)
	assert.Equal(t, 1.0, row.F1)
	assert.Equal(t, 1.0, row.Accuracy)
	assert.False(t, report.HasFailures())
}

func TestEvaluateSwappedCategories(t *testing.T) {
	truth := map[string]*core.GroundTruthRecord{
		"1": result([]string{"a"}, []string{"b"}),
	}
	preds := map[string]*core.ClassificationResult{
		"1": result([]string{"b"}, []string{"a"}),
	}

	report := Evaluate(preds, truth, nil, MissingZero)
	row := report.Files[0]

	assert.Equal(t, Confusion{FP: 1, FN: 1}, row.Confusion)
	assert.Equal(t, 0.0, row.Precision)
	assert.Equal(t, 0.0, row.Recall)
	assert.Equal(t, 0.0, row.F1)
	assert.Equal(t, 0.0, row.Accuracy)
}

func TestEvaluateZeroDenominatorsResolveToZero(t *testing.T) {
	// Ground truth has no relevant attachments and the prediction agrees:
	// precision and recall have zero denominators.
	truth := map[string]*core.GroundTruthRecord{
		"1": result(nil, []string{"a", "b"}),
	}
	preds := map[string]*core.ClassificationResult{
		"1": result(nil, []string{"a", "b"}),
	}

	report := Evaluate(preds, truth, nil, MissingZero)
	row := report.Files[0]

	assert.Equal(t, Confusion{TN: 2}, row.Confusion)
	assert.Equal(t, 0.0, row.Precision)
	assert.Equal(t, 0.0, row.Recall)
	assert.Equal(t, 0.0, row.F1)
	assert.Equal(t, 1.0, row.Accuracy)
}

func TestEvaluateMacroAverage(t *testing.T) {
	truth := map[string]*core.GroundTruthRecord{
		"1": result([]string{"a"}, []string{"b"}),
		"2": result([]string{"c"}, []string{"d"}),
	}
	preds := map[string]*core.ClassificationResult{
		"1": result([]string{"a"}, []string{"b"}), // F1 = 1.0
		"2": result([]string{"d"}, []string{"c"}), // F1 = 0.0
	}

	report := Evaluate(preds, truth, nil, MissingZero)

	assert.Equal(t, 2, report.Macro.Files)
	assert.InDelta(t, 0.5, report.Macro.F1, 1e-9)
	assert.InDelta(t, 0.5, report.Macro.Precision, 1e-9)
	assert.InDelta(t, 0.5, report.Macro.Accuracy, 1e-9)
}

func TestEvaluateMicroPoolsCounts(t *testing.T) {
	truth := map[string]*core.GroundTruthRecord{
		"1": result([]string{"a", "b"}, nil),
		"2": result([]string{"c"}, []string{"d"}),
	}
	preds := map[string]*core.ClassificationResult{
		"1": result([]string{"a"}, []string{"b"}),
		"2": result([]string{"c"}, []string{"d"}),
	}

	report := Evaluate(preds, truth, nil, MissingZero)

	assert.Equal(t, Confusion{TP: 2, FN: 1, TN: 1}, report.Pooled)
	assert.InDelta(t, 1.0, report.Micro.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, report.Micro.Recall, 1e-9)
}

func TestEvaluateMissingPredictionZeroPolicy(t *testing.T) {
	truth := map[string]*core.GroundTruthRecord{
		"1": result([]string{"a"}, nil),
		"2": result([]string{"b"}, nil),
	}
	preds := map[string]*core.ClassificationResult{
		"1": result([]string{"a"}, nil),
	}

	report := Evaluate(preds, truth, nil, MissingZero)
	require.Len(t, report.Files, 2)

	missing := report.Files[1]
	assert.True(t, missing.MissingPrediction)
	assert.Equal(t, 0.0, missing.F1)

	// The zero row stays in the macro denominator.
	assert.Equal(t, 2, report.Macro.Files)
	assert.InDelta(t, 0.5, report.Macro.F1, 1e-9)
	// But contributes nothing to the pooled counts.
	assert.Equal(t, Confusion{TP: 1}, report.Pooled)
	assert.True(t, report.HasFailures())
}

func TestEvaluateMissingPredictionExcludePolicy(t *testing.T) {
	truth := map[string]*core.GroundTruthRecord{
		"1": result([]string{"a"}, nil),
		"2": result([]string{"b"}, nil),
	}
	preds := map[string]*core.ClassificationResult{
		"1": result([]string{"a"}, nil),
	}

	report := Evaluate(preds, truth, nil, MissingExclude)

	require.Len(t, report.Files, 2)
	assert.Equal(t, 1, report.Macro.Files)
	assert.InDelta(t, 1.0, report.Macro.F1, 1e-9)
}

func TestEvaluateUnreadablePredictionIsFlaggedRow(t *testing.T) {
	truth := map[string]*core.GroundTruthRecord{
		"1": result([]string{"a"}, nil),
	}
	predErrs := map[string]error{"1": errors.New("unexpected end of JSON input")}

	report := Evaluate(nil, truth, predErrs, MissingZero)

	require.Len(t, report.Files, 1)
	assert.Contains(t, report.Files[0].LoadError, "unexpected end")
	assert.True(t, report.HasFailures())
}

func TestEvaluateCoverageMismatchReported(t *testing.T) {
	truth := map[string]*core.GroundTruthRecord{
		"1": result([]string{"a", "gone"}, nil),
	}
	preds := map[string]*core.ClassificationResult{
		"1": result([]string{"a", "surprise"}, nil),
		"9": result([]string{"x"}, nil),
	}

	report := Evaluate(preds, truth, nil, MissingZero)
	row := report.Files[0]

	assert.Equal(t, []string{"gone"}, row.MissingAttachments)
	assert.Equal(t, []string{"surprise"}, row.ExtraAttachments)
	assert.Equal(t, Confusion{TP: 1}, row.Confusion)
	assert.Equal(t, []string{"9"}, report.UnmatchedPredictions)
}

func TestParseMissingPolicy(t *testing.T) {
	policy, err := ParseMissingPolicy("zero")
	require.NoError(t, err)
	assert.Equal(t, MissingZero, policy)

	policy, err = ParseMissingPolicy("exclude")
	require.NoError(t, err)
	assert.Equal(t, MissingExclude, policy)

	_, err = ParseMissingPolicy("drop")
	assert.Error(t, err)
}
