package core

import (
	"sort"
	"time"
)

// EmailRecord is one email as produced by the extraction step: the rendered
// HTML body and the ordered, unique attachment filenames to classify.
type EmailRecord struct {
	ID                  string
	HTMLBody            string
	AttachmentFilenames []string
}

// ClassificationResult partitions an email's attachments into the two fixed
// categories. Once validated the two slices are kept lexicographically sorted
// and together cover the email's attachment set exactly.
type ClassificationResult struct {
	ID         string   `json:"-"`
	Relevant   []string `json:"relevant"`
	Irrelevant []string `json:"irrelevant"`
}

// GroundTruthRecord has the same shape as a prediction; it is authored
// externally and matched to predictions by id.
type GroundTruthRecord = ClassificationResult

// Covers reports whether the result's two categories exactly partition names:
// every name in exactly one category, no extras, no overlap.
func (r *ClassificationResult) Covers(names []string) bool {
	seen := make(map[string]int, len(r.Relevant)+len(r.Irrelevant))
	for _, name := range r.Relevant {
		seen[name]++
	}
	for _, name := range r.Irrelevant {
		seen[name]++
	}
	if len(seen) != len(names) {
		return false
	}
	for _, name := range names {
		if seen[name] != 1 {
			return false
		}
	}
	return true
}

// sortResult normalizes category order so logically identical results
// serialize identically.
func sortResult(r *ClassificationResult) {
	sort.Strings(r.Relevant)
	sort.Strings(r.Irrelevant)
}

// EmailState tags the lifecycle of a single email through the pipeline.
type EmailState string

const (
	StatePending       EmailState = "PENDING"
	StateClassifying   EmailState = "CLASSIFYING"
	StateValidated     EmailState = "VALIDATED"
	StateWritten       EmailState = "WRITTEN"
	StateFailed        EmailState = "FAILED"
	StateErrorRecorded EmailState = "ERROR_RECORDED"
)

// Verdict is the outcome of classifying one email. A verdict never carries a
// partial result: either State is Validated/Written and Result satisfies the
// partition invariant, or Result is nil and Err explains the failure.
type Verdict struct {
	EmailID   string
	State     EmailState
	Result    *ClassificationResult
	Attempts  int
	ModelID   string
	FromCache bool
	Err       error
	Elapsed   time.Duration
}

// Succeeded reports whether the email reached a successful terminal state.
func (v *Verdict) Succeeded() bool {
	return v.State == StateValidated || v.State == StateWritten
}

// CacheEntry is a settled classification stored in the verdict cache.
type CacheEntry struct {
	EmailID    string
	Relevant   []string
	Irrelevant []string
	LastSeen   time.Time
	ExpiresAt  time.Time
}
