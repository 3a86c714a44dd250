package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValidationKind identifies the specific way a model response violated the
// classification contract.
type ValidationKind string

const (
	// MalformedJSON: the response is not a JSON object with exactly the two
	// expected keys mapping to string arrays.
	MalformedJSON ValidationKind = "MalformedJSON"
	// MissingKey: one of "relevant"/"irrelevant" is absent.
	MissingKey ValidationKind = "MissingKey"
	// DuplicateFilename: a filename appears more than once across the two arrays.
	DuplicateFilename ValidationKind = "DuplicateFilename"
	// UnknownFilename: a filename outside the email's attachment set appears.
	UnknownFilename ValidationKind = "UnknownFilename"
	// MissingFilename: an attachment from the email is not classified.
	MissingFilename ValidationKind = "MissingFilename"
)

// ValidationError reports why a raw model response was rejected.
type ValidationError struct {
	Kind   ValidationKind
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid classification response (%s): %s", e.Kind, e.Detail)
}

const (
	keyRelevant   = "relevant"
	keyIrrelevant = "irrelevant"
)

// ValidateResponse parses raw model output and checks that it partitions the
// expected attachment set exactly. It is a pure function: on success it
// returns a sorted ClassificationResult, otherwise a *ValidationError naming
// the first violated check. Checks run in a fixed order: shape, duplicates,
// unknown names, coverage.
func ValidateResponse(emailID, raw string, expected []string) (*ClassificationResult, error) {
	payload, ok := extractJSONObject(raw)
	if !ok {
		return nil, &ValidationError{Kind: MalformedJSON, Detail: "no JSON object found in response"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, &ValidationError{Kind: MalformedJSON, Detail: err.Error()}
	}

	for key := range fields {
		if key != keyRelevant && key != keyIrrelevant {
			return nil, &ValidationError{Kind: MalformedJSON, Detail: fmt.Sprintf("unexpected key %q", key)}
		}
	}
	for _, key := range []string{keyRelevant, keyIrrelevant} {
		if _, ok := fields[key]; !ok {
			return nil, &ValidationError{Kind: MissingKey, Detail: fmt.Sprintf("missing key %q", key)}
		}
	}

	var relevant, irrelevant []string
	if err := json.Unmarshal(fields[keyRelevant], &relevant); err != nil {
		return nil, &ValidationError{Kind: MalformedJSON, Detail: fmt.Sprintf("key %q is not an array of strings", keyRelevant)}
	}
	if err := json.Unmarshal(fields[keyIrrelevant], &irrelevant); err != nil {
		return nil, &ValidationError{Kind: MalformedJSON, Detail: fmt.Sprintf("key %q is not an array of strings", keyIrrelevant)}
	}

	counts := make(map[string]int, len(relevant)+len(irrelevant))
	for _, name := range relevant {
		counts[name]++
	}
	for _, name := range irrelevant {
		counts[name]++
	}
	var dupes []string
	for name, n := range counts {
		if n > 1 {
			dupes = append(dupes, name)
		}
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		return nil, &ValidationError{Kind: DuplicateFilename, Detail: strings.Join(dupes, ", ")}
	}

	expectedSet := make(map[string]bool, len(expected))
	for _, name := range expected {
		expectedSet[name] = true
	}
	var unknown []string
	for name := range counts {
		if !expectedSet[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &ValidationError{Kind: UnknownFilename, Detail: strings.Join(unknown, ", ")}
	}

	var missing []string
	for _, name := range expected {
		if counts[name] == 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ValidationError{Kind: MissingFilename, Detail: strings.Join(missing, ", ")}
	}

	result := &ClassificationResult{
		ID:         emailID,
		Relevant:   relevant,
		Irrelevant: irrelevant,
	}
	if result.Relevant == nil {
		result.Relevant = []string{}
	}
	if result.Irrelevant == nil {
		result.Irrelevant = []string{}
	}
	sortResult(result)
	return result, nil
}

// extractJSONObject pulls the outermost {...} from model output that may be
// wrapped in prose or code fences.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
