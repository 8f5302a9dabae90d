package report

import (
	"reflect"
	"sort"

	"github.com/ironsheep/annodiff/internal/annotation"
	"github.com/ironsheep/annodiff/internal/match"
)

// Status describes how an item was handled.
type Status string

const (
	StatusCompared      Status = "compared"
	StatusReferenceOnly Status = "reference-only"
	StatusCandidateOnly Status = "candidate-only"
	StatusUnavailable   Status = "unavailable"
	StatusSkipped       Status = "skipped"
)

// AttributeDiff is one attribute that differs between the two sides of an
// accepted pair. A missing key is reported as a nil value.
type AttributeDiff struct {
	Reference      int    `json:"reference"`
	Candidate      int    `json:"candidate"`
	Key            string `json:"key"`
	ReferenceValue any    `json:"reference_value"`
	CandidateValue any    `json:"candidate_value"`
}

// ItemResult is the per-item outcome of a comparison.
//
// Indices in the embedded match.Result and in LowConfidence refer to the
// item's original annotation lists.
type ItemResult struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Image  string `json:"image,omitempty"`

	ReferenceCount int `json:"reference_count"`
	CandidateCount int `json:"candidate_count"`

	match.Result

	LowConfidence  []int           `json:"low_confidence,omitempty"`
	AttributeDiffs []AttributeDiff `json:"attribute_diffs,omitempty"`
	Error          string          `json:"error,omitempty"`

	// Reference and Candidate are the annotations the indices refer to. They
	// are kept for renderers that draw geometry and are not encoded.
	Reference []annotation.Annotation `json:"-"`
	Candidate []annotation.Annotation `json:"-"`
}

// Mismatches returns the number of label mismatches and unmatched or partial
// annotations on both sides.
func (it *ItemResult) Mismatches() int {
	return len(it.LabelMismatches) +
		len(it.UnmatchedReference) + len(it.UnmatchedCandidate) +
		len(it.PartialReference) + len(it.PartialCandidate)
}

// DiffAttributes compares the attributes of an accepted pair and returns one
// AttributeDiff per differing key, sorted by key. r and c are the indices
// recorded in the result.
func DiffAttributes(ref, cand annotation.Annotation, r, c int) []AttributeDiff {
	if len(ref.Attributes) == 0 && len(cand.Attributes) == 0 {
		return nil
	}

	keys := make(map[string]struct{}, len(ref.Attributes)+len(cand.Attributes))
	for k := range ref.Attributes {
		keys[k] = struct{}{}
	}
	for k := range cand.Attributes {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var diffs []AttributeDiff
	for _, k := range sorted {
		rv, cv := ref.Attributes[k], cand.Attributes[k]
		if reflect.DeepEqual(normalizeScalar(rv), normalizeScalar(cv)) {
			continue
		}
		diffs = append(diffs, AttributeDiff{
			Reference:      r,
			Candidate:      c,
			Key:            k,
			ReferenceValue: rv,
			CandidateValue: cv,
		})
	}
	return diffs
}

// normalizeScalar folds numeric types to float64 so that 1 from a YAML
// manifest equals 1.0 from a JSON one.
func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
