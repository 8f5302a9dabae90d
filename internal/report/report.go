package report

import (
	"encoding/json"
	"sort"

	"github.com/ironsheep/annodiff/internal/annotation"
	"github.com/ironsheep/annodiff/internal/match"
)

// LabelPair keys a confusion cell.
type LabelPair struct {
	Reference annotation.LabelID
	Candidate annotation.LabelID
}

// Cell is one non-zero confusion table entry.
type Cell struct {
	Reference     annotation.LabelID `json:"reference"`
	Candidate     annotation.LabelID `json:"candidate"`
	ReferenceName string             `json:"reference_label"`
	CandidateName string             `json:"candidate_label"`
	Count         int                `json:"count"`
}

// Totals aggregates counts over all items.
type Totals struct {
	Items              int `json:"items"`
	Compared           int `json:"compared"`
	Unavailable        int `json:"unavailable"`
	Skipped            int `json:"skipped"`
	Matches            int `json:"matches"`
	LabelMismatches    int `json:"label_mismatches"`
	UnmatchedReference int `json:"unmatched_reference"`
	UnmatchedCandidate int `json:"unmatched_candidate"`
	PartialReference   int `json:"partial_reference"`
	PartialCandidate   int `json:"partial_candidate"`
	LowConfidence      int `json:"low_confidence"`
}

// ItemFailure records an item whose annotations could not be read.
type ItemFailure struct {
	ItemID string
	Err    error
}

// MarshalJSON encodes the error as its message.
func (f ItemFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		ItemID string `json:"item_id"`
		Error  string `json:"error"`
	}{f.ItemID, msg})
}

// Options echoes the settings the report was produced with.
type Options struct {
	IoUThreshold  float64        `json:"iou_threshold"`
	ConfThreshold float64        `json:"conf_threshold"`
	Reference     string         `json:"reference"`
	Strategy      match.Strategy `json:"strategy"`
	Groups        bool           `json:"groups"`
}

// DiffReport is the aggregate result of comparing two datasets.
//
// A DiffReport is not safe for concurrent mutation; the comparator folds all
// item results from a single goroutine.
type DiffReport struct {
	// Reference and Candidate name the compared datasets.
	Reference string
	Candidate string

	Options    Options
	Vocabulary annotation.Vocabulary

	Items     map[string]*ItemResult
	Confusion map[LabelPair]int
	Totals    Totals
	Failures  []ItemFailure
}

// New creates an empty report.
func New(reference, candidate string, opts Options, vocab annotation.Vocabulary) *DiffReport {
	return &DiffReport{
		Reference:  reference,
		Candidate:  candidate,
		Options:    opts,
		Vocabulary: vocab,
		Items:      make(map[string]*ItemResult),
		Confusion:  make(map[LabelPair]int),
	}
}

// Add stores an item result and folds it into the confusion table and totals.
// Adding the same id twice replaces the stored result but counts twice; the
// comparator never does that.
func (r *DiffReport) Add(it *ItemResult) {
	r.Items[it.ID] = it
	r.Totals.Items++

	switch it.Status {
	case StatusUnavailable:
		r.Totals.Unavailable++
		return
	case StatusSkipped:
		r.Totals.Skipped++
		return
	case StatusCompared:
		r.Totals.Compared++
	}

	refLabel := func(i int) annotation.LabelID {
		if i < len(it.Reference) {
			return it.Reference[i].Label
		}
		return annotation.NoLabel
	}
	candLabel := func(i int) annotation.LabelID {
		if i < len(it.Candidate) {
			return it.Candidate[i].Label
		}
		return annotation.NoLabel
	}

	for _, p := range it.Matches {
		l := refLabel(p.Reference)
		r.Confusion[LabelPair{l, l}]++
	}
	for _, p := range it.LabelMismatches {
		r.Confusion[LabelPair{refLabel(p.Reference), candLabel(p.Candidate)}]++
	}
	for _, i := range it.UnmatchedReference {
		r.Confusion[LabelPair{refLabel(i), annotation.NoLabel}]++
	}
	for _, i := range it.PartialReference {
		r.Confusion[LabelPair{refLabel(i), annotation.NoLabel}]++
	}
	for _, i := range it.UnmatchedCandidate {
		r.Confusion[LabelPair{annotation.NoLabel, candLabel(i)}]++
	}
	for _, i := range it.PartialCandidate {
		r.Confusion[LabelPair{annotation.NoLabel, candLabel(i)}]++
	}

	r.Totals.Matches += len(it.Matches)
	r.Totals.LabelMismatches += len(it.LabelMismatches)
	r.Totals.UnmatchedReference += len(it.UnmatchedReference)
	r.Totals.UnmatchedCandidate += len(it.UnmatchedCandidate)
	r.Totals.PartialReference += len(it.PartialReference)
	r.Totals.PartialCandidate += len(it.PartialCandidate)
	r.Totals.LowConfidence += len(it.LowConfidence)
}

// AddFailure records an item that could not be read. The item itself is
// added separately with StatusUnavailable or StatusSkipped.
func (r *DiffReport) AddFailure(itemID string, err error) {
	r.Failures = append(r.Failures, ItemFailure{ItemID: itemID, Err: err})
}

// ItemIDs returns the ids of all items, sorted.
func (r *DiffReport) ItemIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for id := range r.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cells returns the non-zero confusion cells sorted by reference label, then
// candidate label. NoLabel sorts first.
func (r *DiffReport) Cells() []Cell {
	cells := make([]Cell, 0, len(r.Confusion))
	for k, n := range r.Confusion {
		if n == 0 {
			continue
		}
		cells = append(cells, Cell{
			Reference:     k.Reference,
			Candidate:     k.Candidate,
			ReferenceName: r.Vocabulary.Name(k.Reference),
			CandidateName: r.Vocabulary.Name(k.Candidate),
			Count:         n,
		})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Reference != cells[j].Reference {
			return cells[i].Reference < cells[j].Reference
		}
		return cells[i].Candidate < cells[j].Candidate
	})
	return cells
}

// ConfusionLabels returns every label id that appears in the confusion table
// or the vocabulary, ascending, with NoLabel first when present.
func (r *DiffReport) ConfusionLabels() []annotation.LabelID {
	seen := make(map[annotation.LabelID]bool, len(r.Vocabulary)+1)
	for i := range r.Vocabulary {
		seen[annotation.LabelID(i)] = true
	}
	for k := range r.Confusion {
		seen[k.Reference] = true
		seen[k.Candidate] = true
	}
	ids := make([]annotation.LabelID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LabelStat summarises the confusion table for one label.
type LabelStat struct {
	Label              annotation.LabelID `json:"label"`
	Name               string             `json:"name"`
	Matched            int                `json:"matched"`
	Mismatched         int                `json:"mismatched"`
	UnmatchedReference int                `json:"unmatched_reference"`
	UnmatchedCandidate int                `json:"unmatched_candidate"`
}

// LabelStats returns per-label counts derived from the confusion table, one
// entry per vocabulary label plus any out-of-vocabulary label seen. Mismatched
// counts reference annotations of the label paired with another label.
func (r *DiffReport) LabelStats() []LabelStat {
	var stats []LabelStat
	index := make(map[annotation.LabelID]int)
	for _, id := range r.ConfusionLabels() {
		if id == annotation.NoLabel {
			continue
		}
		index[id] = len(stats)
		stats = append(stats, LabelStat{Label: id, Name: r.Vocabulary.Name(id)})
	}

	for k, n := range r.Confusion {
		switch {
		case k.Reference == annotation.NoLabel && k.Candidate == annotation.NoLabel:
			// label-less annotations on both sides; nothing to attribute
		case k.Reference == annotation.NoLabel:
			stats[index[k.Candidate]].UnmatchedCandidate += n
		case k.Candidate == annotation.NoLabel:
			stats[index[k.Reference]].UnmatchedReference += n
		case k.Reference == k.Candidate:
			stats[index[k.Reference]].Matched += n
		default:
			stats[index[k.Reference]].Mismatched += n
		}
	}
	return stats
}

type jsonReport struct {
	Reference  string                `json:"reference"`
	Candidate  string                `json:"candidate"`
	Options    Options               `json:"options"`
	Vocabulary annotation.Vocabulary `json:"labels"`
	Totals     Totals                `json:"totals"`
	Confusion  []Cell                `json:"confusion"`
	Failures   []ItemFailure         `json:"failures"`
	Items      []*ItemResult         `json:"items,omitempty"`
}

func (r *DiffReport) encodable(withItems bool) jsonReport {
	out := jsonReport{
		Reference:  r.Reference,
		Candidate:  r.Candidate,
		Options:    r.Options,
		Vocabulary: r.Vocabulary,
		Totals:     r.Totals,
		Confusion:  r.Cells(),
		Failures:   r.sortedFailures(),
	}
	if out.Vocabulary == nil {
		out.Vocabulary = annotation.Vocabulary{}
	}
	if withItems {
		out.Items = make([]*ItemResult, 0, len(r.Items))
		for _, id := range r.ItemIDs() {
			out.Items = append(out.Items, r.Items[id])
		}
	}
	return out
}

func (r *DiffReport) sortedFailures() []ItemFailure {
	failures := make([]ItemFailure, len(r.Failures))
	copy(failures, r.Failures)
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].ItemID < failures[j].ItemID
	})
	return failures
}

// MarshalJSON encodes the full report with items and cells in sorted order.
func (r *DiffReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.encodable(true))
}

// Summary returns the report encoded without per-item results, indented.
func (r *DiffReport) Summary() ([]byte, error) {
	return json.MarshalIndent(r.encodable(false), "", "  ")
}
