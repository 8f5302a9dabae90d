package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/annodiff/internal/annotation"
	"github.com/ironsheep/annodiff/internal/match"
	"github.com/ironsheep/annodiff/internal/report"
)

// writeSummaryFile writes the text summary to dest/summary.txt. Every
// directory format starts with it.
func writeSummaryFile(rep *report.DiffReport, dest string) error {
	var buf bytes.Buffer
	if err := writeText(&buf, rep); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, "summary.txt"), buf.Bytes(), 0o644)
}

// renderTextTree writes summary.txt and one items/<name>.txt per item.
func (r *Renderer) renderTextTree(ctx context.Context, rep *report.DiffReport, dest string) error {
	if err := writeSummaryFile(rep, dest); err != nil {
		return err
	}

	itemsDir := filepath.Join(dest, "items")
	if err := os.MkdirAll(itemsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create items directory: %w", err)
	}

	return forEachItem(ctx, rep, r.workers, func(it *report.ItemResult) error {
		var buf bytes.Buffer
		if err := writeItemText(&buf, rep.Vocabulary, it); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(itemsDir, FileName(it.ID)+".txt"), buf.Bytes(), 0o644)
	})
}

// writeItemText lists every pair, unmatched and low-confidence annotation of
// one item.
func writeItemText(w io.Writer, vocab annotation.Vocabulary, it *report.ItemResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "item:\t%s\n", it.ID)
	fmt.Fprintf(tw, "status:\t%s\n", it.Status)
	if it.Image != "" {
		fmt.Fprintf(tw, "image:\t%s\n", it.Image)
	}
	if it.Error != "" {
		fmt.Fprintf(tw, "error:\t%s\n", oneLine(it.Error))
	}
	fmt.Fprintf(tw, "annotations:\t%d reference, %d candidate\n", it.ReferenceCount, it.CandidateCount)
	fmt.Fprintln(tw)

	if len(it.Matches)+len(it.LabelMismatches) > 0 {
		fmt.Fprintln(tw, "PAIRS")
		fmt.Fprintln(tw, "ref\tcand\toverlap\treference label\tcandidate label\toutcome")
		for _, group := range []struct {
			pairs   []match.Pair
			outcome string
		}{
			{it.Matches, "match"},
			{it.LabelMismatches, "label mismatch"},
		} {
			for _, p := range group.pairs {
				fmt.Fprintf(tw, "%d\t%d\t%.3f\t%s\t%s\t%s\n", p.Reference, p.Candidate, p.Overlap,
					vocab.Name(labelAt(it.Reference, p.Reference)),
					vocab.Name(labelAt(it.Candidate, p.Candidate)),
					group.outcome)
			}
		}
		fmt.Fprintln(tw)
	}

	rows := []struct {
		side    string
		indices []int
		anns    []annotation.Annotation
		kind    string
	}{
		{"reference", it.UnmatchedReference, it.Reference, "unmatched"},
		{"reference", it.PartialReference, it.Reference, "partial group"},
		{"candidate", it.UnmatchedCandidate, it.Candidate, "unmatched"},
		{"candidate", it.PartialCandidate, it.Candidate, "partial group"},
		{"candidate", it.LowConfidence, it.Candidate, "low confidence"},
	}
	header := false
	for _, row := range rows {
		for _, i := range row.indices {
			if !header {
				fmt.Fprintln(tw, "NOT PAIRED")
				fmt.Fprintln(tw, "side\tindex\tlabel\treason")
				header = true
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", row.side, i, vocab.Name(labelAt(row.anns, i)), row.kind)
		}
	}
	if header {
		fmt.Fprintln(tw)
	}

	if len(it.AttributeDiffs) > 0 {
		fmt.Fprintln(tw, "ATTRIBUTES")
		fmt.Fprintln(tw, "ref\tcand\tkey\treference\tcandidate")
		for _, d := range it.AttributeDiffs {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%v\t%v\n", d.Reference, d.Candidate, d.Key, d.ReferenceValue, d.CandidateValue)
		}
		fmt.Fprintln(tw)
	}

	return tw.Flush()
}

// writeText prints totals, the confusion table, items with differences and
// failures as aligned columns.
func writeText(w io.Writer, rep *report.DiffReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	o := rep.Options
	fmt.Fprintf(tw, "reference:\t%s\n", rep.Reference)
	fmt.Fprintf(tw, "candidate:\t%s\n", rep.Candidate)
	fmt.Fprintf(tw, "settings:\tiou>=%g conf>=%g strategy=%s groups=%t reference=%s\n",
		o.IoUThreshold, o.ConfThreshold, o.Strategy, o.Groups, o.Reference)
	fmt.Fprintln(tw)

	t := rep.Totals
	fmt.Fprintln(tw, "TOTALS")
	fmt.Fprintf(tw, "items\t%d\t(compared %d, unavailable %d, skipped %d)\n", t.Items, t.Compared, t.Unavailable, t.Skipped)
	fmt.Fprintf(tw, "matches\t%d\n", t.Matches)
	fmt.Fprintf(tw, "label mismatches\t%d\n", t.LabelMismatches)
	fmt.Fprintf(tw, "unmatched reference\t%d\n", t.UnmatchedReference)
	fmt.Fprintf(tw, "unmatched candidate\t%d\n", t.UnmatchedCandidate)
	if o.Groups {
		fmt.Fprintf(tw, "partial reference\t%d\n", t.PartialReference)
		fmt.Fprintf(tw, "partial candidate\t%d\n", t.PartialCandidate)
	}
	fmt.Fprintf(tw, "low confidence\t%d\n", t.LowConfidence)
	if overlaps := pairOverlaps(rep); len(overlaps) > 0 {
		mean, sd := stat.MeanStdDev(overlaps, nil)
		if len(overlaps) == 1 {
			sd = 0
		}
		fmt.Fprintf(tw, "pair overlap\tmean %.3f\t(sd %.3f, min %.3f)\n", mean, sd, floats.Min(overlaps))
	}
	fmt.Fprintln(tw)

	writeConfusion(tw, rep)

	var changed []*report.ItemResult
	for _, id := range rep.ItemIDs() {
		it := rep.Items[id]
		if it.Status != report.StatusUnavailable && it.Status != report.StatusSkipped && it.Mismatches() > 0 {
			changed = append(changed, it)
		}
	}
	if len(changed) > 0 {
		fmt.Fprintln(tw, "ITEMS WITH DIFFERENCES")
		fmt.Fprintln(tw, "item\tstatus\tmatched\tmismatched\tunmatched ref\tunmatched cand\tlow conf")
		for _, it := range changed {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				it.ID, it.Status, len(it.Matches), len(it.LabelMismatches),
				len(it.UnmatchedReference)+len(it.PartialReference),
				len(it.UnmatchedCandidate)+len(it.PartialCandidate),
				len(it.LowConfidence))
		}
		fmt.Fprintln(tw)
	}

	if len(rep.Failures) > 0 {
		fmt.Fprintln(tw, "FAILURES")
		for _, id := range rep.ItemIDs() {
			it := rep.Items[id]
			if it.Error != "" {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", it.ID, it.Status, oneLine(it.Error))
			}
		}
		fmt.Fprintln(tw)
	}

	return tw.Flush()
}

// pairOverlaps collects the overlap of every accepted pair in item order.
func pairOverlaps(rep *report.DiffReport) []float64 {
	var out []float64
	for _, id := range rep.ItemIDs() {
		it := rep.Items[id]
		for _, p := range it.Matches {
			out = append(out, p.Overlap)
		}
		for _, p := range it.LabelMismatches {
			out = append(out, p.Overlap)
		}
	}
	return out
}

// writeConfusion prints reference labels as rows and candidate labels as
// columns.
func writeConfusion(tw *tabwriter.Writer, rep *report.DiffReport) {
	labels := rep.ConfusionLabels()
	if !hasNone(labels) {
		labels = append([]annotation.LabelID{annotation.NoLabel}, labels...)
	}

	fmt.Fprintln(tw, "CONFUSION (rows: reference, columns: candidate)")
	header := []string{""}
	for _, l := range labels {
		header = append(header, rep.Vocabulary.Name(l))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range labels {
		cells := []string{rep.Vocabulary.Name(row)}
		for _, col := range labels {
			n := rep.Confusion[report.LabelPair{Reference: row, Candidate: col}]
			cells = append(cells, fmt.Sprint(n))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	fmt.Fprintln(tw)
}

func hasNone(labels []annotation.LabelID) bool {
	for _, l := range labels {
		if l == annotation.NoLabel {
			return true
		}
	}
	return false
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
