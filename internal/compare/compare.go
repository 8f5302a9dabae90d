package compare

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/ironsheep/annodiff/internal/annotation"
	"github.com/ironsheep/annodiff/internal/dataset"
	"github.com/ironsheep/annodiff/internal/match"
	"github.com/ironsheep/annodiff/internal/report"
	"github.com/ironsheep/annodiff/internal/telemetry"
)

var (
	// ErrInvalidThreshold is returned by New for thresholds outside [0,1].
	ErrInvalidThreshold = errors.New("threshold must be within [0,1]")

	// ErrIncompatibleVocabulary is returned by Compare when the two label
	// vocabularies disagree and no mapping is configured.
	ErrIncompatibleVocabulary = errors.New("incompatible label vocabularies")

	// ErrAllItemsFailed is returned together with the report when no item
	// could be read.
	ErrAllItemsFailed = errors.New("all items failed")
)

// Comparator diffs two datasets item by item. It is safe for concurrent use;
// each Compare call builds its own report.
type Comparator struct {
	settings
}

// ValidThreshold reports whether t lies in [0, 1]. NaN is not valid.
func ValidThreshold(t float64) bool {
	return t >= 0 && t <= 1
}

// New creates a Comparator.
func New(opts ...Option) (*Comparator, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	if !ValidThreshold(s.iouThreshold) {
		return nil, fmt.Errorf("iou threshold %v: %w", s.iouThreshold, ErrInvalidThreshold)
	}
	if !ValidThreshold(s.confThreshold) {
		return nil, fmt.Errorf("confidence threshold %v: %w", s.confThreshold, ErrInvalidThreshold)
	}
	if s.reference != SideFirst && s.reference != SideSecond {
		return nil, fmt.Errorf("invalid reference side %d", int(s.reference))
	}
	if s.workers < 1 {
		s.workers = defaultSettings().workers
	}
	if s.tracer == nil {
		s.tracer = telemetry.Tracer(nil)
	}

	return &Comparator{settings: s}, nil
}

// outcome is what a worker sends back for one item. A nil result means the
// item was abandoned because the run was cancelled.
type outcome struct {
	result *report.ItemResult
	err    error
}

// run holds the per-Compare state shared read-only by workers.
type run struct {
	ref, cand     dataset.Source
	inRef, inCand map[string]bool
	translate     []annotation.LabelID
}

// Compare diffs first and second. Which one is the reference is chosen with
// WithReference.
//
// Items are compared concurrently and folded into the report by the calling
// goroutine. An item that cannot be read is recorded as unavailable (or
// skipped on timeout) and the run continues; if no item could be read the
// report is returned with ErrAllItemsFailed. When ctx is cancelled, no new
// items are started and the partial report is returned with ctx.Err().
func (c *Comparator) Compare(ctx context.Context, first, second dataset.Source) (*report.DiffReport, error) {
	ctx, span := c.tracer.Start(ctx, "annodiff.compare", trace.WithAttributes(
		attribute.String("annodiff.first", first.Name()),
		attribute.String("annodiff.second", second.Name()),
		attribute.String("annodiff.reference_side", c.reference.String()),
	))
	defer span.End()

	rep, err := c.compare(ctx, first, second)
	if rep != nil {
		span.SetAttributes(
			attribute.Int("annodiff.items", rep.Totals.Items),
			attribute.Int("annodiff.matches", rep.Totals.Matches),
			attribute.Int("annodiff.label_mismatches", rep.Totals.LabelMismatches),
			attribute.Int("annodiff.failures", len(rep.Failures)),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return rep, err
}

func (c *Comparator) compare(ctx context.Context, first, second dataset.Source) (*report.DiffReport, error) {
	ref, cand := first, second
	if c.reference == SideSecond {
		ref, cand = second, first
	}

	vocab, translate, err := reconcile(ref.Labels(), cand.Labels(), c.mapping)
	if err != nil {
		return nil, err
	}

	refIDs, err := ref.ItemIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items of %s: %w", ref.Name(), err)
	}
	candIDs, err := cand.ItemIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items of %s: %w", cand.Name(), err)
	}

	r := &run{
		ref:       ref,
		cand:      cand,
		inRef:     toSet(refIDs),
		inCand:    toSet(candIDs),
		translate: translate,
	}
	ids := unionSorted(refIDs, candIDs)

	rep := report.New(ref.Name(), cand.Name(), report.Options{
		IoUThreshold:  c.iouThreshold,
		ConfThreshold: c.confThreshold,
		Reference:     c.reference.String(),
		Strategy:      c.strategy,
		Groups:        c.groups,
	}, vocab)

	c.log.Info("comparing datasets",
		"reference", ref.Name(),
		"candidate", cand.Name(),
		"items", len(ids),
		"workers", c.workers)
	start := time.Now()

	results := make(chan outcome, c.workers)
	go c.schedule(ctx, r, ids, results)

	for out := range results {
		if out.result == nil {
			continue
		}
		rep.Add(out.result)
		if out.err != nil {
			rep.AddFailure(out.result.ID, out.err)
		}
	}

	if err := ctx.Err(); err != nil {
		c.log.Warn("comparison cancelled", "compared", rep.Totals.Items, "items", len(ids))
		return rep, err
	}

	c.log.Info("comparison finished",
		"items", rep.Totals.Items,
		"matches", rep.Totals.Matches,
		"label_mismatches", rep.Totals.LabelMismatches,
		"failures", len(rep.Failures),
		"duration", time.Since(start))

	if len(ids) > 0 && len(rep.Failures) == len(ids) {
		return rep, ErrAllItemsFailed
	}
	return rep, nil
}

// schedule starts one worker per item, bounded by the semaphore, and closes
// results once every started worker has reported.
func (c *Comparator) schedule(ctx context.Context, r *run, ids []string, results chan<- outcome) {
	sem := semaphore.NewWeighted(int64(c.workers))
	var wg sync.WaitGroup

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)
			results <- c.tracedItem(ctx, r, id)
		}(id)
	}

	wg.Wait()
	close(results)
}

func (c *Comparator) tracedItem(ctx context.Context, r *run, id string) outcome {
	ctx, span := c.tracer.Start(ctx, "annodiff.compare_item", trace.WithAttributes(attribute.String("annodiff.item", id)))
	defer span.End()

	out := c.compareItem(ctx, r, id)
	if out.result != nil {
		span.SetAttributes(attribute.String("annodiff.status", string(out.result.Status)))
	}
	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
	}
	return out
}

func (c *Comparator) compareItem(ctx context.Context, r *run, id string) outcome {
	itemCtx := ctx
	if c.itemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, c.itemTimeout)
		defer cancel()
	}

	var refItem, candItem *annotation.Item
	var err error
	if r.inRef[id] {
		refItem, err = r.ref.Item(itemCtx, id)
		if err != nil {
			return c.failed(ctx, id, fmt.Errorf("reference: %w", err))
		}
	}
	if r.inCand[id] {
		candItem, err = r.cand.Item(itemCtx, id)
		if err != nil {
			return c.failed(ctx, id, fmt.Errorf("candidate: %w", err))
		}
	}

	res := &report.ItemResult{ID: id}
	if refItem != nil {
		res.Reference = refItem.Annotations
		res.Image = refItem.Image
	}
	if candItem != nil {
		res.Candidate = translateLabels(candItem.Annotations, r.translate)
		if res.Image == "" {
			res.Image = candItem.Image
		}
	}
	res.ReferenceCount = len(res.Reference)
	res.CandidateCount = len(res.Candidate)

	switch {
	case refItem != nil && candItem != nil:
		res.Status = report.StatusCompared
		c.matchItem(res)
	case refItem != nil:
		res.Status = report.StatusReferenceOnly
		res.Result = oneSided(len(res.Reference), 0)
	default:
		res.Status = report.StatusCandidateOnly
		res.Result = oneSided(0, len(res.Candidate))
	}

	c.log.Debug("item compared",
		"item", id,
		"status", res.Status,
		"matches", len(res.Matches),
		"mismatches", res.Mismatches())
	return outcome{result: res}
}

// failed classifies a lookup error. Errors caused by cancelling the whole run
// drop the item; a per-item deadline marks it skipped; anything else marks it
// unavailable.
func (c *Comparator) failed(ctx context.Context, id string, err error) outcome {
	if ctx.Err() != nil {
		return outcome{}
	}

	status := report.StatusUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		status = report.StatusSkipped
	}
	c.log.Warn("item unavailable", "item", id, "status", status, "error", err)

	return outcome{
		result: &report.ItemResult{ID: id, Status: status, Error: err.Error()},
		err:    err,
	}
}

// matchItem filters low-confidence candidates, runs the matcher and maps the
// result back to original candidate indices.
func (c *Comparator) matchItem(res *report.ItemResult) {
	kept := make([]int, 0, len(res.Candidate))
	filtered := make([]annotation.Annotation, 0, len(res.Candidate))
	for i, a := range res.Candidate {
		if a.Score() < c.confThreshold {
			res.LowConfidence = append(res.LowConfidence, i)
			continue
		}
		kept = append(kept, i)
		filtered = append(filtered, a)
	}

	m := match.Match(res.Reference, filtered, match.Options{
		IoUThreshold: c.iouThreshold,
		Strategy:     c.strategy,
		Groups:       c.groups,
	})

	for i := range m.Matches {
		m.Matches[i].Candidate = kept[m.Matches[i].Candidate]
	}
	for i := range m.LabelMismatches {
		m.LabelMismatches[i].Candidate = kept[m.LabelMismatches[i].Candidate]
	}
	for i := range m.UnmatchedCandidate {
		m.UnmatchedCandidate[i] = kept[m.UnmatchedCandidate[i]]
	}
	for i := range m.PartialCandidate {
		m.PartialCandidate[i] = kept[m.PartialCandidate[i]]
	}
	res.Result = m

	for _, pairs := range [][]match.Pair{m.Matches, m.LabelMismatches} {
		for _, p := range pairs {
			diffs := report.DiffAttributes(res.Reference[p.Reference], res.Candidate[p.Candidate], p.Reference, p.Candidate)
			res.AttributeDiffs = append(res.AttributeDiffs, diffs...)
		}
	}
	sort.SliceStable(res.AttributeDiffs, func(i, j int) bool {
		return res.AttributeDiffs[i].Reference < res.AttributeDiffs[j].Reference
	})
}

func oneSided(numRef, numCand int) match.Result {
	res := match.Result{
		Matches:            make([]match.Pair, 0),
		LabelMismatches:    make([]match.Pair, 0),
		UnmatchedReference: make([]int, numRef),
		UnmatchedCandidate: make([]int, numCand),
	}
	for i := range res.UnmatchedReference {
		res.UnmatchedReference[i] = i
	}
	for i := range res.UnmatchedCandidate {
		res.UnmatchedCandidate[i] = i
	}
	return res
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func unionSorted(a, b []string) []string {
	set := toSet(a)
	for _, id := range b {
		set[id] = true
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
