// Package compare diffs two annotated datasets.
//
// A Comparator reconciles the label vocabularies of the two datasets, walks
// the union of their item ids and, for every item present on both sides,
// pairs annotations with the match package. Results are folded into a
// report.DiffReport.
//
// # Usage
//
//	cmp, err := compare.New(
//	    compare.WithIoUThreshold(0.5),
//	    compare.WithConfThreshold(0.3),
//	    compare.WithWorkers(8),
//	)
//	if err != nil {
//	    return err
//	}
//	rep, err := cmp.Compare(ctx, groundTruth, predictions)
//
// # Sides
//
// One dataset is the reference (ground truth) and the other the candidate.
// Only candidate annotations are filtered by confidence: those scoring below
// the confidence threshold are listed as low-confidence and take no part in
// matching. Items present on one side only have every annotation reported
// as unmatched.
//
// # Concurrency
//
// Items are compared by a pool of workers bounded with a weighted semaphore.
// Workers never touch the report; each sends its item result over a channel
// and the goroutine that called Compare folds them in. The report therefore
// does not depend on the number of workers or on scheduling order.
package compare
