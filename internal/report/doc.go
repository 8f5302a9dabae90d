// Package report holds the result model of a dataset diff.
//
// A DiffReport is produced by the comparator and consumed by renderers. It
// carries one ItemResult per item id seen on either side, a sparse confusion
// table keyed by (reference label, candidate label), aggregate totals and the
// list of items that could not be read.
//
// # Confusion Table
//
// Cells are keyed by LabelPair. annotation.NoLabel (-1) stands for "none":
//
//	(cat, cat)   matched annotation
//	(cat, dog)   label mismatch
//	(cat, none)  reference annotation with no counterpart
//	(none, dog)  candidate annotation with no counterpart
//
// Only non-zero cells are stored; Cells returns them in sorted order.
//
// # Determinism
//
// Map iteration order never leaks into output. MarshalJSON emits items sorted
// by id and confusion cells sorted by key, so two reports built from the same
// inputs encode to identical bytes regardless of how many workers produced
// them.
package report
