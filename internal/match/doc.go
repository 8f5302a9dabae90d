// Package match pairs the annotations of one item between a reference list
// and a candidate list.
//
// Match computes the overlap of every comparable (reference, candidate) pair,
// keeps the pairs that reach the IoU threshold, and selects a one-to-one
// subset of them. Two strategies are available:
//
//   - StrategyGreedy (default): accept pairs in order of decreasing overlap,
//     ties broken by reference index then candidate index, skipping pairs
//     whose endpoints were already claimed.
//   - StrategyOptimal: a Kuhn-Munkres assignment over the same candidate
//     pairs. It maximizes the number of accepted pairs, then the total
//     overlap among assignments of that size.
//
// Accepted pairs whose labels differ are reported as label mismatches rather
// than matches. Every index of both inputs ends up in exactly one class of the
// Result.
//
// # Groups
//
// With Options.Groups enabled, annotations sharing a non-zero group id are
// treated as parts of one object: once any member of a reference group is
// paired with any member of a candidate group, the remaining unpaired members
// of both groups are reported as partial group matches instead of unmatched.
package match
