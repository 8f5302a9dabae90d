// Package geometry computes overlap scores between annotations.
//
// Overlap is intersection-over-union (IoU) for region kinds and a similarity
// score in [0, 1] for the rest:
//
//   - box: exact IoU of the two rectangles
//   - polygon: IoU of the two polygons rasterized on a shared pixel grid
//   - mask: IoU of the decoded bitmaps on their union canvas
//   - label: 1 when the labels are equal, otherwise 0
//   - points: object keypoint similarity of two point sets of equal length
//
// Annotations of different kinds are incomparable and Overlap reports ok ==
// false for them. All scores are symmetric.
//
// # Degenerate Shapes
//
// Shapes without area (zero-size boxes, polygons with fewer than three
// vertices or no rasterized pixels, empty masks) score 1.0 against an exactly
// coincident shape and 0 against anything else.
package geometry
