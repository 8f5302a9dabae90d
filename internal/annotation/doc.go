// Package annotation defines the read-only data model shared by the diff engine.
//
// An Annotation is a closed tagged variant: its Kind selects exactly one
// geometry payload (Box, Polygon, Mask or Points) or none at all for plain
// label tags. Labels are indices into a dataset-level Vocabulary, with
// NoLabel standing in for "no label" everywhere a label id is expected,
// including the confusion table of a diff report.
//
// # Coordinate System
//
// Geometry uses the usual image convention:
//   - Origin (0, 0) at the top-left corner
//   - X increases rightward, Y increases downward
//   - Boxes are stored as top-left corner plus width and height
//
// Values of this package are supplied by the dataset layer and must not be
// mutated while a comparison is running.
package annotation
