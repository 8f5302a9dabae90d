// Package render writes a report.DiffReport to disk or a stream.
//
// # Formats
//
//	text     aligned summary: totals, confusion table, items with differences;
//	         with a destination, summary.txt plus items/<id>.txt
//	json     the full report; with a destination, summary.json plus items/<id>.json
//	overlay  summary.txt and one PNG per item, reference solid and candidate dashed
//	chart    summary.txt, confusion.html heat map and labels.png bar chart
//	sqlite   summary.txt and diff.db with items, pairs, unmatched, confusion
//	         and meta tables
//
// text and json go to stdout when no destination is given. The other formats
// need a destination directory.
//
// # Destinations
//
// A missing destination is created. An existing non-empty destination is
// refused with ErrDestinationExists unless overwriting is enabled; files the
// render does not produce are left alone.
//
// # File Names
//
// Per-item files are named by FileName, which maps an item id to a name
// that is safe on common filesystems and stays distinct for distinct ids.
package render
