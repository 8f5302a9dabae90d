// Package dataset is the boundary between the diff engine and whatever stores
// annotated datasets.
//
// The engine only needs three read-only questions answered, captured by the
// Source interface: which item ids exist, what an item's ordered annotations
// are, and what the label vocabulary is. Three implementations are provided:
//
//   - Memory: an in-memory source, used by tests and as the store behind Manifest
//   - Manifest: a source backed by a YAML or JSON manifest file
//   - Redis: a source backed by a Redis database, filled by Publish
//
// Open picks the implementation from a location string: redis:// URLs open
// Redis, anything else is treated as a manifest path.
//
// # Manifest Format
//
//	name: ground-truth
//	labels: [cat, dog]
//	items:
//	  - id: img_001
//	    image: images/img_001.png
//	    annotations:
//	      - type: box
//	        label: cat
//	        bbox: [10, 20, 50, 40]     # x, y, w, h
//	      - type: polygon
//	        label: dog
//	        polygon: [0, 0, 10, 0, 10, 10]
//	        score: 0.8
//	        group: 2
//	      - type: mask
//	        label: cat
//	        mask: {width: 4, height: 2, counts: [1, 3, 4]}
//	      - type: label
//	        label: dog
//
// JSON manifests with the same keys are accepted. Manifests are checked
// against an embedded JSON schema before decoding, and label names are
// resolved against the labels list at load time.
package dataset
