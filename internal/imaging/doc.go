// Package imaging provides the raster side of annotation overlays: loading
// source images, preparing a drawing canvas and drawing outlines, markers
// and captions on it.
//
// # Coordinate System
//
// Source coordinates follow the image convention: (0,0) is the top-left
// corner, X grows rightward and Y downward. A Canvas may be smaller than its
// source image; Canvas.Project maps source coordinates to canvas pixels.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. A Canvas is not; each rendered file
// gets its own.
//
// # Colours
//
// Palette produces a stable sequence of distinct colours spaced in HCL
// space, so a label keeps its colour across every overlay of a run.
package imaging
