package geometry

import (
	"math"

	"github.com/ironsheep/annodiff/internal/annotation"
)

// Overlap returns the overlap score of a and b in [0, 1].
//
// ok is false when the pair is incomparable: the kinds differ, or a kind's
// geometry payload is missing.
func Overlap(a, b annotation.Annotation) (score float64, ok bool) {
	if a.Kind != b.Kind {
		return 0, false
	}

	switch a.Kind {
	case annotation.KindBox:
		score = BoxIoU(a.Box, b.Box)
	case annotation.KindPolygon:
		score = PolygonIoU(a.Polygon, b.Polygon)
	case annotation.KindMask:
		if a.Mask == nil || b.Mask == nil {
			return 0, false
		}
		score = MaskIoU(*a.Mask, *b.Mask)
	case annotation.KindLabel:
		if a.Label == b.Label {
			score = 1
		}
	case annotation.KindPoints:
		score = PointSimilarity(a.Points, b.Points)
	default:
		return 0, false
	}

	return clamp01(score), true
}

// BoxIoU returns the intersection-over-union of two boxes.
func BoxIoU(a, b annotation.Box) float64 {
	areaA, areaB := a.Area(), b.Area()
	if areaA == 0 || areaB == 0 {
		if a == b {
			return 1
		}
		return 0
	}

	w := math.Min(a.X+a.W, b.X+b.W) - math.Max(a.X, b.X)
	h := math.Min(a.Y+a.H, b.Y+b.H) - math.Max(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}

	inter := w * h
	return inter / (areaA + areaB - inter)
}

// MaskIoU returns the intersection-over-union of two masks.
//
// Masks of different canvas sizes are compared on the union canvas anchored
// at the origin; pixels outside a mask's canvas count as background.
func MaskIoU(a, b annotation.Mask) float64 {
	bitsA, bitsB := a.Decode(), b.Decode()
	width := max(a.Width, b.Width)
	height := max(a.Height, b.Height)

	inter, union := 0, 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			inA := maskAt(bitsA, a.Width, a.Height, x, y)
			inB := maskAt(bitsB, b.Width, b.Height, x, y)
			if inA && inB {
				inter++
			}
			if inA || inB {
				union++
			}
		}
	}

	if union == 0 {
		if a.Width == b.Width && a.Height == b.Height {
			return 1
		}
		return 0
	}
	return float64(inter) / float64(union)
}

func maskAt(bits []bool, width, height, x, y int) bool {
	if x >= width || y >= height {
		return false
	}
	return bits[y*width+x]
}

// keypointSigma is the per-point falloff used by PointSimilarity.
const keypointSigma = 0.1

// PointSimilarity returns the object keypoint similarity of two point sets.
//
// The sets are compared point by point in order, so sets of different length
// score 0. The scale is the mean bounding-box area of the two sets. When that
// area is zero (a single point, or collinear points) a point contributes 1
// only if it coincides exactly with its counterpart.
func PointSimilarity(a, b []annotation.Point) float64 {
	if len(a) != len(b) {
		return 0
	}
	if len(a) == 0 {
		return 1
	}

	scale := (pointsBox(a).Area() + pointsBox(b).Area()) / 2

	var sum float64
	for i := range a {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		d2 := dx*dx + dy*dy
		if scale == 0 {
			if d2 == 0 {
				sum++
			}
			continue
		}
		sum += math.Exp(-d2 / (2 * scale * keypointSigma * keypointSigma))
	}
	return sum / float64(len(a))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
