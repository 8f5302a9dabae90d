package geometry

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/ironsheep/annodiff/internal/annotation"
)

// rasterGrid is the edge length of the square grid used for polygon IoU. The
// union bounds of both polygons are stretched onto it; IoU is unaffected by
// scaling each axis separately.
const rasterGrid = 512

// PolygonIoU returns the intersection-over-union of two simple polygons.
//
// Both polygons are rasterized with anti-aliasing onto the same grid, which
// covers the union of their bounds. Per pixel, the intersection counts the
// smaller of the two coverages and the union the larger. Polygons with fewer
// than three vertices, or whose raster is empty, are degenerate.
func PolygonIoU(a, b []annotation.Point) float64 {
	if len(a) < 3 || len(b) < 3 {
		return degenerateScore(a, b)
	}

	boxA, boxB := pointsBox(a), pointsBox(b)
	bounds := unionBox(boxA, boxB)
	if !(bounds.W > 0 && bounds.H > 0) {
		return degenerateScore(a, b)
	}
	if boxA.Area() > 0 && boxB.Area() > 0 && BoxIoU(boxA, boxB) == 0 {
		return 0
	}

	sx := rasterGrid / bounds.W
	sy := rasterGrid / bounds.H
	ma := rasterize(a, bounds.X, bounds.Y, sx, sy, rasterGrid, rasterGrid)
	mb := rasterize(b, bounds.X, bounds.Y, sx, sy, rasterGrid, rasterGrid)

	var inter, union int
	for i := range ma.Pix {
		ca, cb := int(ma.Pix[i]), int(mb.Pix[i])
		inter += min(ca, cb)
		union += max(ca, cb)
	}
	if union == 0 {
		return degenerateScore(a, b)
	}
	return float64(inter) / float64(union)
}

// rasterize fills the polygon into a w x h alpha mask after translating by
// (-offX, -offY) and scaling by (sx, sy).
func rasterize(poly []annotation.Point, offX, offY, sx, sy float64, w, h int) *image.Alpha {
	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Src

	px := func(p annotation.Point) (float32, float32) {
		return float32((p.X - offX) * sx), float32((p.Y - offY) * sy)
	}

	x, y := px(poly[0])
	z.MoveTo(x, y)
	for _, p := range poly[1:] {
		x, y = px(p)
		z.LineTo(x, y)
	}
	z.ClosePath()

	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	return dst
}

// degenerateScore implements the coincidence rule for shapes without area.
func degenerateScore(a, b []annotation.Point) float64 {
	if len(a) != len(b) {
		return 0
	}
	for i := range a {
		if a[i] != b[i] {
			return 0
		}
	}
	return 1
}

// pointsBox returns the bounding box of a point list.
func pointsBox(points []annotation.Point) annotation.Box {
	if len(points) == 0 {
		return annotation.Box{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return annotation.Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func unionBox(a, b annotation.Box) annotation.Box {
	minX := math.Min(a.X, b.X)
	minY := math.Min(a.Y, b.Y)
	maxX := math.Max(a.X+a.W, b.X+b.W)
	maxY := math.Max(a.Y+a.H, b.Y+b.H)
	return annotation.Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
