package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Stroke selects the line pattern of outlines.
type Stroke int

const (
	Solid Stroke = iota
	Dashed
)

// dash lengths in pixels.
const (
	dashOn  = 6
	dashOff = 4
)

// blankColor fills canvases created without a source image.
var blankColor = color.NRGBA{R: 245, G: 245, B: 245, A: 255}

// Canvas is an RGBA drawing surface for annotation overlays.
//
// Drawing happens in canvas pixels. Callers holding coordinates in source
// image space convert them with Project, which applies the scale chosen
// when the canvas was created.
type Canvas struct {
	img   *image.NRGBA
	scale float64
}

// NewCanvas creates a canvas showing background desaturated and brightened
// so that overlays stand out. Backgrounds whose longer edge exceeds maxEdge
// are shrunk to fit; maxEdge <= 0 disables fitting.
func NewCanvas(background image.Image, maxEdge int) *Canvas {
	faded := adjust.Brightness(adjust.Saturation(background, -0.7), 0.2)

	srcW := background.Bounds().Dx()
	var img *image.NRGBA
	if maxEdge > 0 && (srcW > maxEdge || background.Bounds().Dy() > maxEdge) {
		img = imaging.Fit(faded, maxEdge, maxEdge, imaging.Lanczos)
	} else {
		img = imaging.Clone(faded)
	}

	scale := 1.0
	if srcW > 0 {
		scale = float64(img.Bounds().Dx()) / float64(srcW)
	}
	return &Canvas{img: img, scale: scale}
}

// MaxBlankEdge caps the longer edge of a blank canvas when maxEdge is zero.
const MaxBlankEdge = 8192

// BlankCanvas creates a plain canvas covering width x height source pixels,
// shrunk uniformly when the longer edge exceeds maxEdge, or MaxBlankEdge
// when maxEdge <= 0.
func BlankCanvas(width, height, maxEdge int) *Canvas {
	width, height = max(width, 1), max(height, 1)
	if maxEdge <= 0 {
		maxEdge = MaxBlankEdge
	}

	scale := 1.0
	if max(width, height) > maxEdge {
		scale = float64(maxEdge) / float64(max(width, height))
	}
	w := max(int(math.Round(float64(width)*scale)), 1)
	h := max(int(math.Round(float64(height)*scale)), 1)

	return &Canvas{img: imaging.New(w, h, blankColor), scale: scale}
}

// Image returns the drawing surface.
func (c *Canvas) Image() *image.NRGBA { return c.img }

// Scale returns the factor from source coordinates to canvas pixels.
func (c *Canvas) Scale() float64 { return c.scale }

// maxPixel bounds projected coordinates so the int conversion stays defined.
const maxPixel = 1 << 28

// Project converts a source-space coordinate to a canvas pixel.
func (c *Canvas) Project(x, y float64) image.Point {
	return image.Pt(toPixel(x*c.scale), toPixel(y*c.scale))
}

func toPixel(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Floor(math.Max(-maxPixel, math.Min(v, maxPixel))))
}

// Line draws a one-pixel line from a to b.
func (c *Canvas) Line(a, b image.Point, col color.Color, stroke Stroke) {
	c.line(a, b, col, stroke, 0)
}

// line rasterizes with Bresenham's algorithm after clipping the segment to
// the canvas. phase carries the dash position over from the previous segment
// so polylines dash evenly; the updated phase is returned.
func (c *Canvas) line(a, b image.Point, col color.Color, stroke Stroke, phase int) int {
	end := phase + max(abs(b.X-a.X), abs(b.Y-a.Y)) + 1
	ca, cb, ok := clipSegment(a, b, c.img.Bounds())
	if !ok {
		return end
	}
	phase += max(abs(ca.X-a.X), abs(ca.Y-a.Y))
	a, b = ca, cb

	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	x, y := a.X, a.Y
	e := dx + dy
	for {
		if stroke == Solid || phase%(dashOn+dashOff) < dashOn {
			c.set(x, y, col)
		}
		phase++
		if x == b.X && y == b.Y {
			return end
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

// Polygon draws the closed outline through pts.
func (c *Canvas) Polygon(pts []image.Point, col color.Color, stroke Stroke) {
	if len(pts) == 0 {
		return
	}
	phase := 0
	for i := range pts {
		phase = c.line(pts[i], pts[(i+1)%len(pts)], col, stroke, phase)
	}
}

// Rect draws the outline of r, two pixels wide for solid strokes.
func (c *Canvas) Rect(r image.Rectangle, col color.Color, stroke Stroke) {
	r = r.Canon()
	corners := []image.Point{
		r.Min,
		{X: r.Max.X, Y: r.Min.Y},
		r.Max,
		{X: r.Min.X, Y: r.Max.Y},
	}
	c.Polygon(corners, col, stroke)
	if stroke == Solid && r.Dx() > 2 && r.Dy() > 2 {
		c.Polygon([]image.Point{
			r.Min.Add(image.Pt(1, 1)),
			{X: r.Max.X - 1, Y: r.Min.Y + 1},
			r.Max.Sub(image.Pt(1, 1)),
			{X: r.Min.X + 1, Y: r.Max.Y - 1},
		}, col, stroke)
	}
}

// Fill blends col over r using col's alpha.
func (c *Canvas) Fill(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r.Intersect(c.img.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
}

// Marker draws a small cross centred on p.
func (c *Canvas) Marker(p image.Point, col color.Color, size int) {
	c.Line(p.Sub(image.Pt(size, size)), p.Add(image.Pt(size, size)), col, Solid)
	c.Line(image.Pt(p.X-size, p.Y+size), image.Pt(p.X+size, p.Y-size), col, Solid)
}

// Label writes text with its top-left corner at p on a filled background,
// clamped to stay inside the canvas.
func (c *Canvas) Label(p image.Point, text string, fg, bg color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	bounds := c.img.Bounds()
	p.X = min(max(p.X, bounds.Min.X), bounds.Max.X-width-2)
	p.Y = min(max(p.Y, bounds.Min.Y), bounds.Max.Y-height-2)

	c.Fill(image.Rect(p.X, p.Y, p.X+width+2, p.Y+height+2), bg)

	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(p.X+1, p.Y+1+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// EncodePNG writes the canvas as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	return imaging.Encode(w, c.img, imaging.PNG)
}

func (c *Canvas) set(x, y int, col color.Color) {
	if image.Pt(x, y).In(c.img.Bounds()) {
		c.img.Set(x, y, col)
	}
}

// clipSegment clips a-b to the pixels of r with the Liang-Barsky algorithm.
// ok is false when the segment misses r entirely.
func clipSegment(a, b image.Point, r image.Rectangle) (image.Point, image.Point, bool) {
	if r.Empty() {
		return a, b, false
	}
	if a.In(r) && b.In(r) {
		return a, b, true
	}

	x0, y0 := float64(a.X), float64(a.Y)
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	minX, maxX := float64(r.Min.X), float64(r.Max.X-1)
	minY, maxY := float64(r.Min.Y), float64(r.Max.Y-1)

	t0, t1 := 0.0, 1.0
	for _, edge := range [4][2]float64{
		{-dx, x0 - minX},
		{dx, maxX - x0},
		{-dy, y0 - minY},
		{dy, maxY - y0},
	} {
		p, q := edge[0], edge[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			t0 = math.Max(t0, t)
		} else {
			t1 = math.Min(t1, t)
		}
		if t0 > t1 {
			return a, b, false
		}
	}

	clamp := func(t float64) image.Point {
		x := int(math.Round(x0 + t*dx))
		y := int(math.Round(y0 + t*dy))
		return image.Pt(min(max(x, r.Min.X), r.Max.X-1), min(max(y, r.Min.Y), r.Max.Y-1))
	}
	return clamp(t0), clamp(t1), true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
