package render

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/ironsheep/annodiff/internal/annotation"
	"github.com/ironsheep/annodiff/internal/geometry"
	"github.com/ironsheep/annodiff/internal/imaging"
	"github.com/ironsheep/annodiff/internal/report"
)

var (
	noLabelColor  = color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	lowConfColor  = color.NRGBA{R: 190, G: 190, B: 190, A: 255}
	unmatchedMark = color.NRGBA{R: 230, G: 30, B: 30, A: 255}
	mismatchMark  = color.NRGBA{R: 240, G: 200, B: 0, A: 255}
	captionFG     = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	captionBG     = color.NRGBA{R: 0, G: 0, B: 0, A: 170}
)

// blankMargin pads blank canvases around the annotation extents.
const blankMargin = 20

// state is how one annotation ended up after matching.
type state int

const (
	stateMatched state = iota
	stateMismatch
	stateUnmatched
	statePartial
	stateLowConfidence
)

func (r *Renderer) renderOverlays(ctx context.Context, rep *report.DiffReport, dest string) error {
	if err := writeSummaryFile(rep, dest); err != nil {
		return err
	}
	return forEachItem(ctx, rep, r.workers, func(it *report.ItemResult) error {
		if it.Status == report.StatusUnavailable || it.Status == report.StatusSkipped {
			return nil
		}
		canvas := r.canvasFor(it)
		drawItem(canvas, rep.Vocabulary, it)
		return writePNG(filepath.Join(dest, FileName(it.ID)+".png"), canvas)
	})
}

// canvasFor uses the item's source image when it can be loaded, otherwise a
// blank canvas covering the annotations.
func (r *Renderer) canvasFor(it *report.ItemResult) *imaging.Canvas {
	if it.Image != "" {
		img, err := r.cache.Load(it.Image)
		if err == nil {
			return imaging.NewCanvas(img, r.maxEdge)
		}
		r.log.Warn("source image unavailable, drawing on blank canvas", "item", it.ID, "error", err)
	}

	w, h := 0.0, 0.0
	for _, list := range [][]annotation.Annotation{it.Reference, it.Candidate} {
		for _, a := range list {
			if b, ok := geometry.Bounds(a); ok {
				if b.X+b.W > w {
					w = b.X + b.W
				}
				if b.Y+b.H > h {
					h = b.Y + b.H
				}
			}
		}
	}
	w, h = math.Min(w, imaging.MaxBlankEdge), math.Min(h, imaging.MaxBlankEdge)
	return imaging.BlankCanvas(int(math.Ceil(w))+blankMargin, int(math.Ceil(h))+blankMargin, r.maxEdge)
}

func drawItem(c *imaging.Canvas, vocab annotation.Vocabulary, it *report.ItemResult) {
	refStates, candStates := states(it)

	var captions []string
	for i, a := range it.Reference {
		if caption := drawAnnotation(c, vocab, a, refStates[i], imaging.Solid, false); caption != "" {
			captions = append(captions, "ref  "+caption)
		}
	}
	for i, a := range it.Candidate {
		if caption := drawAnnotation(c, vocab, a, candStates[i], imaging.Dashed, true); caption != "" {
			captions = append(captions, "cand "+caption)
		}
	}

	header := fmt.Sprintf("%s  %s  matched %d  mismatched %d", it.ID, it.Status, len(it.Matches), it.Mismatches())
	c.Label(image.Pt(2, 2), header, captionFG, captionBG)
	for i, caption := range captions {
		c.Label(image.Pt(2, 18+14*i), caption, captionFG, captionBG)
	}
}

// drawAnnotation draws one annotation. Label annotations have no geometry;
// their caption is returned for the item's caption list instead.
func drawAnnotation(c *imaging.Canvas, vocab annotation.Vocabulary, a annotation.Annotation, st state, stroke imaging.Stroke, candidate bool) string {
	col := labelColor(a.Label)
	if st == stateLowConfidence {
		col = lowConfColor
	}

	caption := vocab.Name(a.Label)
	if candidate && a.Confidence != nil {
		caption = fmt.Sprintf("%s %.2f", caption, *a.Confidence)
	}
	if st == stateMismatch {
		caption += " (mismatch)"
	}

	if a.Kind == annotation.KindLabel {
		if st == stateMatched {
			return ""
		}
		return caption
	}

	bounds, ok := geometry.Bounds(a)
	if !ok {
		return ""
	}
	topLeft := c.Project(bounds.X, bounds.Y)
	bottomRight := c.Project(bounds.X+bounds.W, bounds.Y+bounds.H)

	switch a.Kind {
	case annotation.KindBox:
		c.Rect(image.Rectangle{Min: topLeft, Max: bottomRight}, col, stroke)
	case annotation.KindPolygon:
		pts := make([]image.Point, len(a.Polygon))
		for i, p := range a.Polygon {
			pts[i] = c.Project(p.X, p.Y)
		}
		c.Polygon(pts, col, stroke)
	case annotation.KindMask:
		fillMask(c, *a.Mask, imaging.WithAlpha(col, 80))
		c.Rect(image.Rectangle{Min: topLeft, Max: bottomRight}, col, stroke)
	case annotation.KindPoints:
		for _, p := range a.Points {
			c.Marker(c.Project(p.X, p.Y), col, 3)
		}
	}

	switch st {
	case stateUnmatched, statePartial:
		c.Marker(image.Pt(bottomRight.X, topLeft.Y), unmatchedMark, 4)
	case stateMismatch:
		c.Marker(image.Pt(bottomRight.X, topLeft.Y), mismatchMark, 4)
	case stateLowConfidence:
		return ""
	}

	at := topLeft.Sub(image.Pt(0, 15))
	if candidate {
		at = image.Pt(topLeft.X, bottomRight.Y+2)
	}
	c.Label(at, caption, captionFG, captionBG)
	return ""
}

func fillMask(c *imaging.Canvas, m annotation.Mask, col color.Color) {
	bits := m.Decode()
	for y := 0; y < m.Height; y++ {
		row := bits[y*m.Width : (y+1)*m.Width]
		for x := 0; x < m.Width; {
			if !row[x] {
				x++
				continue
			}
			start := x
			for x < m.Width && row[x] {
				x++
			}
			p0 := c.Project(float64(start), float64(y))
			p1 := c.Project(float64(x), float64(y+1))
			c.Fill(image.Rect(p0.X, p0.Y, max(p1.X, p0.X+1), max(p1.Y, p0.Y+1)), col)
		}
	}
}

func labelColor(l annotation.LabelID) color.NRGBA {
	if l == annotation.NoLabel || l < 0 {
		return noLabelColor
	}
	return imaging.PaletteColor(int(l))
}

// states indexes the item's match result by annotation.
func states(it *report.ItemResult) (ref, cand []state) {
	ref = make([]state, len(it.Reference))
	cand = make([]state, len(it.Candidate))
	set := func(s []state, i int, st state) {
		if i >= 0 && i < len(s) {
			s[i] = st
		}
	}

	for _, p := range it.LabelMismatches {
		set(ref, p.Reference, stateMismatch)
		set(cand, p.Candidate, stateMismatch)
	}
	for _, i := range it.UnmatchedReference {
		set(ref, i, stateUnmatched)
	}
	for _, i := range it.UnmatchedCandidate {
		set(cand, i, stateUnmatched)
	}
	for _, i := range it.PartialReference {
		set(ref, i, statePartial)
	}
	for _, i := range it.PartialCandidate {
		set(cand, i, statePartial)
	}
	for _, i := range it.LowConfidence {
		set(cand, i, stateLowConfidence)
	}
	return ref, cand
}

func writePNG(path string, c *imaging.Canvas) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := c.EncodePNG(w); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
