package geometry

import "github.com/ironsheep/annodiff/internal/annotation"

// Bounds returns the axis-aligned bounding box of an annotation's geometry.
// ok is false for label annotations and for empty geometry.
func Bounds(a annotation.Annotation) (box annotation.Box, ok bool) {
	switch a.Kind {
	case annotation.KindBox:
		return a.Box, true
	case annotation.KindPolygon:
		if len(a.Polygon) == 0 {
			return annotation.Box{}, false
		}
		return pointsBox(a.Polygon), true
	case annotation.KindPoints:
		if len(a.Points) == 0 {
			return annotation.Box{}, false
		}
		return pointsBox(a.Points), true
	case annotation.KindMask:
		if a.Mask == nil {
			return annotation.Box{}, false
		}
		return maskBox(*a.Mask)
	}
	return annotation.Box{}, false
}

// maskBox returns the pixel bounds of a mask's foreground. The box spans
// whole pixels, so W and H are at least 1 when the mask is not empty.
func maskBox(m annotation.Mask) (annotation.Box, bool) {
	bits := m.Decode()
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for i, in := range bits {
		if !in {
			continue
		}
		x, y := i%m.Width, i/m.Width
		minX = min(minX, x)
		minY = min(minY, y)
		maxX = max(maxX, x)
		maxY = max(maxY, y)
	}
	if maxX < 0 {
		return annotation.Box{}, false
	}
	return annotation.Box{
		X: float64(minX),
		Y: float64(minY),
		W: float64(maxX - minX + 1),
		H: float64(maxY - minY + 1),
	}, true
}
