package imaging

import (
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// goldenAngle spaces successive palette hues so neighbours stay distinct
// however many labels there are.
const goldenAngle = 137.50776405003785

// Palette returns n opaque, visually distinct colours. The same n always
// yields the same colours, and Palette(n)[i] == Palette(m)[i] for any n, m > i.
func Palette(n int) []color.NRGBA {
	out := make([]color.NRGBA, n)
	for i := range out {
		out[i] = PaletteColor(i)
	}
	return out
}

// PaletteColor returns the i-th palette colour.
func PaletteColor(i int) color.NRGBA {
	hue := float64(i) * goldenAngle
	for hue >= 360 {
		hue -= 360
	}
	r, g, b := colorful.Hcl(hue, 0.75, 0.6).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// WithAlpha returns c with its alpha replaced.
func WithAlpha(c color.NRGBA, a uint8) color.NRGBA {
	c.A = a
	return c
}
