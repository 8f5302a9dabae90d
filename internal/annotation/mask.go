package annotation

import "fmt"

// Mask is a binary region stored as uncompressed run lengths.
//
// Counts alternate background and foreground runs in row-major order,
// starting with a (possibly zero-length) background run. The runs must sum to
// Width*Height.
type Mask struct {
	Width  int   `json:"width"`
	Height int   `json:"height"`
	Counts []int `json:"counts"`
}

// Validate checks that the runs cover the canvas exactly.
func (m Mask) Validate() error {
	if m.Width < 0 || m.Height < 0 {
		return fmt.Errorf("invalid mask size %dx%d", m.Width, m.Height)
	}
	total := 0
	for i, c := range m.Counts {
		if c < 0 {
			return fmt.Errorf("negative run length %d at position %d", c, i)
		}
		total += c
	}
	if total != m.Width*m.Height {
		return fmt.Errorf("mask runs cover %d pixels, want %d", total, m.Width*m.Height)
	}
	return nil
}

// Decode expands the runs into a row-major bitmap of Width*Height entries.
// Runs beyond the canvas are truncated.
func (m Mask) Decode() []bool {
	n := m.Width * m.Height
	if n <= 0 {
		return nil
	}
	bits := make([]bool, n)
	pos := 0
	for i, c := range m.Counts {
		end := pos + c
		if end > n {
			end = n
		}
		if i%2 == 1 {
			for p := pos; p < end; p++ {
				bits[p] = true
			}
		}
		pos = end
		if pos >= n {
			break
		}
	}
	return bits
}

// Area returns the number of foreground pixels.
func (m Mask) Area() int {
	area := 0
	for i := 1; i < len(m.Counts); i += 2 {
		area += m.Counts[i]
	}
	return area
}

// EncodeMask builds a Mask from a row-major bitmap.
func EncodeMask(width, height int, bits []bool) Mask {
	counts := make([]int, 0, 8)
	current := false
	run := 0
	for i := 0; i < width*height; i++ {
		v := i < len(bits) && bits[i]
		if v != current {
			counts = append(counts, run)
			current = v
			run = 0
		}
		run++
	}
	counts = append(counts, run)
	return Mask{Width: width, Height: height, Counts: counts}
}
