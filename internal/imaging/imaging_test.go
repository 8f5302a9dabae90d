package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// createInMemoryImage creates a solid-colour image.
func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createTestImage writes a solid-colour PNG into a temp dir and returns its path.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-image.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, createInMemoryImage(width, height, c)); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestImageCache_Load(t *testing.T) {
	path := createTestImage(t, 40, 30, color.RGBA{255, 0, 0, 255})
	cache := NewImageCache()

	img, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("dimensions: got %dx%d, want 40x30", b.Dx(), b.Dy())
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}

	again, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if again != img {
		t.Error("second Load did not return the cached image")
	}
}

func TestImageCache_Errors(t *testing.T) {
	cache := NewImageCache()

	if _, err := cache.Load(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Load(bad); err == nil {
		t.Error("expected error for undecodable file")
	}
	if cache.Len() != 0 {
		t.Errorf("failed loads were cached: Len() = %d", cache.Len())
	}
}

func TestImageCache_Concurrent(t *testing.T) {
	path := createTestImage(t, 10, 10, color.RGBA{0, 0, 255, 255})
	cache := NewImageCache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}()
	}
	wg.Wait()

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", cache.Len())
	}
}

func TestNewCanvas_Fits(t *testing.T) {
	bg := createInMemoryImage(400, 200, color.RGBA{200, 0, 0, 255})

	c := NewCanvas(bg, 100)
	if b := c.Image().Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("canvas size: got %dx%d, want 100x50", b.Dx(), b.Dy())
	}
	if c.Scale() != 0.25 {
		t.Errorf("Scale() = %v, want 0.25", c.Scale())
	}
	if p := c.Project(200, 100); p != image.Pt(50, 25) {
		t.Errorf("Project(200,100) = %v, want (50,25)", p)
	}

	small := NewCanvas(bg, 0)
	if small.Scale() != 1 {
		t.Errorf("Scale() without fitting = %v, want 1", small.Scale())
	}
}

func TestNewCanvas_FadesBackground(t *testing.T) {
	bg := createInMemoryImage(10, 10, color.RGBA{200, 0, 0, 255})
	c := NewCanvas(bg, 0)

	got := c.Image().NRGBAAt(5, 5)
	if got.R == 200 && got.G == 0 && got.B == 0 {
		t.Errorf("background not faded: %v", got)
	}
}

func TestBlankCanvas(t *testing.T) {
	c := BlankCanvas(2000, 1000, 500)
	if b := c.Image().Bounds(); b.Dx() != 500 || b.Dy() != 250 {
		t.Errorf("canvas size: got %dx%d, want 500x250", b.Dx(), b.Dy())
	}

	tiny := BlankCanvas(0, 0, 500)
	if b := tiny.Image().Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Errorf("degenerate canvas: got %dx%d, want 1x1", b.Dx(), b.Dy())
	}
	huge := BlankCanvas(1<<20, 1<<19, 0)
	if b := huge.Image().Bounds(); b.Dx() != MaxBlankEdge || b.Dy() != MaxBlankEdge/2 {
		t.Errorf("unbounded canvas: got %dx%d, want %dx%d", b.Dx(), b.Dy(), MaxBlankEdge, MaxBlankEdge/2)
	}
}

func TestCanvas_Rect(t *testing.T) {
	c := BlankCanvas(50, 50, 0)
	red := color.NRGBA{255, 0, 0, 255}
	c.Rect(image.Rect(10, 10, 30, 30), red, Solid)

	if got := c.Image().NRGBAAt(10, 20); got != red {
		t.Errorf("left edge pixel = %v, want red", got)
	}
	if got := c.Image().NRGBAAt(20, 20); got == red {
		t.Error("rect interior was filled")
	}
}

func TestCanvas_DashedLeavesGaps(t *testing.T) {
	c := BlankCanvas(50, 5, 0)
	blue := color.NRGBA{0, 0, 255, 255}
	c.Line(image.Pt(0, 2), image.Pt(49, 2), blue, Dashed)

	drawn, gaps := 0, 0
	for x := 0; x < 50; x++ {
		if c.Image().NRGBAAt(x, 2) == blue {
			drawn++
		} else {
			gaps++
		}
	}
	if drawn == 0 || gaps == 0 {
		t.Errorf("dashed line: drawn=%d gaps=%d, want both non-zero", drawn, gaps)
	}
}

func TestCanvas_ClipsOutside(t *testing.T) {
	c := BlankCanvas(10, 10, 0)
	// must not panic
	c.Line(image.Pt(-20, -20), image.Pt(40, 40), color.Black, Solid)
	c.Marker(image.Pt(-5, 5), color.Black, 3)
	c.Fill(image.Rect(-10, -10, 100, 100), color.NRGBA{0, 0, 0, 128})
}

func TestCanvas_HugeCoordinates(t *testing.T) {
	c := BlankCanvas(10, 10, 0)
	black := color.NRGBA{0, 0, 0, 255}

	far := c.Project(math.Inf(1), math.NaN())
	if far != image.Pt(maxPixel, 0) {
		t.Errorf("Project(+Inf, NaN) = %v, want (%d, 0)", far, maxPixel)
	}

	c.Line(image.Pt(-maxPixel, 5), image.Pt(maxPixel, 5), black, Solid)
	for _, x := range []int{0, 9} {
		if got := c.Image().NRGBAAt(x, 5); got != black {
			t.Errorf("pixel (%d,5) = %v, want black", x, got)
		}
	}

	c.Polygon([]image.Point{{-maxPixel, -maxPixel}, {maxPixel, -maxPixel}, {maxPixel, maxPixel}}, black, Dashed)
	if got := c.Image().NRGBAAt(3, 3); got != black {
		t.Errorf("diagonal pixel (3,3) = %v, want black", got)
	}
}

func TestCanvas_ClippedDashKeepsPhase(t *testing.T) {
	blue := color.NRGBA{0, 0, 255, 255}
	full := BlankCanvas(60, 5, 0)
	full.Line(image.Pt(0, 2), image.Pt(59, 2), blue, Dashed)

	clipped := BlankCanvas(50, 5, 0)
	clipped.Line(image.Pt(-10, 2), image.Pt(49, 2), blue, Dashed)

	for x := 0; x < 50; x++ {
		want := full.Image().NRGBAAt(x+10, 2) == blue
		got := clipped.Image().NRGBAAt(x, 2) == blue
		if got != want {
			t.Errorf("pixel %d drawn=%v, want %v", x, got, want)
		}
	}
}

func TestCanvas_LabelAndEncode(t *testing.T) {
	c := BlankCanvas(120, 40, 0)
	c.Label(image.Pt(110, 35), "cat 0.93", color.White, color.NRGBA{0, 0, 0, 255})

	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	if decoded.Bounds().Dx() != 120 {
		t.Errorf("decoded width = %d, want 120", decoded.Bounds().Dx())
	}

	// label was clamped inside, so some pixel in the bottom-right area is black
	found := false
	for y := 20; y < 40 && !found; y++ {
		for x := 60; x < 120; x++ {
			if c.Image().NRGBAAt(x, y) == (color.NRGBA{0, 0, 0, 255}) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("label background not drawn inside canvas")
	}
}

func TestPalette(t *testing.T) {
	p := Palette(12)
	seen := make(map[color.NRGBA]bool)
	for i, c := range p {
		if c.A != 255 {
			t.Errorf("colour %d not opaque: %v", i, c)
		}
		if seen[c] {
			t.Errorf("colour %d repeated: %v", i, c)
		}
		seen[c] = true
		if PaletteColor(i) != c {
			t.Errorf("PaletteColor(%d) differs from Palette", i)
		}
	}
	if Palette(3)[2] != p[2] {
		t.Error("palette prefix not stable")
	}
}
