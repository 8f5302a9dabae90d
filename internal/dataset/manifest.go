package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/annodiff/internal/annotation"
)

var (
	// ErrUnknownLabel is returned when an annotation names a label that is
	// not in the manifest's labels list.
	ErrUnknownLabel = errors.New("unknown label")

	// ErrInvalidManifest is returned for structurally invalid manifests.
	ErrInvalidManifest = errors.New("invalid manifest")
)

// manifestNames are tried in order when Load is given a directory.
var manifestNames = []string{"dataset.yaml", "dataset.yml", "dataset.json"}

// maxManifestSize bounds the manifest file read by Load.
const maxManifestSize = 256 << 20

// maxCoordinate bounds the magnitude of any geometry value so that overlap
// and drawing code can convert coordinates to pixels without overflow.
const maxCoordinate = 1 << 30

type manifestFile struct {
	Name   string         `yaml:"name"`
	Labels []string       `yaml:"labels"`
	Items  []manifestItem `yaml:"items"`
}

type manifestItem struct {
	ID          string               `yaml:"id"`
	Image       string               `yaml:"image,omitempty"`
	Annotations []manifestAnnotation `yaml:"annotations,omitempty"`
}

type manifestAnnotation struct {
	ID         string         `yaml:"id,omitempty"`
	Type       string         `yaml:"type"`
	Label      string         `yaml:"label,omitempty"`
	BBox       []float64      `yaml:"bbox,omitempty"`
	Polygon    []float64      `yaml:"polygon,omitempty"`
	Points     []float64      `yaml:"points,omitempty"`
	Mask       *manifestMask  `yaml:"mask,omitempty"`
	Score      *float64       `yaml:"score,omitempty"`
	Group      int            `yaml:"group,omitempty"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

type manifestMask struct {
	Width  int   `yaml:"width"`
	Height int   `yaml:"height"`
	Counts []int `yaml:"counts"`
}

// Manifest is a Source loaded from a YAML or JSON manifest file.
type Manifest struct {
	*Memory
	path string
}

// Path returns the manifest file the dataset was loaded from.
func (m *Manifest) Path() string { return m.path }

// Load reads a dataset manifest. If path is a directory, the first of
// dataset.yaml, dataset.yml or dataset.json found in it is used.
func Load(path string) (*Manifest, error) {
	file, err := resolveManifest(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("failed to stat manifest: %w", err)
	}
	if stat.Size() > maxManifestSize {
		return nil, fmt.Errorf("manifest too large: %d bytes (max %d)", stat.Size(), maxManifestSize)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return Parse(data, file)
}

// Parse decodes manifest bytes. file is used for the dataset's default name
// and to resolve relative image paths; it may be empty.
func Parse(data []byte, file string) (*Manifest, error) {
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, file, err)
	}
	if err := validateManifest(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, file, err)
	}

	name := mf.Name
	baseDir := ""
	if file != "" {
		baseDir = filepath.Dir(file)
		if name == "" {
			name = filepath.Base(baseDir)
		}
	}

	labels := annotation.Vocabulary(mf.Labels)
	seen := make(map[string]bool, len(mf.Items))
	items := make([]annotation.Item, 0, len(mf.Items))
	for i, mi := range mf.Items {
		if mi.ID == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrInvalidManifest, i)
		}
		if seen[mi.ID] {
			return nil, fmt.Errorf("%w: duplicate item id %q", ErrInvalidManifest, mi.ID)
		}
		seen[mi.ID] = true

		item, err := mi.toItem(labels, baseDir)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return &Manifest{
		Memory: NewMemory(name, labels, items...),
		path:   file,
	}, nil
}

func (mi manifestItem) toItem(labels annotation.Vocabulary, baseDir string) (annotation.Item, error) {
	item := annotation.Item{
		ID:          mi.ID,
		Image:       resolveImage(baseDir, mi.Image),
		Annotations: make([]annotation.Annotation, 0, len(mi.Annotations)),
	}
	for j, ma := range mi.Annotations {
		ann, err := ma.toAnnotation(labels)
		if err != nil {
			return item, fmt.Errorf("item %q annotation %d: %w", mi.ID, j, err)
		}
		item.Annotations = append(item.Annotations, ann)
	}
	return item, nil
}

func (ma manifestAnnotation) toAnnotation(labels annotation.Vocabulary) (annotation.Annotation, error) {
	kind, err := annotation.ParseKind(ma.Type)
	if err != nil {
		return annotation.Annotation{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	label := annotation.NoLabel
	if ma.Label != "" {
		id, ok := labels.Lookup(ma.Label)
		if !ok {
			return annotation.Annotation{}, fmt.Errorf("%w %q", ErrUnknownLabel, ma.Label)
		}
		label = id
	}

	ann := annotation.Annotation{
		ID:         ma.ID,
		Kind:       kind,
		Label:      label,
		Confidence: ma.Score,
		Group:      ma.Group,
		Attributes: ma.Attributes,
	}

	for field, vals := range map[string][]float64{"bbox": ma.BBox, "polygon": ma.Polygon, "points": ma.Points} {
		if err := checkCoordinates(field, vals); err != nil {
			return ann, err
		}
	}

	switch kind {
	case annotation.KindBox:
		if len(ma.BBox) != 4 {
			return ann, fmt.Errorf("%w: bbox needs 4 values, got %d", ErrInvalidManifest, len(ma.BBox))
		}
		ann.Box = annotation.Box{X: ma.BBox[0], Y: ma.BBox[1], W: ma.BBox[2], H: ma.BBox[3]}
	case annotation.KindPolygon:
		pts, err := pairsToPoints(ma.Polygon)
		if err != nil {
			return ann, err
		}
		ann.Polygon = pts
	case annotation.KindPoints:
		pts, err := pairsToPoints(ma.Points)
		if err != nil {
			return ann, err
		}
		ann.Points = pts
	case annotation.KindMask:
		if ma.Mask == nil {
			return ann, fmt.Errorf("%w: mask annotation without mask", ErrInvalidManifest)
		}
		m := annotation.Mask{Width: ma.Mask.Width, Height: ma.Mask.Height, Counts: ma.Mask.Counts}
		if err := m.Validate(); err != nil {
			return ann, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		ann.Mask = &m
	}

	if ma.Score != nil && !(*ma.Score >= 0 && *ma.Score <= 1) {
		return ann, fmt.Errorf("%w: score %v outside [0,1]", ErrInvalidManifest, *ma.Score)
	}

	return ann, nil
}

func checkCoordinates(field string, vals []float64) error {
	for i, v := range vals {
		if math.IsNaN(v) || math.Abs(v) > maxCoordinate {
			return fmt.Errorf("%w: %s value %d is %v", ErrInvalidManifest, field, i, v)
		}
	}
	return nil
}

func pairsToPoints(flat []float64) ([]annotation.Point, error) {
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of coordinates (%d)", ErrInvalidManifest, len(flat))
	}
	pts := make([]annotation.Point, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		pts = append(pts, annotation.Point{X: flat[i], Y: flat[i+1]})
	}
	return pts, nil
}

func resolveManifest(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to open dataset: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range manifestNames {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no dataset manifest in %s", ErrInvalidManifest, path)
}

func resolveImage(baseDir, image string) string {
	if image == "" || filepath.IsAbs(image) || baseDir == "" {
		return image
	}
	return filepath.Join(baseDir, image)
}

var _ Source = (*Manifest)(nil)
