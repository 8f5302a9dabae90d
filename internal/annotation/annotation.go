package annotation

import (
	"fmt"
	"strings"
)

// Kind identifies the geometry carried by an annotation.
type Kind int

const (
	KindLabel Kind = iota
	KindBox
	KindPolygon
	KindMask
	KindPoints
)

var kindNames = [...]string{
	KindLabel:   "label",
	KindBox:     "box",
	KindPolygon: "polygon",
	KindMask:    "mask",
	KindPoints:  "points",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind converts a kind name ("box", "polygon", "mask", "label",
// "points") to a Kind. "bbox" and "point-set" are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "label":
		return KindLabel, nil
	case "box", "bbox":
		return KindBox, nil
	case "polygon":
		return KindPolygon, nil
	case "mask":
		return KindMask, nil
	case "points", "point-set":
		return KindPoints, nil
	}
	return 0, fmt.Errorf("unknown annotation kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// LabelID is an index into a Vocabulary.
type LabelID int

// NoLabel marks an annotation without a label and the "none" side of a
// confusion cell.
const NoLabel LabelID = -1

// Point is a 2D coordinate in the annotation's native space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle given by its top-left corner and size.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns W*H, or 0 for boxes with a non-positive side.
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Annotation is one labeled region or tag attached to an item.
//
// Exactly one of Box, Polygon, Mask or Points is meaningful, selected by
// Kind. KindLabel annotations carry no geometry.
type Annotation struct {
	ID         string         `json:"id,omitempty"`
	Kind       Kind           `json:"type"`
	Label      LabelID        `json:"label"`
	Box        Box            `json:"bbox,omitempty"`
	Polygon    []Point        `json:"polygon,omitempty"`
	Mask       *Mask          `json:"mask,omitempty"`
	Points     []Point        `json:"points,omitempty"`
	Confidence *float64       `json:"score,omitempty"`
	Group      int            `json:"group,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Score returns the annotation's confidence, treating an absent value as 1.0.
func (a Annotation) Score() float64 {
	if a.Confidence == nil {
		return 1.0
	}
	return *a.Confidence
}

// HasLabel reports whether the annotation carries a label.
func (a Annotation) HasLabel() bool {
	return a.Label != NoLabel
}

// WithScore returns a copy of a with the given confidence.
func (a Annotation) WithScore(score float64) Annotation {
	a.Confidence = &score
	return a
}

// WithGroup returns a copy of a assigned to group g.
func (a Annotation) WithGroup(g int) Annotation {
	a.Group = g
	return a
}

// WithID returns a copy of a with the given annotation id.
func (a Annotation) WithID(id string) Annotation {
	a.ID = id
	return a
}

// WithAttributes returns a copy of a carrying attrs.
func (a Annotation) WithAttributes(attrs map[string]any) Annotation {
	a.Attributes = attrs
	return a
}

// NewBox creates a box annotation.
func NewBox(x, y, w, h float64, label LabelID) Annotation {
	return Annotation{Kind: KindBox, Label: label, Box: Box{X: x, Y: y, W: w, H: h}}
}

// NewPolygon creates a polygon annotation from its ordered vertices.
func NewPolygon(points []Point, label LabelID) Annotation {
	return Annotation{Kind: KindPolygon, Label: label, Polygon: points}
}

// NewMask creates a mask annotation.
func NewMask(m Mask, label LabelID) Annotation {
	return Annotation{Kind: KindMask, Label: label, Mask: &m}
}

// NewPoints creates a point-set annotation.
func NewPoints(points []Point, label LabelID) Annotation {
	return Annotation{Kind: KindPoints, Label: label, Points: points}
}

// NewLabel creates a geometry-free label annotation.
func NewLabel(label LabelID) Annotation {
	return Annotation{Kind: KindLabel, Label: label}
}

// Item is one addressable unit of a dataset, such as one image.
type Item struct {
	ID string `json:"id"`

	// Image is an optional path to the item's source image. Renderers use it
	// as the background for visual overlays.
	Image string `json:"image,omitempty"`

	Annotations []Annotation `json:"annotations"`
}
