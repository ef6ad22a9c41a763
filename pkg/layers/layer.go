// Package layers models the ordered collection of image layers displayed by
// the viewer.
//
// Layers are identified by pointer. Replacing a layer (for example because its
// pixel format changed) produces a new identity, so every association keyed
// by the old one is torn down and rebuilt.
package layers

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/polisai/layersync/pkg/notify"
)

var (
	ErrInvalidLayer   = errors.New("invalid layer")
	ErrDuplicateLayer = errors.New("duplicate layer")
	ErrMainLayerTaken = errors.New("main layer already present")
	ErrLayerNotFound  = errors.New("layer not found")
)

// Role places a layer in the paint order.
type Role int

const (
	RoleMain Role = iota
	RoleSegmentation
	RoleOverlay
)

func (r Role) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleSegmentation:
		return "segmentation"
	case RoleOverlay:
		return "overlay"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "main":
		return RoleMain, nil
	case "segmentation":
		return RoleSegmentation, nil
	case "overlay", "":
		return RoleOverlay, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrInvalidLayer, s)
	}
}

// PixelKind is the interpretation of a voxel value.
type PixelKind int

const (
	KindScalar PixelKind = iota
	KindLabel
	KindRGB
)

func (k PixelKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindLabel:
		return "label"
	case KindRGB:
		return "rgb"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// PixelFormat describes the voxel layout of a layer.
type PixelFormat struct {
	Kind       PixelKind
	Components int
}

var (
	FormatScalar = PixelFormat{Kind: KindScalar, Components: 1}
	FormatLabel  = PixelFormat{Kind: KindLabel, Components: 1}
	FormatRGB    = PixelFormat{Kind: KindRGB, Components: 3}
)

// ParsePixelFormat accepts "scalar", "label", "rgb" and "vector<N>".
func ParsePixelFormat(s string) (PixelFormat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "scalar", "":
		return FormatScalar, nil
	case "label":
		return FormatLabel, nil
	case "rgb":
		return FormatRGB, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "vector%d", &n); err == nil && n > 0 {
		return PixelFormat{Kind: KindScalar, Components: n}, nil
	}
	return PixelFormat{}, fmt.Errorf("%w: unknown pixel format %q", ErrInvalidLayer, s)
}

func (f PixelFormat) String() string {
	if f.Kind == KindScalar && f.Components > 1 {
		return fmt.Sprintf("vector%d", f.Components)
	}
	return f.Kind.String()
}

// Validate reports whether the kind and component count agree.
func (f PixelFormat) Validate() error {
	switch f.Kind {
	case KindScalar:
		if f.Components < 1 {
			return fmt.Errorf("%w: scalar format needs at least one component", ErrInvalidLayer)
		}
	case KindLabel:
		if f.Components != 1 {
			return fmt.Errorf("%w: label format has exactly one component", ErrInvalidLayer)
		}
	case KindRGB:
		if f.Components != 3 {
			return fmt.Errorf("%w: rgb format has exactly three components", ErrInvalidLayer)
		}
	default:
		return fmt.Errorf("%w: unknown pixel kind %d", ErrInvalidLayer, int(f.Kind))
	}
	return nil
}

// Identity returns the 4x4 identity matrix in row-major order.
func Identity() [16]float64 {
	return [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Spec describes a layer declaratively. A zero Transform means identity.
type Spec struct {
	Name      string
	Role      Role
	Format    PixelFormat
	Dims      [3]int
	Transform [16]float64
	Opacity   float64
	Hidden    bool
}

// Validate checks the spec without building a layer.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLayer)
	}
	if s.Role < RoleMain || s.Role > RoleOverlay {
		return fmt.Errorf("%w: layer %q has unknown role %d", ErrInvalidLayer, s.Name, int(s.Role))
	}
	if err := s.Format.Validate(); err != nil {
		return fmt.Errorf("layer %q: %w", s.Name, err)
	}
	for i, d := range s.Dims {
		if d <= 0 {
			return fmt.Errorf("%w: layer %q has non-positive dimension %d", ErrInvalidLayer, s.Name, i)
		}
	}
	if math.IsNaN(s.Opacity) || s.Opacity < 0 || s.Opacity > 1 {
		return fmt.Errorf("%w: layer %q opacity %v outside [0,1]", ErrInvalidLayer, s.Name, s.Opacity)
	}
	return nil
}

func (s Spec) transform() [16]float64 {
	if s.Transform == ([16]float64{}) {
		return Identity()
	}
	return s.Transform
}

// Layer is one image in the collection. Its geometry and format are fixed for
// its lifetime; display state can change and is announced on Appearance.
type Layer struct {
	id         uuid.UUID
	name       string
	role       Role
	format     PixelFormat
	dims       [3]int
	transform  [16]float64
	opacity    float64
	visible    bool
	appearance notify.Signal
}

// New builds a layer from spec.
func New(spec Spec) (*Layer, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Layer{
		id:        uuid.New(),
		name:      spec.Name,
		role:      spec.Role,
		format:    spec.Format,
		dims:      spec.Dims,
		transform: spec.transform(),
		opacity:   spec.Opacity,
		visible:   !spec.Hidden,
	}, nil
}

func (l *Layer) ID() uuid.UUID          { return l.id }
func (l *Layer) Name() string           { return l.name }
func (l *Layer) Role() Role             { return l.role }
func (l *Layer) Format() PixelFormat    { return l.format }
func (l *Layer) Dims() [3]int           { return l.dims }
func (l *Layer) Transform() [16]float64 { return l.transform }
func (l *Layer) Opacity() float64       { return l.opacity }
func (l *Layer) Visible() bool          { return l.visible }

// Appearance is emitted when opacity or visibility changes.
func (l *Layer) Appearance() *notify.Signal {
	return &l.appearance
}

// SetOpacity clamps opacity to [0,1].
func (l *Layer) SetOpacity(opacity float64) {
	if math.IsNaN(opacity) {
		return
	}
	opacity = math.Max(0, math.Min(1, opacity))
	if opacity == l.opacity {
		return
	}
	l.opacity = opacity
	l.appearance.Emit()
}

func (l *Layer) SetVisible(visible bool) {
	if visible == l.visible {
		return
	}
	l.visible = visible
	l.appearance.Emit()
}

// Spec returns the layer's current description.
func (l *Layer) Spec() Spec {
	return Spec{
		Name:      l.name,
		Role:      l.role,
		Format:    l.format,
		Dims:      l.dims,
		Transform: l.transform,
		Opacity:   l.opacity,
		Hidden:    !l.visible,
	}
}

// compatible reports whether spec can be applied to l without a new identity.
func (l *Layer) compatible(spec Spec) bool {
	return l.role == spec.Role &&
		l.format == spec.Format &&
		l.dims == spec.Dims &&
		l.transform == spec.transform()
}

func (l *Layer) String() string {
	if l == nil {
		return "<nil>"
	}
	return l.name
}
