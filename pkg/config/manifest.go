package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/polisai/layersync/pkg/layers"
	"gopkg.in/yaml.v3"
)

// Manifest is the declarative list of layers the viewer displays.
type Manifest struct {
	Generation int64           `yaml:"generation" json:"generation"`
	Layers     []LayerManifest `yaml:"layers" json:"layers"`
}

// LayerManifest describes one layer. Opacity defaults to 1 and Visible to true.
type LayerManifest struct {
	Name      string    `yaml:"name" json:"name"`
	Role      string    `yaml:"role" json:"role"`
	Format    string    `yaml:"format" json:"format"`
	Dims      []int     `yaml:"dims" json:"dims"`
	Transform []float64 `yaml:"transform,omitempty" json:"transform,omitempty"`
	Opacity   *float64  `yaml:"opacity,omitempty" json:"opacity,omitempty"`
	Visible   *bool     `yaml:"visible,omitempty" json:"visible,omitempty"`
}

// ParseManifest decodes a manifest from YAML, falling back to JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		if jsonErr := json.Unmarshal(data, &m); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
	}
	return &m, nil
}

// LoadManifest reads, parses and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	// #nosec G304 -- Manifest path is configured at startup
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("manifest %s is empty", path)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Validate checks the manifest as a whole: unique names, at most one main
// layer and a valid description for every layer.
func (m *Manifest) Validate() error {
	if m.Generation < 0 {
		return fmt.Errorf("%w: negative generation %d", ErrConfigInvalid, m.Generation)
	}
	_, err := m.Specs()
	return err
}

// Specs converts the manifest into layer specs.
func (m *Manifest) Specs() ([]layers.Spec, error) {
	specs := make([]layers.Spec, 0, len(m.Layers))
	seen := make(map[string]struct{}, len(m.Layers))
	mains := 0
	for i, lm := range m.Layers {
		spec, err := lm.Spec()
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d: %v", ErrConfigInvalid, i, err)
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate layer name %q", ErrConfigInvalid, spec.Name)
		}
		seen[spec.Name] = struct{}{}
		if spec.Role == layers.RoleMain {
			mains++
		}
		specs = append(specs, spec)
	}
	if mains > 1 {
		return nil, fmt.Errorf("%w: %d layers declare the main role", ErrConfigInvalid, mains)
	}
	return specs, nil
}

// Spec converts a single layer entry.
func (lm LayerManifest) Spec() (layers.Spec, error) {
	role, err := layers.ParseRole(lm.Role)
	if err != nil {
		return layers.Spec{}, err
	}
	format, err := layers.ParsePixelFormat(lm.Format)
	if err != nil {
		return layers.Spec{}, err
	}
	if len(lm.Dims) != 3 {
		return layers.Spec{}, fmt.Errorf("layer %q: dims needs 3 values, got %d", lm.Name, len(lm.Dims))
	}
	spec := layers.Spec{
		Name:    strings.TrimSpace(lm.Name),
		Role:    role,
		Format:  format,
		Dims:    [3]int{lm.Dims[0], lm.Dims[1], lm.Dims[2]},
		Opacity: 1,
	}
	switch len(lm.Transform) {
	case 0:
	case 16:
		copy(spec.Transform[:], lm.Transform)
	default:
		return layers.Spec{}, fmt.Errorf("layer %q: transform needs 16 values, got %d", lm.Name, len(lm.Transform))
	}
	if lm.Opacity != nil {
		spec.Opacity = *lm.Opacity
	}
	if lm.Visible != nil {
		spec.Hidden = !*lm.Visible
	}
	if err := spec.Validate(); err != nil {
		return layers.Spec{}, err
	}
	return spec, nil
}
