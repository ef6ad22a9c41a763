package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/polisai/layersync/pkg/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
generation: 2
layers:
  - name: t1
    role: main
    format: scalar
    dims: [256, 256, 120]
  - name: tumor
    role: segmentation
    format: label
    dims: [256, 256, 120]
    opacity: 0.5
  - name: pet
    role: overlay
    format: scalar
    dims: [128, 128, 60]
    visible: false
    transform: [2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 1]
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.Equal(t, int64(2), m.Generation)

	specs, err := m.Specs()
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, layers.RoleMain, specs[0].Role)
	assert.Equal(t, 1.0, specs[0].Opacity)
	assert.False(t, specs[0].Hidden)

	assert.Equal(t, layers.FormatLabel, specs[1].Format)
	assert.Equal(t, 0.5, specs[1].Opacity)

	assert.True(t, specs[2].Hidden)
	assert.Equal(t, 2.0, specs[2].Transform[0])
	assert.Equal(t, [3]int{128, 128, 60}, specs[2].Dims)
}

func TestParseManifestJSON(t *testing.T) {
	data := `{"generation": 1, "layers": [{"name": "ct", "role": "main", "format": "scalar", "dims": [4, 4, 4]}]}`
	m, err := ParseManifest([]byte(data))
	require.NoError(t, err)
	specs, err := m.Specs()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "ct", specs[0].Name)
}

func TestManifestValidation(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{
			name: "duplicate names",
			manifest: `
layers:
  - {name: a, format: scalar, dims: [1, 1, 1]}
  - {name: a, format: scalar, dims: [1, 1, 1]}
`,
		},
		{
			name: "two main layers",
			manifest: `
layers:
  - {name: a, role: main, format: scalar, dims: [1, 1, 1]}
  - {name: b, role: main, format: scalar, dims: [1, 1, 1]}
`,
		},
		{
			name:     "unknown role",
			manifest: `layers: [{name: a, role: background, format: scalar, dims: [1, 1, 1]}]`,
		},
		{
			name:     "unknown format",
			manifest: `layers: [{name: a, format: complex, dims: [1, 1, 1]}]`,
		},
		{
			name:     "two dimensions",
			manifest: `layers: [{name: a, format: scalar, dims: [1, 1]}]`,
		},
		{
			name:     "zero dimension",
			manifest: `layers: [{name: a, format: scalar, dims: [1, 0, 1]}]`,
		},
		{
			name:     "opacity out of range",
			manifest: `layers: [{name: a, format: scalar, dims: [1, 1, 1], opacity: 2}]`,
		},
		{
			name:     "short transform",
			manifest: `layers: [{name: a, format: scalar, dims: [1, 1, 1], transform: [1, 0, 0]}]`,
		},
		{
			name:     "negative generation",
			manifest: `generation: -1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.manifest))
			require.NoError(t, err)
			assert.ErrorIs(t, m.Validate(), ErrConfigInvalid)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, m.Layers, 3)

	require.NoError(t, os.WriteFile(path, []byte("layers: [{name: a, dims: [1]}]"), 0o644))
	_, err = LoadManifest(path)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestManifestAppliesToCollection(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)
	specs, err := m.Specs()
	require.NoError(t, err)

	c := layers.NewCollection()
	result, err := c.Apply(specs)
	require.NoError(t, err)
	assert.Len(t, result.Added, 3)

	main, ok := c.Main()
	require.True(t, ok)
	assert.Equal(t, "t1", main.Name())
}
