package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, path string, generation int) {
	t.Helper()
	content := fmt.Sprintf("generation: %d\nlayers:\n  - {name: t1, role: main, format: scalar, dims: [8, 8, 8]}\n", generation)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func waitForGeneration(t *testing.T, ch <-chan *Manifest, generation int64) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case m := <-ch:
			if m.Generation == generation {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for manifest generation %d", generation)
		}
	}
}

func TestFileManifestProviderInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.yaml")
	writeManifest(t, path, 1)

	p, err := NewFileManifestProvider(path, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	current := p.Current()
	require.NotNil(t, current)
	assert.Equal(t, int64(1), current.Generation)

	ch := p.Subscribe()
	select {
	case m := <-ch:
		assert.Same(t, current, m)
	default:
		t.Fatal("expected current manifest on subscribe")
	}
}

func TestFileManifestProviderReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.yaml")
	writeManifest(t, path, 1)

	p, err := NewFileManifestProvider(path, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()
	ch := p.Subscribe()
	<-ch

	writeManifest(t, path, 2)

	waitForGeneration(t, ch, 2)
}

func TestFileManifestProviderKeepsLastValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.yaml")
	writeManifest(t, path, 1)

	p, err := NewFileManifestProvider(path, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	require.NoError(t, os.WriteFile(path, []byte("layers: [{name: broken}]"), 0o644))
	time.Sleep(200 * time.Millisecond)

	require.NotNil(t, p.Current())
	assert.Equal(t, int64(1), p.Current().Generation)
}

func TestFileManifestProviderMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layers.yaml")

	p, err := NewFileManifestProvider(path, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()
	assert.Nil(t, p.Current())
	assert.Equal(t, path, p.Path())

	ch := p.Subscribe()
	writeManifest(t, path, 3)

	waitForGeneration(t, ch, 3)
}

func TestFileManifestProviderMissingDirectory(t *testing.T) {
	_, err := NewFileManifestProvider(filepath.Join(t.TempDir(), "nope", "layers.yaml"))
	assert.Error(t, err)
}
