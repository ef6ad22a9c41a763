package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/polisai/layersync/pkg/layers"
	"github.com/rs/zerolog/log"
)

// Interpolation selects the texture sampling filter.
type Interpolation int

const (
	Linear Interpolation = iota
	Nearest
)

func (i Interpolation) String() string {
	if i == Nearest {
		return "nearest"
	}
	return "linear"
}

// ParseInterpolation accepts "linear" and "nearest".
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "nearest":
		return Nearest, nil
	default:
		return 0, fmt.Errorf("unknown interpolation %q", s)
	}
}

// Texture is the slice texture of one layer.
type Texture struct {
	Handle        Handle
	Format        layers.PixelFormat
	Width         int
	Height        int
	Interpolation Interpolation
	// Editable marks the texture of the layer being edited.
	Editable bool
	ready    bool
	released bool
	device   Device
}

// Ready reports whether the texture's contents are on the device.
func (t *Texture) Ready() bool {
	return t.ready && !t.released
}

// Released reports whether the device storage was freed.
func (t *Texture) Released() bool {
	return t.released
}

func (t *Texture) release() {
	if t.released {
		return
	}
	t.released = true
	if err := t.device.Free(t.Handle); err != nil {
		log.Warn().Err(err).Uint64("handle", uint64(t.Handle)).Msg("Texture free failed")
	}
}

// TextureFactory creates slice textures for layers. Label layers are always
// sampled with nearest-neighbour interpolation.
type TextureFactory struct {
	Device        Device
	Interpolation Interpolation
}

func (f TextureFactory) allocate(ctx context.Context, layer *layers.Layer) (*Texture, error) {
	if layer == nil {
		return nil, fmt.Errorf("create texture: nil layer")
	}
	dims := layer.Dims()
	h, err := f.Device.Allocate(ctx, layer.Format(), dims[0], dims[1])
	if err != nil {
		return nil, fmt.Errorf("allocate texture for %s: %w", layer.Name(), err)
	}
	interp := f.Interpolation
	if layer.Format().Kind == layers.KindLabel {
		interp = Nearest
	}
	return &Texture{
		Handle:        h,
		Format:        layer.Format(),
		Width:         dims[0],
		Height:        dims[1],
		Interpolation: interp,
		device:        f.Device,
	}, nil
}

// Create allocates and uploads the texture for layer.
func (f TextureFactory) Create(ctx context.Context, layer *layers.Layer) (*Texture, error) {
	tex, err := f.allocate(ctx, layer)
	if err != nil {
		return nil, err
	}
	if err := f.Device.Upload(ctx, tex.Handle); err != nil {
		tex.release()
		return nil, fmt.Errorf("upload texture for %s: %w", layer.Name(), err)
	}
	tex.ready = true
	return tex, nil
}

// Dispose frees the texture's device storage. Disposing twice is a no-op.
func (f TextureFactory) Dispose(_ *layers.Layer, tex *Texture) {
	tex.release()
}
