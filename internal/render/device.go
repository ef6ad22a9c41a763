// Package render draws the viewer's 2-D slice view.
//
// Every layer in the collection owns one slice texture on the graphics
// device. SliceRenderer keeps that association current and paints the
// textures in layer-role order.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/polisai/layersync/pkg/layers"
)

var (
	ErrTextureTooLarge = errors.New("texture exceeds device limit")
	ErrUnknownHandle   = errors.New("unknown texture handle")
)

// Handle names a texture allocated on a Device.
type Handle uint64

// Device is the graphics boundary: texture storage lives behind it.
type Device interface {
	Allocate(ctx context.Context, format layers.PixelFormat, width, height int) (Handle, error)
	Upload(ctx context.Context, h Handle) error
	Free(h Handle) error
}

// Allocation describes a texture held by a MemoryDevice.
type Allocation struct {
	Format   layers.PixelFormat
	Width    int
	Height   int
	Uploaded bool
}

// MemoryDevice is an in-memory implementation of Device.
type MemoryDevice struct {
	mu       sync.RWMutex
	next     Handle
	maxSize  int
	textures map[Handle]Allocation
	failing  map[Handle]error
}

// NewMemoryDevice creates a device accepting textures up to maxSize texels
// per side. Zero means unlimited.
func NewMemoryDevice(maxSize int) *MemoryDevice {
	return &MemoryDevice{
		maxSize:  maxSize,
		textures: make(map[Handle]Allocation),
		failing:  make(map[Handle]error),
	}
}

// Allocate reserves storage for a width x height texture.
func (d *MemoryDevice) Allocate(_ context.Context, format layers.PixelFormat, width, height int) (Handle, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("allocate %dx%d texture: non-positive size", width, height)
	}
	if d.maxSize > 0 && (width > d.maxSize || height > d.maxSize) {
		return 0, fmt.Errorf("%w: %dx%d > %d", ErrTextureTooLarge, width, height, d.maxSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	d.textures[d.next] = Allocation{Format: format, Width: width, Height: height}
	return d.next, nil
}

// Upload marks h's contents as transferred.
func (d *MemoryDevice) Upload(_ context.Context, h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.textures[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if err := d.failing[h]; err != nil {
		return err
	}
	a.Uploaded = true
	d.textures[h] = a
	return nil
}

// Free releases h.
func (d *MemoryDevice) Free(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.textures[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(d.textures, h)
	delete(d.failing, h)
	return nil
}

// FailUpload makes the next uploads of h fail with err.
func (d *MemoryDevice) FailUpload(h Handle, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[h] = err
}

// Live returns the number of allocated textures.
func (d *MemoryDevice) Live() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.textures)
}

// Allocation returns what h refers to.
func (d *MemoryDevice) Allocation(h Handle) (Allocation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.textures[h]
	return a, ok
}
