package render

import (
	"context"
	"fmt"

	"github.com/polisai/layersync/pkg/association"
	"github.com/polisai/layersync/pkg/layers"
	"github.com/rs/zerolog/log"
)

type pendingUpload struct {
	layer *layers.Layer
	tex   *Texture
	done  association.Completion[*Texture]
}

// DeferredTextureFactory allocates textures immediately and uploads their
// contents on the next Flush. Until then the cache holds the texture in the
// pending state and the renderer skips it.
type DeferredTextureFactory struct {
	TextureFactory
	queue []pendingUpload
}

// NewDeferredTextureFactory wraps f.
func NewDeferredTextureFactory(f TextureFactory) *DeferredTextureFactory {
	return &DeferredTextureFactory{TextureFactory: f}
}

// CreateDeferred implements association.DeferredFactory.
func (f *DeferredTextureFactory) CreateDeferred(ctx context.Context, layer *layers.Layer, done association.Completion[*Texture]) (*Texture, error) {
	tex, err := f.allocate(ctx, layer)
	if err != nil {
		return nil, err
	}
	f.queue = append(f.queue, pendingUpload{layer: layer, tex: tex, done: done})
	return tex, nil
}

// Dispose frees tex and drops its queued upload, if any.
func (f *DeferredTextureFactory) Dispose(layer *layers.Layer, tex *Texture) {
	for i, p := range f.queue {
		if p.tex == tex {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			break
		}
	}
	f.TextureFactory.Dispose(layer, tex)
}

// Pending returns the number of queued uploads.
func (f *DeferredTextureFactory) Pending() int {
	return len(f.queue)
}

// Flush uploads every queued texture and completes its construction. It
// returns the number of uploads that succeeded. Flush must run on the
// goroutine owning the cache.
func (f *DeferredTextureFactory) Flush(ctx context.Context) int {
	queue := f.queue
	f.queue = nil

	uploaded := 0
	for _, p := range queue {
		if ctx.Err() != nil {
			// Keep the rest for the next flush.
			f.queue = append(f.queue, p)
			continue
		}
		if err := f.Device.Upload(ctx, p.tex.Handle); err != nil {
			log.Warn().Err(err).Str("layer", p.layer.Name()).Msg("Deferred texture upload failed")
			p.done(nil, fmt.Errorf("upload texture for %s: %w", p.layer.Name(), err))
			continue
		}
		p.tex.ready = true
		uploaded++
		p.done(p.tex, nil)
	}
	return uploaded
}
