package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/polisai/layersync/pkg/association"
	"github.com/polisai/layersync/pkg/layers"
	"github.com/polisai/layersync/pkg/notify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "github.com/polisai/layersync/internal/render"

var ErrTextureNotReady = errors.New("texture not ready")

// Canvas receives draw calls.
type Canvas interface {
	DrawTexture(layer *layers.Layer, tex *Texture, opacity float64)
}

// DrawCall is one call recorded by a RecordingCanvas.
type DrawCall struct {
	Layer    string
	Handle   Handle
	Opacity  float64
	Editable bool
}

// RecordingCanvas records draw calls in order.
type RecordingCanvas struct {
	Calls []DrawCall
}

func (c *RecordingCanvas) DrawTexture(layer *layers.Layer, tex *Texture, opacity float64) {
	c.Calls = append(c.Calls, DrawCall{
		Layer:    layer.Name(),
		Handle:   tex.Handle,
		Opacity:  opacity,
		Editable: tex.Editable,
	})
}

// Layers returns the names of the drawn layers.
func (c *RecordingCanvas) Layers() []string {
	out := make([]string, len(c.Calls))
	for i, call := range c.Calls {
		out[i] = call.Layer
	}
	return out
}

// SliceRenderer owns one texture per layer and paints the slice view. The
// active layer's texture is marked editable.
type SliceRenderer struct {
	coll  *layers.Collection
	model *association.Model[*layers.Layer, *Texture]
}

// NewSliceRenderer builds a renderer over coll. factory is usually a
// TextureFactory or a *DeferredTextureFactory. Call Sync to populate it.
func NewSliceRenderer(ctx context.Context, coll *layers.Collection, factory association.Factory[*layers.Layer, *Texture], opts ...association.Option) *SliceRenderer {
	r := &SliceRenderer{coll: coll}
	hooks := association.HookFuncs[*layers.Layer, *Texture]{
		OnAttach: func(_ context.Context, _ *layers.Layer, tex *Texture) { tex.Editable = true },
		OnDetach: func(_ context.Context, _ *layers.Layer, tex *Texture) { tex.Editable = false },
	}
	opts = append([]association.Option{association.WithName("textures")}, opts...)
	r.model = association.NewModel[*layers.Layer, *Texture](ctx, coll, factory, hooks, opts...)
	return r
}

func (r *SliceRenderer) Sync(ctx context.Context) error {
	return r.model.Sync(ctx)
}

// SetLayer makes layer the edited layer.
func (r *SliceRenderer) SetLayer(ctx context.Context, layer *layers.Layer) error {
	return r.model.SetLayer(ctx, layer)
}

func (r *SliceRenderer) ClearLayer(ctx context.Context) {
	r.model.ClearLayer(ctx)
}

func (r *SliceRenderer) Layer() (*layers.Layer, bool) {
	return r.model.Layer()
}

// TextureFor returns layer's texture, pending or not.
func (r *SliceRenderer) TextureFor(layer *layers.Layer) (*Texture, error) {
	return r.model.PropertiesFor(layer)
}

// DrawTextureForLayer draws layer's texture. Without transparency the
// texture is drawn opaque regardless of the layer's opacity.
func (r *SliceRenderer) DrawTextureForLayer(canvas Canvas, layer *layers.Layer, useTransparency bool) error {
	tex, err := r.model.PropertiesFor(layer)
	if err != nil {
		return err
	}
	if state, _ := r.model.Cache().State(layer); state == association.StatePending || !tex.Ready() {
		return fmt.Errorf("%w: %s", ErrTextureNotReady, layer.Name())
	}
	opacity := 1.0
	if useTransparency {
		opacity = layer.Opacity()
	}
	canvas.DrawTexture(layer, tex, opacity)
	return nil
}

// Paint draws the main layer opaque, then segmentations and overlays with
// their opacity, each group in collection order. Hidden layers and textures
// still uploading are skipped. Paint returns the number of layers drawn.
func (r *SliceRenderer) Paint(ctx context.Context, canvas Canvas) int {
	_, span := otel.Tracer(tracerName).Start(ctx, "render.paint")
	defer span.End()

	all := r.coll.Layers()
	drawn := 0
	draw := func(layer *layers.Layer, transparent bool) {
		if !layer.Visible() {
			return
		}
		if err := r.DrawTextureForLayer(canvas, layer, transparent); err != nil {
			return
		}
		drawn++
	}

	for _, layer := range all {
		if layer.Role() == layers.RoleMain {
			draw(layer, false)
		}
	}
	for _, role := range []layers.Role{layers.RoleSegmentation, layers.RoleOverlay} {
		for _, layer := range all {
			if layer.Role() == role {
				draw(layer, true)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("render.layers", len(all)),
		attribute.Int("render.drawn", drawn),
	)
	return drawn
}

func (r *SliceRenderer) ActiveLayerChanged() *notify.Signal {
	return r.model.ActiveLayerChanged()
}

// StructureChanged fires when textures were created or destroyed.
func (r *SliceRenderer) StructureChanged() *notify.Signal {
	return r.model.StructureChanged()
}

// Cache exposes the texture cache.
func (r *SliceRenderer) Cache() *association.Cache[*layers.Layer, *Texture] {
	return r.model.Cache()
}

func (r *SliceRenderer) Close(ctx context.Context) {
	r.model.Close(ctx)
}
