package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/polisai/layersync/internal/properties"
	"github.com/polisai/layersync/internal/render"
	"github.com/polisai/layersync/internal/view3d"
	"github.com/polisai/layersync/pkg/association"
	"github.com/polisai/layersync/pkg/config"
	"github.com/polisai/layersync/pkg/domain"
	"github.com/polisai/layersync/pkg/layers"
	"github.com/rs/zerolog"
)

var errUnknownModel = errors.New("unknown model")

// viewer owns the layer collection and every model following it. It is not
// safe for concurrent use; the daemon only touches it from the event loop.
type viewer struct {
	cfg        *config.Config
	logger     zerolog.Logger
	coll       *layers.Collection
	device     *render.MemoryDevice
	uploads    *render.DeferredTextureFactory
	properties *properties.DisplayModel
	renderer   *render.SliceRenderer
	view       *view3d.View
	generation int64
}

func newViewer(ctx context.Context, cfg *config.Config, recorder association.Recorder, logger zerolog.Logger) (*viewer, error) {
	interp, err := render.ParseInterpolation(cfg.Textures.Interpolation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfigInvalid, err)
	}

	v := &viewer{
		cfg:    cfg,
		logger: logger,
		coll:   layers.NewCollection(),
		device: render.NewMemoryDevice(cfg.Textures.MaxTextureSize),
	}

	opts := []association.Option{
		association.WithLogger(logger),
		association.WithRecorder(recorder),
	}

	textures := render.TextureFactory{Device: v.device, Interpolation: interp}
	var factory association.Factory[*layers.Layer, *render.Texture] = textures
	if cfg.Textures.DeferredUpload {
		v.uploads = render.NewDeferredTextureFactory(textures)
		factory = v.uploads
	}

	v.properties = properties.NewDisplayModel(ctx, v.coll, properties.NewFactory(cfg.Properties), opts...)
	v.renderer = render.NewSliceRenderer(ctx, v.coll, factory, opts...)
	v.view = view3d.New(v.coll)
	return v, nil
}

// applyManifest reconciles the collection with m. The models follow through
// the collection's change notification.
func (v *viewer) applyManifest(ctx context.Context, m *config.Manifest) error {
	specs, err := m.Specs()
	if err != nil {
		return err
	}
	result, err := v.coll.Apply(specs)
	if err != nil {
		return fmt.Errorf("apply manifest generation %d: %w", m.Generation, err)
	}
	v.generation = m.Generation

	v.logger.Info().
		Int64("generation", m.Generation).
		Strs("added", result.Added).
		Strs("removed", result.Removed).
		Strs("replaced", result.Replaced).
		Int("layers", v.coll.Len()).
		Msg("Manifest applied")

	v.selectInitial(ctx)
	return nil
}

// selectInitial selects the configured layer in every model that has no
// selection yet.
func (v *viewer) selectInitial(ctx context.Context) {
	name := v.cfg.Viewer.ActiveLayer
	if name == "" {
		return
	}
	layer, ok := v.coll.FindByName(name)
	if !ok {
		return
	}
	if _, active := v.properties.Layer(); !active {
		if err := v.properties.SetLayer(ctx, layer); err != nil {
			v.logger.Warn().Err(err).Str("layer", name).Msg("Initial property selection failed")
		}
	}
	if _, active := v.renderer.Layer(); !active {
		if err := v.renderer.SetLayer(ctx, layer); err != nil {
			v.logger.Warn().Err(err).Str("layer", name).Msg("Initial texture selection failed")
		}
	}
}

// flushUploads completes pending texture uploads.
func (v *viewer) flushUploads(ctx context.Context) int {
	if v.uploads == nil || v.uploads.Pending() == 0 {
		return 0
	}
	n := v.uploads.Flush(ctx)
	v.logger.Debug().Int("uploaded", n).Msg("Texture uploads flushed")
	return n
}

// selectLayer makes name active in model, or in both models when model is
// empty.
func (v *viewer) selectLayer(ctx context.Context, model, name string) error {
	layer, ok := v.coll.FindByName(name)
	if !ok {
		return fmt.Errorf("%w: %s", layers.ErrLayerNotFound, name)
	}
	switch model {
	case domain.ModelProperties:
		return v.properties.SetLayer(ctx, layer)
	case domain.ModelTextures:
		return v.renderer.SetLayer(ctx, layer)
	case "":
		// Check both models first so a failure leaves neither selection changed.
		if _, err := v.properties.Cache().Get(layer); err != nil {
			return err
		}
		if _, err := v.renderer.Cache().Get(layer); err != nil {
			return err
		}
		if err := v.properties.SetLayer(ctx, layer); err != nil {
			return err
		}
		return v.renderer.SetLayer(ctx, layer)
	default:
		return fmt.Errorf("%w: %q", errUnknownModel, model)
	}
}

func (v *viewer) clearLayer(ctx context.Context, model string) error {
	switch model {
	case domain.ModelProperties:
		v.properties.ClearLayer(ctx)
	case domain.ModelTextures:
		v.renderer.ClearLayer(ctx)
	case "":
		v.properties.ClearLayer(ctx)
		v.renderer.ClearLayer(ctx)
	default:
		return fmt.Errorf("%w: %q", errUnknownModel, model)
	}
	return nil
}

func (v *viewer) active() map[string]string {
	active := make(map[string]string, 2)
	if l, ok := v.properties.Layer(); ok {
		active[domain.ModelProperties] = l.Name()
	}
	if l, ok := v.renderer.Layer(); ok {
		active[domain.ModelTextures] = l.Name()
	}
	return active
}

func entryState[V any](cache *association.Cache[*layers.Layer, V], layer *layers.Layer) string {
	state, ok := cache.State(layer)
	if !ok {
		return "missing"
	}
	return state.String()
}

func (v *viewer) status() domain.LayersResponse {
	mainLayer, _ := v.coll.Main()
	resp := domain.LayersResponse{
		Generation: v.generation,
		Layers:     make([]domain.LayerStatus, 0, v.coll.Len()),
		Active:     v.active(),
		World:      v.view.World(),
	}
	for _, l := range v.coll.Layers() {
		resp.Layers = append(resp.Layers, domain.LayerStatus{
			ID:      l.ID().String(),
			Name:    l.Name(),
			Role:    l.Role().String(),
			Format:  l.Format().String(),
			Dims:    l.Dims(),
			Opacity: l.Opacity(),
			Visible: l.Visible(),
			Main:    l == mainLayer,
			Associations: map[string]string{
				domain.ModelProperties: entryState(v.properties.Cache(), l),
				domain.ModelTextures:   entryState(v.renderer.Cache(), l),
			},
		})
	}
	return resp
}

func (v *viewer) frame(ctx context.Context) domain.FrameResponse {
	canvas := &render.RecordingCanvas{}
	v.renderer.Paint(ctx, canvas)
	resp := domain.FrameResponse{Calls: make([]domain.DrawCall, 0, len(canvas.Calls))}
	for _, c := range canvas.Calls {
		resp.Calls = append(resp.Calls, domain.DrawCall{
			Layer:    c.Layer,
			Texture:  uint64(c.Handle),
			Opacity:  c.Opacity,
			Editable: c.Editable,
		})
	}
	return resp
}

func (v *viewer) close(ctx context.Context) {
	v.view.Close()
	v.renderer.Close(ctx)
	v.properties.Close(ctx)
}
