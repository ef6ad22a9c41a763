// Package properties keeps per-layer display properties for the viewer's
// property panel and tracks which layer the panel is editing.
package properties

import (
	"context"
	"errors"
	"fmt"

	"github.com/polisai/layersync/pkg/association"
	"github.com/polisai/layersync/pkg/config"
	"github.com/polisai/layersync/pkg/layers"
	"github.com/polisai/layersync/pkg/notify"
)

var ErrInvalidProperty = errors.New("invalid display property")

const (
	MinHistogramBins = 2
	MaxHistogramBins = 4096
)

// DisplayProperties is the panel state kept for one layer.
type DisplayProperties struct {
	HistogramBins int
	ColorMap      string
	disposed      bool
}

// Disposed reports whether the cache released p.
func (p *DisplayProperties) Disposed() bool {
	return p.disposed
}

// Factory creates DisplayProperties with the configured defaults. Label
// layers always start on the label colormap.
type Factory struct {
	HistogramBins int
	ColorMap      string
}

// NewFactory takes its defaults from cfg.
func NewFactory(cfg config.PropertiesConfig) Factory {
	return Factory{HistogramBins: cfg.HistogramBins, ColorMap: cfg.ColorMap}
}

func (f Factory) Create(_ context.Context, layer *layers.Layer) (*DisplayProperties, error) {
	if layer == nil {
		return nil, fmt.Errorf("%w: nil layer", ErrInvalidProperty)
	}
	p := &DisplayProperties{
		HistogramBins: f.HistogramBins,
		ColorMap:      f.ColorMap,
	}
	if p.HistogramBins == 0 {
		p.HistogramBins = 256
	}
	if p.ColorMap == "" {
		p.ColorMap = "grayscale"
	}
	if layer.Format().Kind == layers.KindLabel {
		p.ColorMap = "labels"
	}
	return p, nil
}

func (f Factory) Dispose(_ *layers.Layer, p *DisplayProperties) {
	p.disposed = true
}

// DisplayModel is the property panel's model. While a layer is active its
// appearance changes are rebroadcast on Updated.
type DisplayModel struct {
	model      *association.Model[*layers.Layer, *DisplayProperties]
	updated    notify.Signal
	appearance notify.Subscription
}

// NewDisplayModel builds the model over coll. Call Sync to populate it.
func NewDisplayModel(ctx context.Context, coll *layers.Collection, factory Factory, opts ...association.Option) *DisplayModel {
	m := &DisplayModel{}
	hooks := association.HookFuncs[*layers.Layer, *DisplayProperties]{
		OnAttach: m.attach,
		OnDetach: m.detach,
	}
	opts = append([]association.Option{association.WithName("properties")}, opts...)
	m.model = association.NewModel[*layers.Layer, *DisplayProperties](ctx, coll, factory, hooks, opts...)
	return m
}

func (m *DisplayModel) attach(_ context.Context, layer *layers.Layer, _ *DisplayProperties) {
	m.appearance = layer.Appearance().Subscribe(m.updated.Emit)
	m.updated.Emit()
}

func (m *DisplayModel) detach(_ context.Context, _ *layers.Layer, _ *DisplayProperties) {
	if m.appearance != nil {
		m.appearance.Unsubscribe()
		m.appearance = nil
	}
}

func (m *DisplayModel) Sync(ctx context.Context) error {
	return m.model.Sync(ctx)
}

func (m *DisplayModel) SetLayer(ctx context.Context, layer *layers.Layer) error {
	return m.model.SetLayer(ctx, layer)
}

func (m *DisplayModel) ClearLayer(ctx context.Context) {
	m.model.ClearLayer(ctx)
}

func (m *DisplayModel) Layer() (*layers.Layer, bool) {
	return m.model.Layer()
}

// PropertiesFor returns the properties kept for layer.
func (m *DisplayModel) PropertiesFor(layer *layers.Layer) (*DisplayProperties, error) {
	return m.model.PropertiesFor(layer)
}

func (m *DisplayModel) HistogramBins() (int, error) {
	p, err := m.model.Properties()
	if err != nil {
		return 0, err
	}
	return p.HistogramBins, nil
}

func (m *DisplayModel) SetHistogramBins(bins int) error {
	if bins < MinHistogramBins || bins > MaxHistogramBins {
		return fmt.Errorf("%w: histogram bins %d outside [%d,%d]", ErrInvalidProperty, bins, MinHistogramBins, MaxHistogramBins)
	}
	p, err := m.model.Properties()
	if err != nil {
		return err
	}
	if p.HistogramBins != bins {
		p.HistogramBins = bins
		m.updated.Emit()
	}
	return nil
}

func (m *DisplayModel) ColorMap() (string, error) {
	p, err := m.model.Properties()
	if err != nil {
		return "", err
	}
	return p.ColorMap, nil
}

func (m *DisplayModel) SetColorMap(name string) error {
	if !config.KnownColorMap(name) {
		return fmt.Errorf("%w: unknown colormap %q", ErrInvalidProperty, name)
	}
	p, err := m.model.Properties()
	if err != nil {
		return err
	}
	if p.ColorMap != name {
		p.ColorMap = name
		m.updated.Emit()
	}
	return nil
}

// Opacity reads the active layer's opacity. Opacity lives on the layer, not
// in DisplayProperties, so the renderer sees the same value.
func (m *DisplayModel) Opacity() (float64, error) {
	layer, ok := m.model.Layer()
	if !ok {
		return 0, association.ErrNoSelection
	}
	return layer.Opacity(), nil
}

// SetOpacity writes through to the active layer. Updated fires through the
// layer's appearance signal.
func (m *DisplayModel) SetOpacity(opacity float64) error {
	layer, ok := m.model.Layer()
	if !ok {
		return association.ErrNoSelection
	}
	if opacity < 0 || opacity > 1 {
		return fmt.Errorf("%w: opacity %v outside [0,1]", ErrInvalidProperty, opacity)
	}
	layer.SetOpacity(opacity)
	return nil
}

// Updated fires when the active layer's properties or appearance change,
// and when a layer becomes active.
func (m *DisplayModel) Updated() *notify.Signal {
	return &m.updated
}

func (m *DisplayModel) ActiveLayerChanged() *notify.Signal {
	return m.model.ActiveLayerChanged()
}

func (m *DisplayModel) StructureChanged() *notify.Signal {
	return m.model.StructureChanged()
}

// Cache exposes the underlying association cache.
func (m *DisplayModel) Cache() *association.Cache[*layers.Layer, *DisplayProperties] {
	return m.model.Cache()
}

func (m *DisplayModel) Close(ctx context.Context) {
	m.model.Close(ctx)
}
