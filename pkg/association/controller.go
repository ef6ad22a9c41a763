package association

import (
	"context"

	"github.com/polisai/layersync/pkg/notify"
	"github.com/rs/zerolog"
)

// Hooks is the strategy a consumer supplies to react to selection changes.
// Attach runs once when a layer becomes active, Detach once when it stops
// being active.
//
// Detach may run after the resync that removed the layer has already disposed
// value, so it must only release what Attach acquired.
type Hooks[K comparable, V any] interface {
	Attach(ctx context.Context, layer K, value V)
	Detach(ctx context.Context, layer K, value V)
}

// HookFuncs adapts a pair of closures to Hooks. Nil fields are skipped.
type HookFuncs[K comparable, V any] struct {
	OnAttach func(ctx context.Context, layer K, value V)
	OnDetach func(ctx context.Context, layer K, value V)
}

// Attach implements Hooks.
func (h HookFuncs[K, V]) Attach(ctx context.Context, layer K, value V) {
	if h.OnAttach != nil {
		h.OnAttach(ctx, layer, value)
	}
}

// Detach implements Hooks.
func (h HookFuncs[K, V]) Detach(ctx context.Context, layer K, value V) {
	if h.OnDetach != nil {
		h.OnDetach(ctx, layer, value)
	}
}

// Controller tracks the single active layer of a cache.
type Controller[K comparable, V any] struct {
	opts    options
	logger  zerolog.Logger
	cache   *Cache[K, V]
	hooks   Hooks[K, V]
	current K
	value   V
	active  bool
	changed notify.Signal
}

// NewController creates a controller with no selection. hooks may be nil.
func NewController[K comparable, V any](cache *Cache[K, V], hooks Hooks[K, V], opts ...Option) *Controller[K, V] {
	o := newOptions(append([]Option{WithName(cache.Name())}, opts...))
	if hooks == nil {
		hooks = HookFuncs[K, V]{}
	}
	return &Controller[K, V]{
		opts:   o,
		logger: o.logger,
		cache:  cache,
		hooks:  hooks,
	}
}

// Select makes layer the active layer: the previous layer is detached, layer
// is attached and SelectionChanged is emitted. Reselecting the active layer
// runs the same sequence. layer must already be in the cache; otherwise an
// error matching ErrUnknownLayer is returned and the selection is unchanged.
func (c *Controller[K, V]) Select(ctx context.Context, layer K) error {
	value, err := c.cache.Get(layer)
	if err != nil {
		return err
	}
	c.set(ctx, layer, value, true)
	return nil
}

// Clear detaches the active layer, if any, and emits SelectionChanged.
func (c *Controller[K, V]) Clear(ctx context.Context) {
	var (
		zeroK K
		zeroV V
	)
	c.set(ctx, zeroK, zeroV, false)
}

func (c *Controller[K, V]) set(ctx context.Context, layer K, value V, active bool) {
	if c.active {
		c.hooks.Detach(ctx, c.current, c.value)
		c.logger.Debug().Str("layer", describe(c.current)).Msg("Layer detached")
	}

	c.current, c.value, c.active = layer, value, active

	if c.active {
		c.hooks.Attach(ctx, c.current, c.value)
		c.logger.Debug().Str("layer", describe(c.current)).Msg("Layer attached")
	}

	c.opts.recorder.SelectionChanged(ctx, c.opts.name, c.active)
	c.changed.Emit()
}

// Current returns the active layer.
func (c *Controller[K, V]) Current() (K, bool) {
	return c.current, c.active
}

// CurrentValue returns the active layer's auxiliary object, or ErrNoSelection.
func (c *Controller[K, V]) CurrentValue() (V, error) {
	if !c.active {
		var zero V
		return zero, ErrNoSelection
	}
	return c.cache.Get(c.current)
}

// OnStructuralChange clears the selection when its layer is no longer in the
// cache. Call it after every Resync.
func (c *Controller[K, V]) OnStructuralChange(ctx context.Context) {
	if !c.active || c.cache.Contains(c.current) {
		return
	}
	c.logger.Info().Str("layer", describe(c.current)).Msg("Active layer removed, clearing selection")
	c.Clear(ctx)
}

// SelectionChanged is emitted on every Select and Clear.
func (c *Controller[K, V]) SelectionChanged() *notify.Signal {
	return &c.changed
}

// Close detaches the active layer without emitting SelectionChanged.
func (c *Controller[K, V]) Close(ctx context.Context) {
	if !c.active {
		return
	}
	c.hooks.Detach(ctx, c.current, c.value)
	var (
		zeroK K
		zeroV V
	)
	c.current, c.value, c.active = zeroK, zeroV, false
}
