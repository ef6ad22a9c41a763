package association

import (
	"context"

	"github.com/polisai/layersync/pkg/notify"
)

// Model is a consumer's layer-associated state: a cache of per-layer values,
// the active layer and the listener keeping both current.
type Model[K comparable, V any] struct {
	cache      *Cache[K, V]
	controller *Controller[K, V]
	listener   *Listener[K, V]
}

// NewModel wires a cache, controller and listener over collection. Call Sync
// once to populate it; after that the collection's notifications keep it
// current.
func NewModel[K comparable, V any](ctx context.Context, collection Collection[K], factory Factory[K, V], hooks Hooks[K, V], opts ...Option) *Model[K, V] {
	cache := NewCache(Source[K](collection), factory, opts...)
	controller := NewController(cache, hooks, opts...)
	listener := NewListener(ctx, collection, cache, controller, opts...)
	return &Model[K, V]{
		cache:      cache,
		controller: controller,
		listener:   listener,
	}
}

// Sync brings the model up to date with the collection.
func (m *Model[K, V]) Sync(ctx context.Context) error {
	return m.listener.Sync(ctx)
}

// SetLayer syncs the model and makes layer active. Construction failures of
// other layers are not returned; an error means layer itself could not be
// selected.
func (m *Model[K, V]) SetLayer(ctx context.Context, layer K) error {
	_ = m.listener.Sync(ctx)
	return m.controller.Select(ctx, layer)
}

// ClearLayer dissociates the model from every layer.
func (m *Model[K, V]) ClearLayer(ctx context.Context) {
	m.controller.Clear(ctx)
}

// Layer returns the active layer.
func (m *Model[K, V]) Layer() (K, bool) {
	return m.controller.Current()
}

// Properties returns the active layer's value.
func (m *Model[K, V]) Properties() (V, error) {
	return m.controller.CurrentValue()
}

// PropertiesFor returns the value associated with layer.
func (m *Model[K, V]) PropertiesFor(layer K) (V, error) {
	return m.cache.Get(layer)
}

// Cache exposes the underlying cache.
func (m *Model[K, V]) Cache() *Cache[K, V] {
	return m.cache
}

// Controller exposes the selection controller.
func (m *Model[K, V]) Controller() *Controller[K, V] {
	return m.controller
}

// StructureChanged is emitted when the set of associated layers changes.
func (m *Model[K, V]) StructureChanged() *notify.Signal {
	return m.listener.StructureChanged()
}

// ActiveLayerChanged is emitted on every selection change.
func (m *Model[K, V]) ActiveLayerChanged() *notify.Signal {
	return m.controller.SelectionChanged()
}

// Close detaches the active layer, unsubscribes and disposes every value.
func (m *Model[K, V]) Close(ctx context.Context) {
	m.listener.Close()
	m.controller.Close(ctx)
	m.cache.Close(ctx)
}
