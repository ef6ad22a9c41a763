package association

import (
	"context"

	"github.com/polisai/layersync/pkg/notify"
)

// Notifier delivers the layer collection's change notification.
type Notifier interface {
	Subscribe(fn func()) notify.Subscription
}

// Collection is a Source that also announces its changes.
type Collection[K comparable] interface {
	Source[K]
	Notifier
}

// Listener keeps a cache and its controller in step with a collection.
type Listener[K comparable, V any] struct {
	opts       options
	ctx        context.Context
	cache      *Cache[K, V]
	controller *Controller[K, V]
	structure  notify.Signal
	subs       []notify.Subscription
}

// NewListener subscribes to notifier. Every notification runs Sync with ctx.
// controller may be nil for consumers without a selection.
func NewListener[K comparable, V any](ctx context.Context, notifier Notifier, cache *Cache[K, V], controller *Controller[K, V], opts ...Option) *Listener[K, V] {
	l := &Listener[K, V]{
		opts:       newOptions(append([]Option{WithName(cache.Name())}, opts...)),
		ctx:        ctx,
		cache:      cache,
		controller: controller,
	}
	if notifier != nil {
		l.subs = append(l.subs, notifier.Subscribe(l.onChange))
	}
	l.subs = append(l.subs, cache.Completed().Subscribe(l.onCompleted))
	return l
}

func (l *Listener[K, V]) onChange() {
	_ = l.Sync(l.ctx)
}

// A failed deferred completion drops an entry outside of Resync.
func (l *Listener[K, V]) onCompleted() {
	if l.controller != nil {
		l.controller.OnStructuralChange(l.ctx)
	}
	l.structure.Emit()
}

// Sync runs Resync, then revalidates the selection, then emits
// StructureChanged if the key set changed. Construction failures are passed
// to the error handler and returned; they never prevent revalidation.
func (l *Listener[K, V]) Sync(ctx context.Context) error {
	result, err := l.cache.Resync(ctx)
	if err != nil {
		l.opts.errorHandler(err)
	}
	if l.controller != nil {
		l.controller.OnStructuralChange(ctx)
	}
	if result.Changed() {
		l.structure.Emit()
	}
	return err
}

// StructureChanged is emitted after a sync that altered the key set.
func (l *Listener[K, V]) StructureChanged() *notify.Signal {
	return &l.structure
}

// Close unsubscribes from the collection.
func (l *Listener[K, V]) Close() {
	for _, sub := range l.subs {
		sub.Unsubscribe()
	}
	l.subs = nil
}
