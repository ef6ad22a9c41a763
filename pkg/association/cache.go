package association

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/polisai/layersync/pkg/notify"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EntryState describes whether an entry's auxiliary object is final.
type EntryState int

const (
	// StateReady marks an entry holding its final auxiliary object.
	StateReady EntryState = iota
	// StatePending marks an entry holding a placeholder from a DeferredFactory.
	StatePending
)

func (s EntryState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

type entry[V any] struct {
	value V
	state EntryState
	seq   uint64
}

// ResyncResult lists the identities a resync touched.
type ResyncResult[K comparable] struct {
	Created   []K
	Destroyed []K
	Failed    []K
}

// Changed reports whether the key set changed.
func (r ResyncResult[K]) Changed() bool {
	return len(r.Created) > 0 || len(r.Destroyed) > 0
}

// Cache maps every live layer to an auxiliary object it owns exclusively.
type Cache[K comparable, V any] struct {
	opts      options
	logger    zerolog.Logger
	tracer    trace.Tracer
	source    Source[K]
	factory   Factory[K, V]
	deferred  DeferredFactory[K, V]
	disposer  Disposer[K, V]
	entries   map[K]*entry[V]
	order     []K
	seq       uint64
	closed    bool
	completed notify.Signal
}

// NewCache creates an empty cache over source. Nothing is constructed until
// the first Resync.
func NewCache[K comparable, V any](source Source[K], factory Factory[K, V], opts ...Option) *Cache[K, V] {
	o := newOptions(opts)
	c := &Cache[K, V]{
		opts:    o,
		logger:  o.logger,
		tracer:  o.tracer(),
		source:  source,
		factory: factory,
		entries: make(map[K]*entry[V]),
	}
	if d, ok := factory.(DeferredFactory[K, V]); ok {
		c.deferred = d
	}
	if d, ok := factory.(Disposer[K, V]); ok {
		c.disposer = d
	}
	return c
}

// Name returns the label the cache was created with.
func (c *Cache[K, V]) Name() string {
	return c.opts.name
}

// SetSource replaces the enumeration the cache mirrors. It takes effect at
// the next Resync.
func (c *Cache[K, V]) SetSource(source Source[K]) {
	c.source = source
}

// Resync reconciles the cache with the current enumeration. Entries for
// vanished layers are disposed first, then entries are created for new
// layers. Entries whose layer is still live are left untouched. Factory
// failures do not stop the pass: the failing layers are skipped, reported in
// the returned error and retried on the next call.
func (c *Cache[K, V]) Resync(ctx context.Context) (ResyncResult[K], error) {
	var result ResyncResult[K]
	if c.closed {
		return result, ErrClosed
	}

	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "association.resync",
		trace.WithAttributes(attribute.String("association.cache", c.opts.name)))
	defer span.End()

	var live []K
	if c.source != nil {
		live = c.source.Layers()
	}
	liveSet := make(map[K]struct{}, len(live))
	for _, layer := range live {
		liveSet[layer] = struct{}{}
	}

	for _, layer := range c.order {
		if _, ok := liveSet[layer]; ok {
			continue
		}
		c.destroy(ctx, layer)
		result.Destroyed = append(result.Destroyed, layer)
	}

	var errs []error
	attempted := make(map[K]struct{}, len(live))
	for _, layer := range live {
		if _, ok := c.entries[layer]; ok {
			continue
		}
		if _, ok := attempted[layer]; ok {
			continue
		}
		attempted[layer] = struct{}{}

		if err := c.create(ctx, layer); err != nil {
			result.Failed = append(result.Failed, layer)
			errs = append(errs, &ConstructionError{Cache: c.opts.name, Layer: describe(layer), Err: err})
			c.opts.recorder.ConstructionFailed(ctx, c.opts.name)
			c.logger.Warn().Err(err).Str("layer", describe(layer)).Msg("Auxiliary construction failed")
			continue
		}
		result.Created = append(result.Created, layer)
	}

	c.reorder(live)

	span.SetAttributes(
		attribute.Int("association.created", len(result.Created)),
		attribute.Int("association.destroyed", len(result.Destroyed)),
		attribute.Int("association.failed", len(result.Failed)),
		attribute.Int("association.entries", len(c.entries)),
	)
	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "construction failed")
	}

	c.opts.recorder.ResyncCompleted(ctx, c.opts.name, len(c.entries), time.Since(start))
	if result.Changed() {
		c.logger.Debug().
			Int("created", len(result.Created)).
			Int("destroyed", len(result.Destroyed)).
			Int("entries", len(c.entries)).
			Msg("Association resynced")
	}
	return result, err
}

func (c *Cache[K, V]) create(ctx context.Context, layer K) error {
	c.seq++
	seq := c.seq

	if c.deferred != nil {
		var (
			returned   bool
			finished   bool
			finalValue V
			finalErr   error
		)
		var placeholder V
		placeholder, err := c.deferred.CreateDeferred(ctx, layer, func(value V, err error) {
			if !returned {
				finished, finalValue, finalErr = true, value, err
				return
			}
			c.complete(layer, seq, placeholder, value, err)
		})
		returned = true
		if err != nil {
			return err
		}
		if finished {
			// done ran before CreateDeferred returned.
			if finalErr != nil {
				c.dispose(layer, placeholder)
				return finalErr
			}
			c.entries[layer] = &entry[V]{value: finalValue, state: StateReady, seq: seq}
			c.opts.recorder.EntryCreated(ctx, c.opts.name)
			c.logger.Debug().Str("layer", describe(layer)).Msg("Auxiliary created")
			return nil
		}
		c.entries[layer] = &entry[V]{value: placeholder, state: StatePending, seq: seq}
		c.opts.recorder.EntryCreated(ctx, c.opts.name)
		c.logger.Debug().Str("layer", describe(layer)).Msg("Auxiliary pending")
		return nil
	}

	value, err := c.factory.Create(ctx, layer)
	if err != nil {
		return err
	}
	c.entries[layer] = &entry[V]{value: value, state: StateReady, seq: seq}
	c.opts.recorder.EntryCreated(ctx, c.opts.name)
	c.logger.Debug().Str("layer", describe(layer)).Msg("Auxiliary created")
	return nil
}

func (c *Cache[K, V]) destroy(ctx context.Context, layer K) {
	e, ok := c.entries[layer]
	if !ok {
		return
	}
	delete(c.entries, layer)
	c.dispose(layer, e.value)
	c.opts.recorder.EntryDestroyed(ctx, c.opts.name)
	c.logger.Debug().Str("layer", describe(layer)).Msg("Auxiliary destroyed")
}

func (c *Cache[K, V]) dispose(layer K, value V) {
	if c.disposer != nil {
		c.disposer.Dispose(layer, value)
	}
}

// complete handles a deferred completion. Completions for entries that were
// destroyed or recreated since are stale: the destroy already disposed the
// placeholder, so their value is disposed only when it is a different object.
func (c *Cache[K, V]) complete(layer K, seq uint64, placeholder, value V, err error) {
	ctx := context.Background()

	e, ok := c.entries[layer]
	if !ok || c.closed || e.seq != seq || e.state != StatePending {
		if err == nil && !sameValue(value, placeholder) {
			c.dispose(layer, value)
		}
		return
	}

	if err != nil {
		delete(c.entries, layer)
		c.removeFromOrder(layer)
		c.dispose(layer, e.value)
		c.opts.recorder.DeferredCompleted(ctx, c.opts.name, false)
		c.opts.errorHandler(&ConstructionError{Cache: c.opts.name, Layer: describe(layer), Err: err})
		c.completed.Emit()
		return
	}

	e.value = value
	e.state = StateReady
	c.opts.recorder.DeferredCompleted(ctx, c.opts.name, true)
	c.logger.Debug().Str("layer", describe(layer)).Msg("Auxiliary completed")
	c.completed.Emit()
}

// sameValue reports whether a and b are the same auxiliary object. Values
// that cannot be compared are never the same.
func sameValue[V any](a, b V) bool {
	va, vb := reflect.ValueOf(any(a)), reflect.ValueOf(any(b))
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() || !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}

func (c *Cache[K, V]) reorder(live []K) {
	order := make([]K, 0, len(c.entries))
	seen := make(map[K]struct{}, len(c.entries))
	for _, layer := range live {
		if _, ok := c.entries[layer]; !ok {
			continue
		}
		if _, dup := seen[layer]; dup {
			continue
		}
		seen[layer] = struct{}{}
		order = append(order, layer)
	}
	c.order = order
}

func (c *Cache[K, V]) removeFromOrder(layer K) {
	for i, k := range c.order {
		if k == layer {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Get returns the auxiliary object for layer. It never creates: a layer the
// cache does not hold yields an error matching ErrUnknownLayer. Pending
// entries return their placeholder.
func (c *Cache[K, V]) Get(layer K) (V, error) {
	e, ok := c.entries[layer]
	if !ok {
		var zero V
		return zero, &UnknownLayerError{Cache: c.opts.name, Layer: describe(layer)}
	}
	return e.value, nil
}

// Contains reports whether layer has an entry.
func (c *Cache[K, V]) Contains(layer K) bool {
	_, ok := c.entries[layer]
	return ok
}

// State returns the state of layer's entry.
func (c *Cache[K, V]) State(layer K) (EntryState, bool) {
	e, ok := c.entries[layer]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// Keys returns the associated identities. Consumers must not rely on the
// order.
func (c *Cache[K, V]) Keys() []K {
	keys := make([]K, len(c.order))
	copy(keys, c.order)
	return keys
}

// Each calls fn for every entry.
func (c *Cache[K, V]) Each(fn func(layer K, value V)) {
	for _, layer := range c.Keys() {
		if e, ok := c.entries[layer]; ok {
			fn(layer, e.value)
		}
	}
}

// Completed is emitted after a deferred entry completes or fails.
func (c *Cache[K, V]) Completed() *notify.Signal {
	return &c.completed
}

// Close disposes every entry. The cache cannot be resynced afterwards.
func (c *Cache[K, V]) Close(ctx context.Context) {
	if c.closed {
		return
	}
	for _, layer := range c.Keys() {
		c.destroy(ctx, layer)
	}
	c.order = nil
	c.closed = true
}
