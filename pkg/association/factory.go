package association

import "context"

// Source enumerates the live layer identities. The returned slice must be a
// fresh enumeration on every call.
type Source[K comparable] interface {
	Layers() []K
}

// SourceFunc adapts a function to Source.
type SourceFunc[K comparable] func() []K

// Layers implements Source.
func (f SourceFunc[K]) Layers() []K {
	return f()
}

// Factory builds the auxiliary object for a layer seen for the first time.
// Create must not mutate the layer collection or the cache.
type Factory[K comparable, V any] interface {
	Create(ctx context.Context, layer K) (V, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc[K comparable, V any] func(ctx context.Context, layer K) (V, error)

// Create implements Factory.
func (f FactoryFunc[K, V]) Create(ctx context.Context, layer K) (V, error) {
	return f(ctx, layer)
}

// Disposer is implemented by factories whose auxiliary objects hold
// resources. Dispose is called once for every entry the cache removes.
type Disposer[K comparable, V any] interface {
	Dispose(layer K, value V)
}

// Completion finishes a deferred construction. It must be called at most once,
// on the goroutine that owns the cache.
type Completion[V any] func(value V, err error)

// DeferredFactory is implemented by factories whose construction cannot
// finish inline. CreateDeferred returns a placeholder that the cache stores
// immediately in the Pending state; done later replaces it. When a factory
// implements DeferredFactory the cache never calls Create.
//
// Ownership of the placeholder:
//   - done(v, nil) with v distinct from the placeholder hands the placeholder
//     back to the factory; the cache never disposes it and owns v instead.
//   - done(placeholder, nil) keeps the cache owning the same object.
//   - done(_, err) removes the entry and disposes the placeholder. The next
//     resync retries the layer.
//   - If the entry was removed before done runs, the cache has already
//     disposed the placeholder. A late success is disposed only when it is a
//     different object, so a placeholder passed to done is never disposed
//     twice.
//
// Hooks attached while an entry is pending keep the placeholder as their
// value even after completion, while Get and CurrentValue return the
// completed object. Completing with the placeholder itself (filled in) keeps
// both views identical.
type DeferredFactory[K comparable, V any] interface {
	CreateDeferred(ctx context.Context, layer K, done Completion[V]) (V, error)
}
