// Package association keeps per-layer auxiliary state synchronized with a live
// layer collection.
//
// A Cache maps every live layer identity to an auxiliary object built by a
// Factory. Resync reconciles the cache with the collection: it creates entries
// for new layers, disposes entries whose layer is gone and never touches
// entries whose layer is still live. Lookups never create.
//
// A Controller holds at most one active layer and runs the Attach and Detach
// hooks of its Hooks strategy on every selection change. When the active layer
// disappears from the collection the controller clears itself through the same
// path as an explicit Clear, so every Attach is paired with exactly one Detach.
//
// A Listener subscribes to the collection's change notification and runs
// Resync followed by Controller.OnStructuralChange, in that order, before it
// emits its own structure-changed signal. Model composes the three.
//
// Nothing in this package is safe for concurrent use. A cache, its controller
// and its listener belong to one consumer and must be driven from a single
// goroutine.
package association
