package association

import (
	"errors"
	"fmt"
)

// Sentinel errors for association caches and selection controllers.
var (
	// ErrUnknownLayer indicates a lookup or selection of a layer the cache does not hold.
	ErrUnknownLayer = errors.New("layer not associated")

	// ErrNoSelection indicates the active value was queried while nothing is selected.
	ErrNoSelection = errors.New("no active layer")

	// ErrConstructionFailed indicates the factory could not build an auxiliary object.
	ErrConstructionFailed = errors.New("auxiliary construction failed")

	// ErrClosed indicates use of a cache after Close.
	ErrClosed = errors.New("association closed")
)

// UnknownLayerError reports the identity that was not found.
type UnknownLayerError struct {
	Cache string
	Layer string
}

func (e *UnknownLayerError) Error() string {
	return fmt.Sprintf("%s: layer %s not associated", e.Cache, e.Layer)
}

func (e *UnknownLayerError) Is(target error) bool {
	return target == ErrUnknownLayer
}

// ConstructionError reports a factory failure for one layer. The layer is
// retried on the next resync.
type ConstructionError struct {
	Cache string
	Layer string
	Err   error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: construct auxiliary for layer %s: %v", e.Cache, e.Layer, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

func (e *ConstructionError) Is(target error) bool {
	return target == ErrConstructionFailed
}

// IsUnknownLayer checks if the error indicates an unknown layer identity
func IsUnknownLayer(err error) bool {
	return errors.Is(err, ErrUnknownLayer)
}

// IsConstructionFailure checks if the error carries at least one factory failure
func IsConstructionFailure(err error) bool {
	return errors.Is(err, ErrConstructionFailed)
}

// ConstructionErrors extracts every ConstructionError from an error returned
// by Resync.
func ConstructionErrors(err error) []*ConstructionError {
	if err == nil {
		return nil
	}
	var out []*ConstructionError
	var walk func(error)
	walk = func(err error) {
		switch e := err.(type) {
		case *ConstructionError:
			out = append(out, e)
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		default:
			if inner := errors.Unwrap(err); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

func describe(layer any) string {
	if s, ok := layer.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", layer)
}
