package association

import (
	"context"
	"time"
)

// Recorder observes association activity for metrics. Implementations live
// in pkg/telemetry.
type Recorder interface {
	EntryCreated(ctx context.Context, cache string)
	EntryDestroyed(ctx context.Context, cache string)
	ConstructionFailed(ctx context.Context, cache string)
	DeferredCompleted(ctx context.Context, cache string, ok bool)
	ResyncCompleted(ctx context.Context, cache string, entries int, duration time.Duration)
	SelectionChanged(ctx context.Context, cache string, active bool)
}

type nopRecorder struct{}

func (nopRecorder) EntryCreated(context.Context, string) {}
func (nopRecorder) EntryDestroyed(context.Context, string) {}
func (nopRecorder) ConstructionFailed(context.Context, string) {}
func (nopRecorder) DeferredCompleted(context.Context, string, bool) {}
func (nopRecorder) ResyncCompleted(context.Context, string, int, time.Duration) {}
func (nopRecorder) SelectionChanged(context.Context, string, bool) {}
