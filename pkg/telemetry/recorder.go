package telemetry

import (
	"context"
	"time"

	"github.com/polisai/layersync/pkg/association"
)

type multiRecorder []association.Recorder

// Combine fans association events out to every non-nil recorder.
func Combine(recorders ...association.Recorder) association.Recorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRecorder) EntryCreated(ctx context.Context, cache string) {
	for _, r := range m {
		r.EntryCreated(ctx, cache)
	}
}

func (m multiRecorder) EntryDestroyed(ctx context.Context, cache string) {
	for _, r := range m {
		r.EntryDestroyed(ctx, cache)
	}
}

func (m multiRecorder) ConstructionFailed(ctx context.Context, cache string) {
	for _, r := range m {
		r.ConstructionFailed(ctx, cache)
	}
}

func (m multiRecorder) DeferredCompleted(ctx context.Context, cache string, ok bool) {
	for _, r := range m {
		r.DeferredCompleted(ctx, cache, ok)
	}
}

func (m multiRecorder) ResyncCompleted(ctx context.Context, cache string, entries int, duration time.Duration) {
	for _, r := range m {
		r.ResyncCompleted(ctx, cache, entries, duration)
	}
}

func (m multiRecorder) SelectionChanged(ctx context.Context, cache string, active bool) {
	for _, r := range m {
		r.SelectionChanged(ctx, cache, active)
	}
}
