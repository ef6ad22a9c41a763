package association

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/polisai/layersync/pkg/association"

// Option configures a Cache, Controller, Listener or Model.
type Option func(*options)

type options struct {
	name           string
	logger         zerolog.Logger
	loggerSet      bool
	recorder       Recorder
	tracerProvider trace.TracerProvider
	errorHandler   func(error)
}

// WithName labels the association in logs, spans, metrics and errors.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. The global zerolog logger is used otherwise.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
		o.loggerSet = true
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithTracerProvider sets the tracer provider used for resync spans. The
// global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithErrorHandler receives non-fatal failures that have no caller to return
// to: construction failures seen by a Listener and failed deferred
// completions.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

func newOptions(opts []Option) options {
	o := options{
		name:     "association",
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.loggerSet {
		o.logger = log.Logger
	}
	o.logger = o.logger.With().Str("association", o.name).Logger()
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.errorHandler == nil {
		logger := o.logger
		o.errorHandler = func(err error) {
			logger.Warn().Err(err).Msg("Association error")
		}
	}
	return o
}

func (o options) tracer() trace.Tracer {
	return o.tracerProvider.Tracer(tracerName)
}
