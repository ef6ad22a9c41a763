package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/polisai/layersync/internal/eventloop"
	"github.com/polisai/layersync/pkg/association"
	"github.com/polisai/layersync/pkg/domain"
	"github.com/polisai/layersync/pkg/layers"
	"github.com/polisai/layersync/pkg/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// adminServer serves the admin API. Every handler touching the viewer runs
// on the event loop.
type adminServer struct {
	viewer  *viewer
	loop    *eventloop.Loop
	metrics *telemetry.Metrics
	logger  zerolog.Logger
}

func newAdminHandler(v *viewer, loop *eventloop.Loop, metrics *telemetry.Metrics, logger zerolog.Logger) http.Handler {
	a := &adminServer{viewer: v, loop: loop, metrics: metrics, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /layers", a.handleLayers)
	mux.HandleFunc("GET /frame", a.handleFrame)
	mux.HandleFunc("POST /select", a.handleSelect)
	mux.HandleFunc("DELETE /select", a.handleClear)

	return metrics.MetricsMiddleware(otelhttp.NewHandler(mux, "layersync.admin"))
}

func (a *adminServer) handleLayers(w http.ResponseWriter, r *http.Request) {
	var resp domain.LayersResponse
	err := a.loop.Do(r.Context(), func(context.Context) error {
		resp = a.viewer.status()
		return nil
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *adminServer) handleFrame(w http.ResponseWriter, r *http.Request) {
	var resp domain.FrameResponse
	err := a.loop.Do(r.Context(), func(ctx context.Context) error {
		resp = a.viewer.frame(ctx)
		return nil
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *adminServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("layer")
	if name == "" {
		a.writeErrorCode(w, r, http.StatusBadRequest, domain.CodeBadRequest, "layer parameter is required")
		return
	}
	model := r.URL.Query().Get("model")

	var resp domain.SelectionResponse
	err := a.loop.Do(r.Context(), func(ctx context.Context) error {
		if err := a.viewer.selectLayer(ctx, model, name); err != nil {
			return err
		}
		resp.Active = a.viewer.active()
		return nil
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.logger.Info().Str("layer", name).Str("model", model).Msg("Layer selected")
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *adminServer) handleClear(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")

	var resp domain.SelectionResponse
	err := a.loop.Do(r.Context(), func(ctx context.Context) error {
		if err := a.viewer.clearLayer(ctx, model); err != nil {
			return err
		}
		resp.Active = a.viewer.active()
		return nil
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *adminServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps err onto the admin error model.
func (a *adminServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, layers.ErrLayerNotFound):
		a.writeErrorCode(w, r, http.StatusNotFound, domain.CodeUnknownLayer, err.Error())
	case errors.Is(err, errUnknownModel):
		a.writeErrorCode(w, r, http.StatusBadRequest, domain.CodeUnknownModel, err.Error())
	case association.IsUnknownLayer(err):
		a.writeErrorCode(w, r, http.StatusConflict, domain.CodeNotAssociated, err.Error())
	case errors.Is(err, eventloop.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		a.writeErrorCode(w, r, http.StatusServiceUnavailable, domain.CodeUnavailable, "viewer is not available")
	default:
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Admin request failed")
		a.writeErrorCode(w, r, http.StatusInternalServerError, domain.CodeInternal, "internal error")
	}
}

func (a *adminServer) writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := domain.ErrorResponse{Code: code, Message: message}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		resp.TraceID = sc.TraceID().String()
	}
	a.writeJSON(w, status, resp)
}
