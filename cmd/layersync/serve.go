package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polisai/layersync/internal/eventloop"
	"github.com/polisai/layersync/pkg/config"
	"github.com/polisai/layersync/pkg/logging"
	"github.com/polisai/layersync/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the viewer daemon",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("manifest", "", "Path to the layer manifest (overrides config)")
	cmd.Flags().String("admin-addr", "", "Admin API listen address (overrides config)")
	cmd.Flags().String("active-layer", "", "Layer selected once the manifest is loaded")
	return cmd
}

// loadConfig reads the config file named by --config and applies flag
// overrides on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{"log-level", &cfg.Logging.Level},
		{"manifest", &cfg.Viewer.Manifest},
		{"admin-addr", &cfg.Server.AdminAddress},
		{"active-layer", &cfg.Viewer.ActiveLayer},
	}
	for _, o := range overrides {
		if cmd.Flags().Lookup(o.flag) == nil {
			continue
		}
		val, err := cmd.Flags().GetString(o.flag)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", o.flag, err)
		}
		if val != "" {
			*o.target = val
		}
	}
	if cmd.Flags().Changed("pretty") {
		pretty, err := cmd.Flags().GetBool("pretty")
		if err != nil {
			return nil, fmt.Errorf("failed to get pretty flag: %w", err)
		}
		cfg.Logging.Pretty = pretty
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logging.SetupLogger(logging.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	logger := log.Logger

	logger.Info().
		Str("version", version).
		Str("manifest", cfg.Viewer.Manifest).
		Bool("watch", cfg.Viewer.Watch).
		Bool("deferred_upload", cfg.Textures.DeferredUpload).
		Msg("Starting layersync")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdownTracing, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Tracer shutdown failed")
		}
	}()

	metrics := telemetry.NewMetrics()
	recorder := telemetry.Combine(metrics, telemetry.OTelRecorder{})

	v, err := newViewer(ctx, cfg, recorder, logger)
	if err != nil {
		return err
	}

	loop := eventloop.New(eventloop.WithLogger(logger))
	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Event loop stopped")
		}
	}()

	if cfg.Viewer.Manifest != "" {
		stop, err := startManifest(ctx, cfg, v, loop, metrics, logger)
		if err != nil {
			cancel()
			<-loop.Done()
			return err
		}
		defer stop()
	} else {
		logger.Warn().Msg("No manifest configured, starting with an empty collection")
	}

	server, err := startServer(cfg.Server.AdminAddress, newAdminHandler(v, loop, metrics, logger), logger)
	if err != nil {
		cancel()
		<-loop.Done()
		return err
	}

	waitForShutdown(ctx, cancel, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
	}

	// The loop has stopped, so the viewer can be closed from here.
	<-loop.Done()
	v.close(context.Background())

	logger.Info().Msg("layersync stopped")
	return nil
}

// startManifest loads the manifest once, or follows it when watching is
// enabled. Every revision is applied on the loop. The returned function
// stops watching.
func startManifest(ctx context.Context, cfg *config.Config, v *viewer, loop *eventloop.Loop, metrics *telemetry.Metrics, logger zerolog.Logger) (func(), error) {
	apply := func(m *config.Manifest) {
		err := loop.Do(ctx, func(ctx context.Context) error {
			return v.applyManifest(ctx, m)
		})
		if err != nil {
			metrics.RecordManifestReload("error")
			logger.Error().Err(err).Int64("generation", m.Generation).Msg("Failed to apply manifest")
			return
		}
		metrics.RecordManifestReload("success")

		// Uploads complete on a later turn of the loop, as a frame would.
		_ = loop.Do(ctx, func(ctx context.Context) error {
			v.flushUploads(ctx)
			return nil
		})
	}

	if !cfg.Viewer.Watch {
		m, err := config.LoadManifest(cfg.Viewer.Manifest)
		if err != nil {
			return nil, err
		}
		apply(m)
		return func() {}, nil
	}

	provider, err := config.NewFileManifestProvider(cfg.Viewer.Manifest, config.WithProviderLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize manifest provider: %w", err)
	}
	if provider.Current() == nil {
		logger.Warn().Str("manifest", provider.Path()).Msg("Waiting for a valid manifest")
	}

	updates := provider.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-updates:
				logger.Info().Int64("generation", m.Generation).Msg("Manifest update received")
				apply(m)
			}
		}
	}()

	return func() {
		if err := provider.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close manifest provider")
		}
	}, nil
}

func startServer(addr string, handler http.Handler, logger zerolog.Logger) (*http.Server, error) {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind admin listener %s: %w", addr, err)
	}

	// Log the actual resolved address (useful when addr is :0)
	logger.Info().Str("addr", listener.Addr().String()).Msg("Admin server listening")

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Admin server failed")
		}
	}()

	return server, nil
}

// waitForShutdown blocks until a termination signal arrives or ctx ends,
// then cancels ctx.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, logger zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
	}
	cancel()
}
