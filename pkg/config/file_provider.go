package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultDebounce = 100 * time.Millisecond

// FileManifestProvider serves the layer manifest from a local file and
// publishes every valid revision written to it. Invalid revisions are logged
// and skipped; the last valid manifest stays current.
type FileManifestProvider struct {
	path        string
	debounce    time.Duration
	logger      zerolog.Logger
	mu          sync.RWMutex
	manifest    *Manifest
	subscribers []chan *Manifest
	watcher     *fsnotify.Watcher
	cancel      context.CancelFunc
	done        chan struct{}
}

// ProviderOption configures a FileManifestProvider.
type ProviderOption func(*FileManifestProvider)

// WithDebounce sets how long the provider waits for writes to settle.
func WithDebounce(d time.Duration) ProviderOption {
	return func(p *FileManifestProvider) {
		if d > 0 {
			p.debounce = d
		}
	}
}

// WithProviderLogger sets the provider's logger.
func WithProviderLogger(logger zerolog.Logger) ProviderOption {
	return func(p *FileManifestProvider) {
		p.logger = logger
	}
}

// NewFileManifestProvider creates a new provider watching the specified file.
// A missing or invalid file is not fatal: the provider starts without a
// manifest and picks the file up once a valid revision is written.
func NewFileManifestProvider(path string, opts ...ProviderOption) (*FileManifestProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &FileManifestProvider{
		path:     absPath,
		debounce: defaultDebounce,
		logger:   log.Logger,
		watcher:  watcher,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("manifest", absPath).Logger()

	if err := p.load(); err != nil {
		p.logger.Warn().Err(err).Msg("Initial manifest load failed")
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		cancel()
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	go p.watchLoop(ctx)

	return p, nil
}

// Path returns the absolute manifest path.
func (p *FileManifestProvider) Path() string {
	return p.path
}

// Current returns the last valid manifest, or nil if none was read yet.
func (p *FileManifestProvider) Current() *Manifest {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.manifest
}

// Subscribe returns a channel that receives manifest revisions. The current
// manifest, if any, is delivered immediately. Slow consumers miss
// intermediate revisions.
func (p *FileManifestProvider) Subscribe() <-chan *Manifest {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan *Manifest, 1)
	p.subscribers = append(p.subscribers, ch)
	if p.manifest != nil {
		ch <- p.manifest
	}
	return ch
}

// Close stops the watcher and cleans up resources.
func (p *FileManifestProvider) Close() error {
	p.cancel()
	err := p.watcher.Close()
	<-p.done
	return err
}

func (p *FileManifestProvider) watchLoop(ctx context.Context) {
	defer close(p.done)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != p.path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(p.debounce, func() {
					if ctx.Err() != nil {
						return
					}
					if err := p.load(); err != nil {
						p.logger.Error().Err(err).Msg("Manifest reload failed")
					} else {
						p.logger.Info().Msg("Manifest reloaded")
					}
				})
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (p *FileManifestProvider) load() error {
	m, err := LoadManifest(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.manifest = m
	subscribers := make([]chan *Manifest, len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	for _, ch := range subscribers {
		// Replace an undelivered revision with the newer one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- m:
		default:
		}
	}

	return nil
}
