// Package certwatcher reloads the server's TLS certificate when the
// certificate or key file changes on disk. New handshakes use the reloaded
// certificate; established connections keep theirs.
package certwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/ebridge/pkg/ebridge"
	"github.com/bft-labs/ebridge/pkg/log"
)

// Plugin watches the certificate and key files.
type Plugin struct {
	mu sync.Mutex

	debounceDelay time.Duration
	onReload      func(error)

	certFile string
	keyFile  string
	store    *ebridge.CertStore
	logger   ebridge.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the cert watcher plugin.
type Config struct {
	// DebounceDelay is how long to wait after the last change before
	// reloading, so a certificate and key written back to back are read
	// together.
	// Default: 200 milliseconds
	DebounceDelay time.Duration

	// OnReload, if set, is called after every reload attempt with its result.
	OnReload func(error)
}

// DefaultConfig returns a Config with a 200ms debounce.
func DefaultConfig() Config {
	return Config{DebounceDelay: 200 * time.Millisecond}
}

// New creates a cert watcher plugin.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 200 * time.Millisecond
	}
	return &Plugin{
		debounceDelay: cfg.DebounceDelay,
		onReload:      cfg.OnReload,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "certwatcher"
}

// Initialize starts watching the directories holding the certificate and
// key. Without TLS the plugin does nothing.
func (p *Plugin) Initialize(ctx context.Context, cfg ebridge.PluginConfig) error {
	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	if cfg.Certificates == nil {
		p.logger.Warn("cert watcher disabled: server runs without TLS")
		return nil
	}
	p.certFile = filepath.Clean(cfg.CertFile)
	p.keyFile = filepath.Clean(cfg.KeyFile)
	p.store = cfg.Certificates

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range p.dirs() {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return err
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("cert watcher plugin initialized",
		log.String("cert", p.certFile),
		log.String("key", p.keyFile),
	)
	return nil
}

// Shutdown stops watching and cancels a pending reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) dirs() []string {
	certDir := filepath.Dir(p.certFile)
	keyDir := filepath.Dir(p.keyFile)
	if certDir == keyDir {
		return []string{certDir}
	}
	return []string{certDir, keyDir}
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name := filepath.Clean(event.Name)
			if name != p.certFile && name != p.keyFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.scheduleReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("cert watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) scheduleReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

func (p *Plugin) reload() {
	err := p.store.Reload()
	if err != nil {
		p.logger.Warn("certificate reload failed, keeping previous", log.Err(err))
	} else {
		p.logger.Info("certificate reloaded", log.String("cert", p.certFile))
	}
	if p.onReload != nil {
		p.onReload(err)
	}
}

var _ ebridge.Plugin = (*Plugin)(nil)
