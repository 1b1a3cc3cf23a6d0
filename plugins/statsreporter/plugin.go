// Package statsreporter periodically logs per-connection bandwidth for an
// ebridge server.
package statsreporter

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/ebridge/pkg/ebridge"
	"github.com/bft-labs/ebridge/pkg/log"
)

// Plugin logs a line per live connection on every interval.
type Plugin struct {
	mu sync.Mutex

	interval time.Duration

	logger ebridge.Logger
	stats  func() []ebridge.Stats
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds configuration options for the stats reporter plugin.
type Config struct {
	// Interval between reports.
	// Default: 10 seconds
	Interval time.Duration
}

// DefaultConfig returns a Config reporting every 10 seconds.
func DefaultConfig() Config {
	return Config{Interval: 10 * time.Second}
}

// New creates a stats reporter plugin.
func New(cfg Config) *Plugin {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Plugin{interval: cfg.Interval}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "statsreporter"
}

// Initialize starts the reporting loop.
func (p *Plugin) Initialize(ctx context.Context, cfg ebridge.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = cfg.Logger
	if p.logger == nil {
		p.logger = log.NewNoopLogger()
	}
	p.stats = cfg.Stats
	if p.stats == nil {
		p.logger.Warn("stats reporter disabled: no stats source")
		return nil
	}

	reportCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.reportLoop(reportCtx)

	p.logger.Info("stats reporter plugin initialized", log.Duration("interval", p.interval))
	return nil
}

// Shutdown stops the reporting loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) reportLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.report()
		}
	}
}

// report logs the latest snapshot. Nothing is logged with no connections.
func (p *Plugin) report() {
	for _, s := range p.stats() {
		p.logger.Info("connection stats",
			log.String("conn_id", string(s.ConnID)),
			log.String("line", s.String()),
			log.Float64("bw_in", s.BandwidthIn),
			log.Float64("bw_out", s.BandwidthOut),
			log.Uint64("total_in", s.TotalIn),
			log.Uint64("total_out", s.TotalOut),
		)
	}
}

var _ ebridge.Plugin = (*Plugin)(nil)
