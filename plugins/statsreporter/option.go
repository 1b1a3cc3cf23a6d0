package statsreporter

import "github.com/bft-labs/ebridge/pkg/ebridge"

// WithStatsReporter returns an ebridge Option that logs connection bandwidth
// every cfg.Interval.
//
// Usage:
//
//	srv, err := ebridge.NewServer(cfg,
//	    statsreporter.WithStatsReporter(statsreporter.Config{Interval: time.Minute}),
//	)
func WithStatsReporter(cfg Config) ebridge.Option {
	return ebridge.WithPlugin(New(cfg))
}

// WithDefaultStatsReporter is WithStatsReporter with DefaultConfig.
func WithDefaultStatsReporter() ebridge.Option {
	return WithStatsReporter(DefaultConfig())
}
