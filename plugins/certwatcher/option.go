package certwatcher

import "github.com/bft-labs/ebridge/pkg/ebridge"

// WithCertWatcher returns an ebridge Option that reloads the server
// certificate when its files change.
//
// Usage:
//
//	srv, err := ebridge.NewServer(cfg,
//	    certwatcher.WithCertWatcher(certwatcher.Config{
//	        DebounceDelay: 500 * time.Millisecond,
//	    }),
//	)
func WithCertWatcher(cfg Config) ebridge.Option {
	return ebridge.WithPlugin(New(cfg))
}

// WithDefaultCertWatcher is WithCertWatcher with DefaultConfig.
func WithDefaultCertWatcher() ebridge.Option {
	return WithCertWatcher(DefaultConfig())
}
