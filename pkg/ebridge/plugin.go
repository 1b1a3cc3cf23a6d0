package ebridge

import (
	"context"
)

// Plugin extends a Server with optional functionality.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called when the server starts, before it accepts
	// connections. A returned error aborts the start.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called when the server stops.
	Shutdown(ctx context.Context) error
}

// PluginConfig is what a plugin gets to work with.
type PluginConfig struct {
	Logger Logger

	// Stats returns the latest per-connection traffic snapshot. Safe to call
	// from any goroutine.
	Stats func() []Stats

	// CertFile and KeyFile are the server's TLS material, empty without TLS.
	CertFile string
	KeyFile  string

	// Certificates is the live server certificate. Nil without TLS.
	Certificates *CertStore
}
