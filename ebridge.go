// Package ebridge is the module's top-level entry point. It re-exports the
// server and client from pkg/ebridge so callers can import the module root.
//
// Example usage:
//
//	srv, err := ebridge.NewServer(ebridge.ServerConfig{
//	    Host:      "0.0.0.0",
//	    Port:      7000,
//	    Processor: myProcessor,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package ebridge

import (
	"github.com/bft-labs/ebridge/pkg/ebridge"
)

// ServerConfig configures a Server.
type ServerConfig = ebridge.ServerConfig

// ClientConfig configures a Client.
type ClientConfig = ebridge.ClientConfig

// Server accepts connections and batches their blocks through a Processor.
type Server = ebridge.Server

// Client keeps a reconnecting connection to a Server.
type Client = ebridge.Client

// Option configures optional behavior of a Server or Client.
type Option = ebridge.Option

// Block is one unit of payload.
type Block = ebridge.Block

// Processor handles batches of blocks on the server.
type Processor = ebridge.Processor

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc = ebridge.ProcessorFunc

// NewServer validates cfg and creates a stopped server.
func NewServer(cfg ServerConfig, opts ...Option) (*Server, error) {
	return ebridge.NewServer(cfg, opts...)
}

// NewClient validates cfg and creates a stopped client.
func NewClient(cfg ClientConfig, opts ...Option) (*Client, error) {
	return ebridge.NewClient(cfg, opts...)
}
