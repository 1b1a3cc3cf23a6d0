package ebridge

import (
	"context"
	"errors"
	"testing"

	"github.com/bft-labs/ebridge/internal/domain"
)

func TestNewServer_RequiresProcessor(t *testing.T) {
	_, err := NewServer(ServerConfig{Host: "127.0.0.1"})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("NewServer() error = %v, want ErrInvalidConfig", err)
	}

	echo := ProcessorFunc(func(_ context.Context, _ string, b []Block) ([]Block, error) { return b, nil })
	if _, err := NewServer(ServerConfig{Host: "127.0.0.1", Processor: echo}); err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
}

func TestNewClient_RequiresPort(t *testing.T) {
	if _, err := NewClient(ClientConfig{Host: "127.0.0.1"}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("NewClient() error = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewClient(ClientConfig{Host: "127.0.0.1", Port: 7000}); err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
}
