package statsreporter

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/ebridge/pkg/ebridge"
	"github.com/bft-labs/ebridge/pkg/log"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPlugin_LogsEachConnection(t *testing.T) {
	var out syncBuffer
	logger := log.NewZerologAdapterTo(&out, log.FormatJSON, zerolog.InfoLevel)

	stats := []ebridge.Stats{
		{ConnID: "conn-a", Remote: "tcp://10.0.0.1:5000", TotalIn: 2 * 1024 * 1024, SampledAt: time.Now()},
		{ConnID: "conn-b", Remote: "tcp://10.0.0.2:5000", SampledAt: time.Now()},
	}
	plugin := New(Config{Interval: 10 * time.Millisecond})

	ctx := context.Background()
	err := plugin.Initialize(ctx, ebridge.PluginConfig{
		Logger: logger,
		Stats:  func() []ebridge.Stats { return stats },
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "conn-b") {
		if time.Now().After(deadline) {
			t.Fatalf("no report logged, got %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := plugin.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{"connection stats", "conn-a", "TI:2.00MB", "tcp://10.0.0.2:5000"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestPlugin_DisabledWithoutStats(t *testing.T) {
	plugin := New(Config{})
	ctx := context.Background()
	if err := plugin.Initialize(ctx, ebridge.PluginConfig{Logger: log.NewNoopLogger()}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, 10 * time.Second},
		{-time.Second, 10 * time.Second},
		{time.Minute, time.Minute},
	}
	for _, tt := range tests {
		if got := New(Config{Interval: tt.in}).interval; got != tt.want {
			t.Errorf("New(%v).interval = %v, want %v", tt.in, got, tt.want)
		}
	}
}
