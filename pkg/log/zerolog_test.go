package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestZerologAdapter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterTo(&buf, FormatJSON, zerolog.DebugLevel)

	l.With(String("conn_id", "abc")).Info("frame received",
		Int("size", 12),
		Bool("last", true),
		Duration("took", 2*time.Millisecond),
		Err(errors.New("boom")),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if entry["conn_id"] != "abc" {
		t.Errorf("conn_id = %v, want abc", entry["conn_id"])
	}
	if entry["size"] != float64(12) {
		t.Errorf("size = %v, want 12", entry["size"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
	if entry["message"] != "frame received" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologAdapterTo(&buf, FormatJSON, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("expected warn output")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"loud", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNoopLogger_With(t *testing.T) {
	var l Logger = NewNoopLogger()
	child := l.With(String("k", "v"))
	child.Info("ignored")
	if child == nil {
		t.Fatal("With returned nil")
	}
}
