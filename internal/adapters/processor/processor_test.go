package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/bft-labs/ebridge/internal/domain"
)

func TestReverse(t *testing.T) {
	in := []domain.Block{{Seq: 3, Data: []byte("abc")}, {Seq: 4, Data: nil}}
	out, err := Reverse{}.Process(context.Background(), "t", in)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if string(out[0].Data) != "cba" || out[0].Seq != 3 {
		t.Errorf("out[0] = %+v", out[0])
	}
	if len(out[1].Data) != 0 {
		t.Errorf("out[1] = %+v", out[1])
	}
	if string(in[0].Data) != "abc" {
		t.Error("input modified")
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"echo", false},
		{"reverse", false},
		{"resnet", true},
	}
	for _, tt := range tests {
		_, err := Lookup(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("Lookup(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("Lookup(%q) error = %v, want ErrInvalidConfig", tt.name, err)
		}
	}
}
