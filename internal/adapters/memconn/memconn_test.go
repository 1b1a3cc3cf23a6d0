package memconn

import (
	"errors"
	"io"
	"net"
	"testing"
)

func TestPipe_DeliversInOrder(t *testing.T) {
	a, b := Pipe("a", "b")

	for _, s := range []string{"one", "two"} {
		if err := a.Send([]byte(s)); err != nil {
			t.Fatalf("Send(%q) error = %v", s, err)
		}
	}

	for _, want := range []string{"one", "two"} {
		got, err := b.Recv()
		if err != nil || string(got) != want {
			t.Fatalf("Recv() = %q, %v; want %q", got, err, want)
		}
	}
	if got, err := b.Recv(); got != nil || err != nil {
		t.Errorf("idle Recv() = %q, %v; want nil, nil", got, err)
	}
	if b.RemoteAddr() != "mem://a" {
		t.Errorf("RemoteAddr() = %s", b.RemoteAddr())
	}
}

func TestPipe_CloseDrainsThenEOF(t *testing.T) {
	a, b := Pipe("a", "b")
	_ = a.Send([]byte("last"))
	_ = a.Close()

	if got, _ := b.Recv(); string(got) != "last" {
		t.Fatalf("Recv() = %q, want last", got)
	}
	if _, err := b.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("Recv() after drain = %v, want EOF", err)
	}
	if err := a.Send([]byte("x")); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Send() after Close = %v, want net.ErrClosed", err)
	}
}
