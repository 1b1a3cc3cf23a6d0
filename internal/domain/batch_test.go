package domain

import (
	"strings"
	"testing"
	"time"
)

func TestBatch_AddKeepsLockStep(t *testing.T) {
	b := NewBatch(2)
	if !b.Empty() {
		t.Fatal("new batch should be empty")
	}

	b.Add(Envelope{ConnID: "a", Block: Block{Seq: 0, Data: []byte("xy")}})
	b.Add(Envelope{ConnID: "b", Block: Block{Seq: 7, Data: []byte("z")}})

	if b.Size() != 2 || len(b.Blocks) != 2 {
		t.Fatalf("size = %d/%d, want 2/2", b.Size(), len(b.Blocks))
	}
	if b.TotalBytes != 3 {
		t.Errorf("TotalBytes = %d, want 3", b.TotalBytes)
	}
	for i := range b.Envelopes {
		if string(b.Envelopes[i].Block.Data) != string(b.Blocks[i].Data) {
			t.Errorf("item %d: envelope and block payload differ", i)
		}
	}
}

func TestResult_Empty(t *testing.T) {
	if !(Result{}).Empty() {
		t.Error("zero Result should be empty")
	}
	if (Result{Failures: []Failure{{ConnID: "a"}}}).Empty() {
		t.Error("Result with failures should not be empty")
	}
}

func TestPayloads(t *testing.T) {
	got := Payloads([]Block{{Data: []byte("a")}, {Data: []byte("bb")}})
	if len(got) != 2 || string(got[0]) != "a" || string(got[1]) != "bb" {
		t.Errorf("Payloads = %q", got)
	}
}

func TestStats_String(t *testing.T) {
	s := Stats{
		Remote:      "tcp://127.0.0.1:3000",
		BandwidthIn: 2 * mib,
		TotalOut:    mib,
		SampledAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	got := s.String()
	for _, want := range []string{"tcp://127.0.0.1:3000", "2024/01/02 03:04:05", "I:2.00MB/s", "TO:1.00MB"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
