package memring

import "testing"

func TestPoolRecyclesZeroedBlocks(t *testing.T) {
	p := NewStreamPool()
	b := p.Get()
	for i := range b {
		b[i] = 0xFF
	}
	p.Put(b)
	b2 := p.Get()
	for i, v := range b2 {
		if v != 0 {
			t.Fatalf("expected recycled block to be zeroed at %d, got %d", i, v)
		}
	}
}

func TestRingFullAndEmpty(t *testing.T) {
	r := NewRing(3, 2)
	if r.Core() != 3 {
		t.Fatalf("expected core 3, got %d", r.Core())
	}
	if !r.Push([]byte("a")) {
		t.Fatal("expected first push to succeed")
	}
	if !r.Push([]byte("b")) {
		t.Fatal("expected second push to succeed")
	}
	if r.Push([]byte("c")) {
		t.Fatal("expected third push to fail, ring is full")
	}
	if got, ok := r.Pop(); !ok || string(got) != "a" {
		t.Fatalf("expected FIFO pop of 'a', got %q ok=%v", got, ok)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", r.Len())
	}
}
