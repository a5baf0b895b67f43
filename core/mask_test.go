package core

import "testing"

func TestTransMaskDenseAscending(t *testing.T) {
	cm := TransMask(0b10110)
	want := []int{1, 2, 4}
	if len(cm.CoreID) != len(want) {
		t.Fatalf("expected %v, got %v", want, cm.CoreID)
	}
	for i, v := range want {
		if cm.CoreID[i] != v {
			t.Fatalf("expected %v, got %v", want, cm.CoreID)
		}
	}
}

func TestCoreMaskHashStability(t *testing.T) {
	cm := TransMask(0b10110) // dense = [1,2,4]
	if got := cm.Hash(7); got != 2 {
		t.Fatalf("expected hash(7) == 2, got %d", got)
	}
	// keys congruent modulo count(m) must land on the same core.
	if cm.Hash(1) != cm.Hash(1+3) {
		t.Fatalf("expected congruent keys to hash identically")
	}
}

func TestCoreMaskHashEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic hashing over an empty mask")
		}
	}()
	TransMask(0).Hash(1)
}

func TestMaskUsedOutOfRange(t *testing.T) {
	var m Mask = 1
	if m.Used(-1) || m.Used(64) {
		t.Fatal("expected out-of-range bits to report unused")
	}
}
