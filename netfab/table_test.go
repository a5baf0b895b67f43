package netfab

import "testing"

func TestAttachDetachRunsReset(t *testing.T) {
	tb := NewTable()
	var resetCalled bool
	tb.Attach(1, nil, nil, nil, func(e *Entry) { resetCalled = true }, nil)

	if _, ok := tb.Get(1); !ok {
		t.Fatal("expected entry to be attached")
	}
	tb.Detach(1)
	if resetCalled != true {
		t.Fatal("expected reset callback to run on detach")
	}
	if _, ok := tb.Get(1); ok {
		t.Fatal("expected entry to be gone after detach")
	}
}

func TestRangeSkipsFailedCheck(t *testing.T) {
	tb := NewTable()
	tb.Attach(1, nil, nil, nil, nil, func(e *Entry) bool { return true })
	tb.Attach(2, nil, nil, nil, nil, func(e *Entry) bool { return false })

	var seen []int
	tb.Range(func(e *Entry) { seen = append(seen, e.SockID) })
	if len(seen) != 1 || seen[0] != 1 {
		t.Fatalf("expected only sock 1 visited, got %v", seen)
	}
}
