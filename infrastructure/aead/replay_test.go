package aead

import "testing"

func TestReplayWindow_FirstPacketAccepted(t *testing.T) {
	t.Parallel()
	w := NewReplayWindow()
	if err := w.Check(0); err != nil {
		t.Fatalf("Check(0) on empty window: %v", err)
	}
	w.Accept(0)
	if !w.Seen(0) {
		t.Fatal("expected counter 0 to be seen after Accept")
	}
}

func TestReplayWindow_DuplicateRejected(t *testing.T) {
	t.Parallel()
	w := NewReplayWindow()
	w.Accept(5)
	if err := w.Check(5); err != ErrReplayDetected {
		t.Fatalf("want ErrReplayDetected, got %v", err)
	}
}

func TestReplayWindow_ReplayAfterAdvance(t *testing.T) {
	t.Parallel()
	// S4: counter 5 accepted, then replayed after 10 further records (counter 15).
	w := NewReplayWindow()
	w.Accept(5)
	for c := uint64(6); c <= 15; c++ {
		if err := w.Check(c); err != nil {
			t.Fatalf("Check(%d): %v", c, err)
		}
		w.Accept(c)
	}
	if err := w.Check(5); err != ErrReplayDetected {
		t.Fatalf("want ErrReplayDetected replaying counter 5, got %v", err)
	}
}

func TestReplayWindow_High63Recv0Accepted(t *testing.T) {
	t.Parallel()
	w := NewReplayWindow()
	w.Accept(63)
	if err := w.Check(0); err != nil {
		t.Fatalf("Check(0) with high=63: %v", err)
	}
}

func TestReplayWindow_High64Recv0Rejected(t *testing.T) {
	t.Parallel()
	w := NewReplayWindow()
	w.Accept(64)
	if err := w.Check(0); err != ErrReplayDetected {
		t.Fatalf("want ErrReplayDetected with high=64 recv 0, got %v", err)
	}
}

func TestReplayWindow_NewHighShiftsBitmap(t *testing.T) {
	t.Parallel()
	w := NewReplayWindow()
	w.Accept(0)
	w.Accept(64) // shifts bitmap fully out; counter 0 must no longer be "seen"
	if w.Seen(0) {
		t.Fatal("counter 0 should have been shifted out of the window")
	}
	if !w.Seen(64) {
		t.Fatal("counter 64 should be seen")
	}
}

func TestReplayWindow_Idempotence(t *testing.T) {
	t.Parallel()
	// Law: submitting the same record twice yields one accept, one reject.
	w := NewReplayWindow()
	const c = 42
	if err := w.Check(c); err != nil {
		t.Fatalf("first Check: %v", err)
	}
	w.Accept(c)
	if err := w.Check(c); err != ErrReplayDetected {
		t.Fatalf("second Check should be ErrReplayDetected, got %v", err)
	}
}

func TestReplayWindow_OutOfOrderWithinWindow(t *testing.T) {
	t.Parallel()
	w := NewReplayWindow()
	w.Accept(10)
	if err := w.Check(8); err != nil {
		t.Fatalf("Check(8) within window: %v", err)
	}
	w.Accept(8)
	if err := w.Check(8); err != ErrReplayDetected {
		t.Fatal("replaying 8 should now be rejected")
	}
	// 9 still unseen and within window
	if err := w.Check(9); err != nil {
		t.Fatalf("Check(9) should still be accepted: %v", err)
	}
}
