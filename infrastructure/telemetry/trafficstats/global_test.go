package trafficstats

import (
	"testing"
	"time"
)

func TestGlobal_DefaultsToNil(t *testing.T) {
	SetGlobal(nil)
	if Global() != nil {
		t.Fatal("expected nil global collector")
	}
}

func TestGlobal_SetAndRetrieve(t *testing.T) {
	c := NewCollector(time.Second, 0)
	SetGlobal(c)
	t.Cleanup(func() { SetGlobal(nil) })

	if Global() != c {
		t.Fatal("expected Global to return the installed collector")
	}

	c.AddReceivedBytes(600)
	c.AddSentBytes(100)

	s := Global().Snapshot()
	if s.BytesReceived != 600 {
		t.Fatalf("expected received total 600, got %d", s.BytesReceived)
	}
	if s.BytesSent != 100 {
		t.Fatalf("expected sent total 100, got %d", s.BytesSent)
	}
}
