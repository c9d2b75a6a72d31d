package trafficstats

import (
	"testing"
	"time"
)

func TestHotPathAdd_NoAllocs(t *testing.T) {
	c := NewCollector(time.Second, 0)

	allocs := testing.AllocsPerRun(1000, func() {
		c.AddReceivedBytes(1500)
		c.AddSentBytes(900)
	})
	if allocs != 0 {
		t.Fatalf("expected zero allocations in hot path, got %.2f", allocs)
	}
}

func BenchmarkHotPathAddBytes(b *testing.B) {
	c := NewCollector(time.Second, 0)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.AddReceivedBytes(1500)
		c.AddSentBytes(900)
	}
}
