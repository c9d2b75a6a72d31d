package netpolicy

import (
	"net/netip"
	"testing"
)

func TestStrict_AllowsMatchingSource(t *testing.T) {
	t.Parallel()
	addr := netip.MustParseAddr("10.8.0.2")
	if !(Strict{}).IsSourceAllowed(addr, addr) {
		t.Fatal("expected matching source to be allowed")
	}
}

func TestStrict_RejectsSpoofedSource(t *testing.T) {
	t.Parallel()
	session := netip.MustParseAddr("10.8.0.2")
	spoofed := netip.MustParseAddr("10.8.0.3")
	if (Strict{}).IsSourceAllowed(session, spoofed) {
		t.Fatal("expected mismatched source to be rejected")
	}
}
