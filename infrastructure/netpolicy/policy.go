// Package netpolicy provides the reference application.NetworkPolicy: a
// strict check that a session's packets only ever carry its own assigned
// source address.
package netpolicy

import "net/netip"

// Strict rejects any packet whose source address does not exactly match the
// session's assigned virtual IP.
type Strict struct{}

// IsSourceAllowed implements application.NetworkPolicy.
func (Strict) IsSourceAllowed(sessionVirtualIP, packetSourceIP netip.Addr) bool {
	return sessionVirtualIP == packetSourceIP
}
