// Package ipvalidate validates decrypted tunnel payloads as plausible IP
// packets before they reach the Datagram Device, and extracts the source
// address used by the NetworkPolicy source check.
package ipvalidate

import (
	"errors"
	"net/netip"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"tunnelcore/domain/protocol"
)

// ErrInvalidPacket is returned for any plaintext that does not parse as a
// minimally well-formed IPv4 or IPv6 packet.
var ErrInvalidPacket = errors.New("ipvalidate: invalid ip packet")

const (
	ipv4VersionNibble = 4
	ipv6VersionNibble = 6
)

// Validate checks that packet is at least MinIPHeaderLen and at most MTU
// bytes, and that its version nibble is 4 or 6.
func Validate(packet []byte) error {
	if len(packet) < protocol.MinIPHeaderLen || len(packet) > protocol.MTU {
		return ErrInvalidPacket
	}
	switch packet[0] >> 4 {
	case ipv4VersionNibble:
		if len(packet) < ipv4.HeaderLen {
			return ErrInvalidPacket
		}
		return nil
	case ipv6VersionNibble:
		if len(packet) < ipv6.HeaderLen {
			return ErrInvalidPacket
		}
		return nil
	default:
		return ErrInvalidPacket
	}
}

// SourceAddr extracts the packet's source address. The caller must have
// already called Validate.
func SourceAddr(packet []byte) (netip.Addr, error) {
	return addrAt(packet, 12, 8)
}

// DestAddr extracts the packet's destination address. The caller must have
// already called Validate.
func DestAddr(packet []byte) (netip.Addr, error) {
	return addrAt(packet, 16, 24)
}

func addrAt(packet []byte, ipv4Offset, ipv6Offset int) (netip.Addr, error) {
	switch packet[0] >> 4 {
	case ipv4VersionNibble:
		if len(packet) < ipv4.HeaderLen {
			return netip.Addr{}, ErrInvalidPacket
		}
		var b [4]byte
		copy(b[:], packet[ipv4Offset:ipv4Offset+4])
		return netip.AddrFrom4(b), nil
	case ipv6VersionNibble:
		if len(packet) < ipv6.HeaderLen {
			return netip.Addr{}, ErrInvalidPacket
		}
		var b [16]byte
		copy(b[:], packet[ipv6Offset:ipv6Offset+16])
		return netip.AddrFrom16(b), nil
	default:
		return netip.Addr{}, ErrInvalidPacket
	}
}
