package session

import (
	"errors"
	"net/netip"
	"sync"
)

// ErrIPAllocation is returned when the virtual-address pool is exhausted.
var ErrIPAllocation = errors.New("session: virtual address pool exhausted")

// ErrNotAllocated is returned when release is called for an address this
// allocator never handed out.
var ErrNotAllocated = errors.New("session: address was not allocated")

// poolBase, firstHost and lastHost describe the reserved /24: 10.8.0.0/24, with .0, .1
// and .255 reserved. Clients are drawn sequentially from .2..=.254.
var (
	poolBase  = netip.MustParseAddr("10.8.0.0")
	firstHost = netip.MustParseAddr("10.8.0.2")
	lastHost  = netip.MustParseAddr("10.8.0.254")
)

// Allocator hands out unique virtual IPv4 addresses from the fixed /24,
// lowest-unused-first. It is the only component permitted to mutate the
// process-wide virtual-address pool.
type Allocator struct {
	mu   sync.Mutex
	used map[netip.Addr]struct{}
}

// NewAllocator returns an empty allocator over the fixed 10.8.0.0/24 pool.
func NewAllocator() *Allocator {
	return &Allocator{used: make(map[netip.Addr]struct{})}
}

// Allocate returns the first unused address in 10.8.0.2..=10.8.0.254 by
// ascending order, and marks it used.
func (a *Allocator) Allocate() (netip.Addr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for addr := firstHost; ; addr = addr.Next() {
		if _, taken := a.used[addr]; !taken {
			a.used[addr] = struct{}{}
			return addr, nil
		}
		if addr == lastHost {
			break
		}
	}
	return netip.Addr{}, ErrIPAllocation
}

// Release returns addr to the pool. Idempotent: releasing an address that
// was not allocated is reported, but callers on the session-termination path
// may ignore ErrNotAllocated since termination must be safe to retry.
func (a *Allocator) Release(addr netip.Addr) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.used[addr]; !ok {
		return ErrNotAllocated
	}
	delete(a.used, addr)
	return nil
}

// Count returns the number of currently-allocated addresses.
func (a *Allocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}

// InPool reports whether addr falls within the managed /24, including the
// reserved network/gateway/broadcast addresses.
func InPool(addr netip.Addr) bool {
	prefix := netip.PrefixFrom(poolBase, 24)
	return prefix.Contains(addr)
}
