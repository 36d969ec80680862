package arp

import (
	"sync"
	"time"
)

// PA is a 32-bit IPv4 protocol address, compared only by equality.
type PA [4]byte

// HA is a 6-octet Ethernet link address. The all-zero value means
// "unresolved"; the all-ones value is the broadcast address.
type HA [6]byte

// BroadcastHA is the Ethernet broadcast address.
var BroadcastHA = HA{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// IsZero reports whether ha is the all-zero "unresolved" sentinel.
func (ha HA) IsZero() bool { return ha == HA{} }

// Device is the subset of dispatch-fabric functionality the ARP core
// depends on. Kept as an interface here, rather than importing the
// dispatch package, so that package can depend on arp instead of the
// reverse; any dispatch.Device that implements Transmit/LinkAddr works
// as a Netif's carrier.
type Device interface {
	// Transmit sends payload as the body of a frame of the given EtherType
	// addressed to dst, returning the number of bytes written.
	Transmit(etherType uint16, payload []byte, dst HA) (int, error)
	// LinkAddr returns the device's own hardware address.
	LinkAddr() HA
}

// Netif is the IPv4 attachment point on a Device, as returned by the
// dispatch fabric's GetNetif.
type Netif struct {
	Device  Device
	Unicast PA
}

// pendingPayload is the single deferred outbound message an entry may
// buffer while its resolution is in flight.
type pendingPayload struct {
	data  []byte
	netif Netif
}

// entry is one cache slot. waiter is a condition variable bound to the
// owning Cache's mutex; any Wait/Signal/Broadcast on it requires that
// mutex held, matching the "rendezvous used only while the cache lock is
// held" rule of the concurrency model.
type entry struct {
	used    bool
	pa      PA
	ha      HA
	ts      time.Time
	pending *pendingPayload
	waiter  *sync.Cond
}

func (e *entry) clear() {
	e.used = false
	e.pa = PA{}
	e.ha = HA{}
	e.ts = time.Time{}
	e.pending = nil
	e.waiter.Broadcast()
}

// Cache is the fixed-capacity ARP table: a flat array scanned linearly, no
// LRU, a single exclusive mutex guarding every entry plus the sweep
// throttle, and a per-entry condition variable used to wake resolvers
// blocked on an in-flight query.
type Cache struct {
	mu        sync.Mutex
	entries   [CacheSize]entry
	lastSweep time.Time
}

// NewCache returns an empty, ready-to-use Cache.
func NewCache() *Cache {
	c := &Cache{}
	for i := range c.entries {
		c.entries[i].waiter = sync.NewCond(&c.mu)
	}
	return c
}

// find returns the used entry matching pa, or nil. Caller must hold c.mu.
func (c *Cache) find(pa PA) *entry {
	for i := range c.entries {
		if c.entries[i].used && c.entries[i].pa == pa {
			return &c.entries[i]
		}
	}
	return nil
}

// allocateFree returns the first unused slot, or nil if the table is full.
// Caller must hold c.mu.
func (c *Cache) allocateFree() *entry {
	for i := range c.entries {
		if !c.entries[i].used {
			return &c.entries[i]
		}
	}
	return nil
}

// insert allocates a free slot for pa/ha and stamps it with now, signaling
// any waiters on the slot (there are none yet for a fresh slot, but a
// Broadcast is harmless). Caller must hold c.mu. Returns ErrTableFull if no
// slot is free.
func (c *Cache) insert(pa PA, ha HA, now time.Time) (*entry, error) {
	e := c.allocateFree()
	if e == nil {
		return nil, ErrTableFull
	}
	e.used = true
	e.pa = pa
	e.ha = ha
	e.ts = now
	e.pending = nil
	e.waiter.Broadcast()
	return e, nil
}

// update merges ha into the existing entry for pa, stamping it with now and
// returning the drained pending payload (if any) along with merged=true.
// merged is false, with a nil payload, if no entry exists for pa. Caller
// must hold c.mu.
func (c *Cache) update(pa PA, ha HA, now time.Time) (e *entry, pending *pendingPayload, merged bool) {
	e = c.find(pa)
	if e == nil {
		return nil, nil, false
	}
	e.ha = ha
	e.ts = now
	pending = e.pending
	e.pending = nil
	e.waiter.Broadcast()
	return e, pending, true
}

// clear evicts e: zeroes used/pa/ha/timestamp, drops any pending payload,
// and signals waiters so a timed wait observes used=false promptly. Caller
// must hold c.mu.
func (c *Cache) clear(e *entry) { e.clear() }

// sweep evicts every entry whose age exceeds EntryTTL. Caller must hold
// c.mu.
func (c *Cache) sweep(now time.Time) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.used && now.Sub(e.ts) > EntryTTL {
			e.clear()
		}
	}
}

// maybeSweep runs sweep if more than SweepInterval has elapsed since the
// last one, enforcing the "no two sweeps within 10s" invariant. Caller must
// hold c.mu.
func (c *Cache) maybeSweep(now time.Time) {
	if now.Sub(c.lastSweep) > SweepInterval {
		c.lastSweep = now
		c.sweep(now)
	}
}
