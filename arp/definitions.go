package arp

import (
	"errors"
	"time"
)

//go:generate stringer -type=Operation,Result -linecomment -output stringers.go .

const (
	sizeHeader   = 8
	sizeHeaderv4 = sizeHeader + 6*2 + 4*2
	sizeHeaderv6 = sizeHeader + 6*2 + 16*2

	// CacheSize is the fixed number of slots in the ARP cache (N in the
	// resolver design). The table never grows past this; a miss against a
	// full table fails the resolver rather than evicting an LRU victim.
	CacheSize = 4096
	// EntryTTL is the maximum age of a cache entry before Sweep frees it.
	EntryTTL = 300 * time.Second
	// SweepInterval is the minimum spacing enforced between two sweeps.
	SweepInterval = 10 * time.Second
	// waitTimeout bounds how long Resolve waits on an in-flight query
	// before giving up and clearing the entry.
	waitTimeout = 1 * time.Second
)

// Error kinds from the resolver's error taxonomy. Resolve never returns
// these directly (its contract is the FOUND/QUERY/ERROR Result), but they
// are surfaced through the returned error for logging and tests, and
// ErrTxFailed is returned as-is from the receive handler (which drops
// ErrTableFull silently).
var (
	// ErrMalformedFrame means a received ARP packet failed length,
	// hardware-type, protocol-type, or length-field validation.
	ErrMalformedFrame = errors.New("arp: malformed frame")
	// ErrTableFull means the cache had no free slot for a new entry.
	ErrTableFull = errors.New("arp: cache table full")
	// ErrTimeout means a Resolve wait exceeded waitTimeout with no reply.
	ErrTimeout = errors.New("arp: resolve timeout")
	// ErrTxFailed means the underlying device transmit returned an error.
	ErrTxFailed = errors.New("arp: transmit failed")
	// ErrAllocationFailed means a pending payload buffer could not be
	// attached to a newly created entry.
	ErrAllocationFailed = errors.New("arp: payload allocation failed")
)

// Operation is the ARP header operation field.
type Operation uint16

const (
	OpRequest Operation = 1 // request
	OpReply   Operation = 2 // reply
)

// Result is the outcome of a Resolve call. The integer encoding is part of
// the external contract: FOUND=1, QUERY=0, ERROR=-1.
type Result int8

const (
	ResultError Result = -1 // ERROR
	ResultQuery Result = 0  // QUERY
	ResultFound Result = 1  // FOUND
)
