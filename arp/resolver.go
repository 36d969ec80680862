package arp

import (
	"sync"
	"time"

	"github.com/nilmux/lneto/ethernet"
)

// Resolve implements the lookup-or-query contract of the resolver design:
// it maps pa to a link address on netif, buffering payload (if non-nil) for
// transmission by the receive path when a reply arrives.
//
//   - FOUND: out is filled with the resolved address; payload is not
//     consumed, the caller may send it immediately.
//   - QUERY: the caller's payload (if any) has been buffered; a reply will
//     transmit it. The caller must drop it from its own transmit pipeline.
//   - ERROR: no resolution is possible; the caller keeps ownership of
//     payload and must free it itself.
func (h *Handler) Resolve(netif Netif, pa PA, out *HA, payload []byte) (Result, error) {
	c := h.cache
	now := time.Now()
	deadline := now.Add(waitTimeout)

	c.mu.Lock()
	e := c.find(pa)
	if e == nil {
		return h.resolveMiss(netif, pa, payload, now)
	}
	if !e.ha.IsZero() {
		*out = e.ha
		c.mu.Unlock()
		return ResultFound, nil
	}
	// Hit, unresolved: a query is already in flight. Re-broadcast to cover
	// the possibility the original request was lost, then wait.
	c.mu.Unlock()
	_, txErr := h.transmitRequest(netif, pa)

	c.mu.Lock()
	for {
		if !e.used {
			c.mu.Unlock()
			return ResultError, txErr
		}
		if !time.Now().Before(deadline) {
			c.clear(e)
			c.mu.Unlock()
			return ResultError, ErrTimeout
		}
		if !e.ha.IsZero() {
			*out = e.ha
			c.mu.Unlock()
			return ResultFound, nil
		}
		waitWithDeadline(e.waiter, deadline)
		// Loop: re-check state, tolerating spurious wakeups.
	}
}

// resolveMiss handles the Resolve miss path: allocate a fresh entry,
// optionally attach payload, broadcast a request. c.mu is held on entry and
// released before returning.
func (h *Handler) resolveMiss(netif Netif, pa PA, payload []byte, now time.Time) (Result, error) {
	c := h.cache
	e, err := c.insert(pa, HA{}, now)
	if err != nil {
		c.mu.Unlock()
		return ResultError, err
	}
	if payload != nil {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		e.pending = &pendingPayload{data: buf, netif: netif}
	}
	c.mu.Unlock()

	_, txErr := h.transmitRequest(netif, pa)
	return ResultQuery, txErr
}

// waitWithDeadline waits on cond, which must be bound to a locked mutex
// already held by the caller, until either Broadcast/Signal wakes it or
// deadline passes. sync.Cond.Wait has no built-in deadline, so a timer
// goroutine broadcasts once on expiry; it is the standard Go rendering of a
// bounded condition-variable wait.
func waitWithDeadline(cond *sync.Cond, deadline time.Time) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}
	timer := time.AfterFunc(remaining, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}

// transmitRequest builds and broadcasts an ARP REQUEST for pa over netif.
func (h *Handler) transmitRequest(netif Netif, pa PA) (int, error) {
	var buf [sizeHeaderv4]byte
	afrm, _ := NewFrame(buf[:])
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(OpRequest)
	senderHW, senderPA := afrm.Sender4()
	*senderHW = netif.Device.LinkAddr()
	*senderPA = netif.Unicast
	targetHW, targetPA := afrm.Target4()
	*targetHW = HA{}
	*targetPA = pa
	n, err := netif.Device.Transmit(uint16(ethernet.TypeARP), buf[:], BroadcastHA)
	if err != nil {
		return n, ErrTxFailed
	}
	return n, nil
}
