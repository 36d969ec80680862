package arp

import (
	"log/slog"
	"time"

	"github.com/nilmux/lneto"
	"github.com/nilmux/lneto/ethernet"
	"github.com/nilmux/lneto/internal"
)

// HandlerConfig configures a [Handler]. Both fields default to the
// Ethernet/IPv4 values used throughout this module when left zero.
type HandlerConfig struct {
	// HardwareType is the ARP hardware-type field written into the REPLY
	// frames this handler generates (1 = Ethernet). Inbound frames are always
	// validated against, and outgoing REQUESTs always built with, Ethernet.
	HardwareType uint16
	// ProtocolType is the ARP protocol-type field written into the REPLY
	// frames this handler generates (0x0800 = IPv4). Inbound frames are always
	// validated against, and outgoing REQUESTs always built with, IPv4.
	ProtocolType ethernet.Type
}

// Handler is the process-wide ARP service: it owns the cache and exposes
// both the upward resolver API ([Handler.Resolve]) and the inbound receive
// path ([Handler.Recv]) that the dispatch fabric's protocol registry
// invokes for EtherType 0x0806. It is an explicit value constructed by
// [NewHandler], not package-level state, per the design's "no global
// process state" re-architecture.
type Handler struct {
	cache        *Cache
	hardwareType uint16
	protocolType ethernet.Type
}

// NewHandler initializes the cache and returns a ready-to-register Handler.
// This is the Go rendering of arp_init: it replaces the registration of a
// package-level protocol handler with returning a value whose Recv method
// the caller registers into the dispatch fabric itself.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.HardwareType == 0 {
		cfg.HardwareType = 1
	}
	if cfg.ProtocolType == 0 {
		cfg.ProtocolType = ethernet.TypeIPv4
	}
	return &Handler{
		cache:        NewCache(),
		hardwareType: cfg.HardwareType,
		protocolType: cfg.ProtocolType,
	}, nil
}

// Cache returns the handler's underlying cache, mainly for tests and
// diagnostics.
func (h *Handler) Cache() *Cache { return h.cache }

// Recv is the inbound receive handler: parse, throttled sweep, merge the
// sender's binding, and — for requests targeted at our local unicast —
// generate a reply. netif is the interface the frame arrived on: its Unicast
// address decides whether the frame targets us, and its Device carries the
// reply.
func (h *Handler) Recv(netif Netif, raw []byte) error {
	afrm, err := NewFrame(raw)
	if err != nil {
		return nil // Parse failure: drop silently.
	}
	var vld lneto.Validator
	afrm.ValidateIPv4Ethernet(&vld)
	if vld.HasError() {
		return nil // MalformedFrame: drop silently.
	}

	senderHW, senderPA := afrm.Sender4()
	_, targetPA := afrm.Target4()
	spa := PA(*senderPA)
	sha := HA(*senderHW)
	op := afrm.Operation()

	now := time.Now()
	h.cache.mu.Lock()
	h.cache.maybeSweep(now)
	_, pending, merged := h.cache.update(spa, sha, now)
	h.cache.mu.Unlock()

	if pending != nil {
		h.drainPending(pending, netif, sha)
	}

	if PA(*targetPA) != netif.Unicast {
		return nil // Not targeting our unicast address.
	}

	if !merged {
		h.cache.mu.Lock()
		// Re-check under this second acquisition: update's lock was
		// released above, so another Recv for the same previously-unseen
		// spa could have inserted it in the meantime. Without this check,
		// both would allocate separate entries for the same address.
		_, _, merged = h.cache.update(spa, sha, now)
		var insertErr error
		if !merged {
			_, insertErr = h.cache.insert(spa, sha, now)
		}
		h.cache.mu.Unlock()
		if insertErr != nil && insertErr != ErrTableFull {
			return insertErr
		}
		// TableFull on this insert-after-not-merged path is dropped
		// silently: the binding simply isn't cached, per spec §9's open
		// question resolved in DESIGN.md.
	}

	if op == OpRequest {
		return h.sendReply(netif, spa, sha)
	}
	return nil
}

// drainPending transmits a buffered payload to the newly-learned address
// replyHA. If the reply arrived on a different device than the one that
// originated the payload, the payload's own device is used for
// transmission (its egress path determines the correct source link
// address) and a diagnostic warning is emitted instead of silently
// retargeting.
func (h *Handler) drainPending(p *pendingPayload, replyNetif Netif, replyHA HA) {
	txNetif := p.netif
	if txNetif.Device != replyNetif.Device {
		slog.Warn("arp: pending payload drained via originating device, not reply device",
			internal.SlogAddr4("origin", (*[4]byte)(&txNetif.Unicast)),
			internal.SlogAddr4("reply", (*[4]byte)(&replyNetif.Unicast)),
			internal.SlogAddr6("ha", (*[6]byte)(&replyHA)))
	}
	_, err := txNetif.Device.Transmit(uint16(ethernet.TypeIPv4), p.data, replyHA)
	if err != nil {
		slog.Error("arp: pending payload transmit failed", slog.String("err", err.Error()))
	}
}

// sendReply answers a REQUEST targeting our unicast address with a REPLY
// unicast back to the requester.
func (h *Handler) sendReply(netif Netif, requesterPA PA, requesterHA HA) error {
	var buf [sizeHeaderv4]byte
	afrm, _ := NewFrame(buf[:])
	afrm.SetHardware(h.hardwareType, 6)
	afrm.SetProtocol(h.protocolType, 4)
	afrm.SetOperation(OpReply)
	senderHW, senderPA := afrm.Sender4()
	*senderHW = netif.Device.LinkAddr()
	*senderPA = netif.Unicast
	targetHW, targetPA := afrm.Target4()
	*targetHW = requesterHA
	*targetPA = requesterPA
	_, err := netif.Device.Transmit(uint16(ethernet.TypeARP), buf[:], requesterHA)
	if err != nil {
		return ErrTxFailed
	}
	return nil
}
