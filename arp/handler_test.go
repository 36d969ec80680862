package arp

import (
	"testing"
	"time"
)

func buildRequest(t *testing.T, senderHA HA, senderPA PA, targetPA PA) []byte {
	t.Helper()
	var buf [sizeHeaderv4]byte
	afrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(0x0800, 4)
	afrm.SetOperation(OpRequest)
	sHW, sPA := afrm.Sender4()
	*sHW = senderHA
	*sPA = senderPA
	tHW, tPA := afrm.Target4()
	*tHW = HA{}
	*tPA = targetPA
	return buf[:]
}

func TestRecvInboundRequestForUs(t *testing.T) {
	h, err := NewHandler(HandlerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	dev := newFakeDevice(HA{2, 0, 0, 0, 0, 1})
	netif := Netif{Device: dev, Unicast: PA{10, 0, 0, 1}}

	requesterHA := HA{2, 0, 0, 0, 0, 7}
	requesterPA := PA{10, 0, 0, 7}
	req := buildRequest(t, requesterHA, requesterPA, netif.Unicast)

	if err := h.Recv(netif, req); err != nil {
		t.Fatal(err)
	}

	e := h.cache.find(requesterPA)
	if e == nil || e.ha != requesterHA {
		t.Fatal("expected requester's binding to be cached")
	}

	sent, ok := dev.lastSent()
	if !ok {
		t.Fatal("expected an ARP REPLY to be transmitted")
	}
	if sent.dst != requesterHA {
		t.Fatal("reply must be unicast to the requester")
	}
	afrm, err := NewFrame(sent.payload)
	if err != nil {
		t.Fatal(err)
	}
	if afrm.Operation() != OpReply {
		t.Fatal("expected an OpReply frame")
	}
	sHW, sPA := afrm.Sender4()
	_, tPA := afrm.Target4()
	if *sHW != netif.Device.LinkAddr() || *sPA != netif.Unicast {
		t.Fatal("reply sender fields must be our own address")
	}
	if *tPA != requesterPA {
		t.Fatal("reply target proto address must echo the requester's")
	}
}

func TestRecvInboundReplyNotForUs(t *testing.T) {
	h, err := NewHandler(HandlerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	dev := newFakeDevice(HA{2, 0, 0, 0, 0, 1})
	netif := Netif{Device: dev, Unicast: PA{10, 0, 0, 1}}

	other := PA{10, 0, 0, 42}
	sender := PA{10, 0, 0, 8}
	senderHA := HA{2, 0, 0, 0, 0, 8}
	reply := buildReply(t, other, senderHA, sender)

	if err := h.Recv(netif, reply); err != nil {
		t.Fatal(err)
	}
	if e := h.cache.find(sender); e != nil {
		t.Fatal("no prior entry: reply not addressed to us must not create one")
	}

	// Now seed a prior entry and re-deliver; it should be refreshed.
	h.cache.mu.Lock()
	_, err = h.cache.insert(sender, HA{}, time.Now())
	h.cache.mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Recv(netif, reply); err != nil {
		t.Fatal(err)
	}
	e := h.cache.find(sender)
	if e == nil || e.ha != senderHA {
		t.Fatal("existing entry must be refreshed even when reply isn't addressed to us")
	}
}

func TestRecvSweepExpiry(t *testing.T) {
	h, err := NewHandler(HandlerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	dev := newFakeDevice(HA{2, 0, 0, 0, 0, 1})
	netif := Netif{Device: dev, Unicast: PA{10, 0, 0, 1}}

	stale := PA{10, 0, 0, 55}
	h.cache.mu.Lock()
	_, err = h.cache.insert(stale, HA{9}, time.Now().Add(-301*time.Second))
	h.cache.mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	// The request targets us, so Recv inserts the requester's binding into
	// the first free slot, which is the one the sweep just freed; check the
	// stale address, not the slot.
	req := buildRequest(t, HA{2, 0, 0, 0, 0, 9}, PA{10, 0, 0, 9}, netif.Unicast)
	if err := h.Recv(netif, req); err != nil {
		t.Fatal(err)
	}
	if h.cache.find(stale) != nil {
		t.Fatal("expected stale entry to be swept during Recv")
	}
}
