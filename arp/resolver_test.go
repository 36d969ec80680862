package arp

import (
	"sync"
	"testing"
	"time"
)

func TestResolveColdThenReplyDeliversPayload(t *testing.T) {
	h, err := NewHandler(HandlerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	devD := newFakeDevice(HA{2, 0, 0, 0, 0, 1})
	netifD := Netif{Device: devD, Unicast: PA{10, 0, 0, 1}}
	target := PA{10, 0, 0, 2}

	var out HA
	res, err := h.Resolve(netifD, target, &out, []byte{0xDE, 0xAD})
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultQuery {
		t.Fatalf("expected QUERY, got %s", res)
	}
	sent, ok := devD.lastSent()
	if !ok {
		t.Fatal("expected a broadcast REQUEST to be transmitted")
	}
	if sent.dst != BroadcastHA {
		t.Fatal("cold resolve must broadcast the request")
	}
	afrm, err := NewFrame(sent.payload)
	if err != nil {
		t.Fatal(err)
	}
	_, spa := afrm.Sender4()
	_, tpa := afrm.Target4()
	if *spa != netifD.Unicast || *tpa != target {
		t.Fatal("request did not carry expected spa/tpa")
	}

	// Deliver a REPLY for the query.
	replyHA := HA{2, 0, 0, 0, 0, 2}
	reply := buildReply(t, netifD.Unicast, replyHA, target)
	if err := h.Recv(netifD, reply); err != nil {
		t.Fatal(err)
	}

	e := h.cache.find(target)
	if e == nil || e.ha != replyHA || e.pending != nil {
		t.Fatal("expected entry resolved with no pending payload left")
	}
	last, ok := devD.lastSent()
	if !ok || last.etherType != uint16(0x0800) || last.dst != replyHA {
		t.Fatal("expected buffered payload to be transmitted to the resolved address")
	}
	if string(last.payload) != "\xde\xad" {
		t.Fatalf("unexpected drained payload: %x", last.payload)
	}
}

func TestResolveHotHit(t *testing.T) {
	h, err := NewHandler(HandlerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	devD := newFakeDevice(HA{2, 0, 0, 0, 0, 1})
	netifD := Netif{Device: devD, Unicast: PA{10, 0, 0, 1}}
	target := PA{10, 0, 0, 2}
	replyHA := HA{2, 0, 0, 0, 0, 2}

	h.cache.mu.Lock()
	_, err = h.cache.insert(target, replyHA, time.Now())
	h.cache.mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	var out HA
	res, err := h.Resolve(netifD, target, &out, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultFound {
		t.Fatalf("expected FOUND, got %s", res)
	}
	if out != replyHA {
		t.Fatalf("expected out=%x, got %x", replyHA, out)
	}
	if devD.count() != 0 {
		t.Fatal("hot hit must not transmit anything")
	}
}

func TestResolveTimeout(t *testing.T) {
	h, err := NewHandler(HandlerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	devD := newFakeDevice(HA{2, 0, 0, 0, 0, 1})
	netifD := Netif{Device: devD, Unicast: PA{10, 0, 0, 1}}
	target := PA{10, 0, 0, 99}

	var out1 HA
	res, err := h.Resolve(netifD, target, &out1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultQuery {
		t.Fatalf("expected QUERY, got %s", res)
	}

	var wg sync.WaitGroup
	var out2 HA
	var res2 Result
	var err2 error
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		res2, err2 = h.Resolve(netifD, target, &out2, nil)
	}()
	wg.Wait()

	if res2 != ResultError {
		t.Fatalf("expected ERROR on timeout, got %s (err=%v)", res2, err2)
	}
	if e := h.cache.find(target); e != nil {
		t.Fatal("expected entry to be cleared after timeout")
	}

	// A subsequent resolve should start a fresh query.
	var out3 HA
	res3, err := h.Resolve(netifD, target, &out3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res3 != ResultQuery {
		t.Fatalf("expected QUERY again after timeout, got %s", res3)
	}
}

// buildReply constructs a raw ARP REPLY frame with the given sender and
// target addresses for use as test input to Handler.Recv.
func buildReply(t *testing.T, targetPA PA, senderHA HA, senderPA PA) []byte {
	t.Helper()
	var buf [sizeHeaderv4]byte
	afrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(0x0800, 4)
	afrm.SetOperation(OpReply)
	sHW, sPA := afrm.Sender4()
	*sHW = senderHA
	*sPA = senderPA
	tHW, tPA := afrm.Target4()
	*tHW = HA{}
	*tPA = targetPA
	return buf[:]
}
