package arp

import (
	"bytes"
	"testing"

	"github.com/nilmux/lneto"
	"github.com/nilmux/lneto/ethernet"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf [sizeHeaderv4]byte
	afrm, err := NewFrame(buf[:])
	if err != nil {
		t.Fatal(err)
	}
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(OpRequest)
	senderHW, senderPA := afrm.Sender4()
	*senderHW = HA{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	*senderPA = PA{10, 0, 0, 1}
	targetHW, targetPA := afrm.Target4()
	*targetHW = HA{}
	*targetPA = PA{10, 0, 0, 2}

	got := append([]byte(nil), buf[:]...)
	afrm2, err := NewFrame(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(afrm2.RawData(), afrm.RawData()) {
		t.Fatal("decode(encode(x)) != x")
	}
	htype, hlen := afrm2.Hardware()
	if htype != 1 || hlen != 6 {
		t.Fatalf("hardware mismatch: %d %d", htype, hlen)
	}
	ptype, plen := afrm2.Protocol()
	if ptype != ethernet.TypeIPv4 || plen != 4 {
		t.Fatalf("protocol mismatch: %v %d", ptype, plen)
	}
	if afrm2.Operation() != OpRequest {
		t.Fatal("operation mismatch")
	}
}

func TestFrameValidateIPv4EthernetBoundary(t *testing.T) {
	// A 27-octet payload is one short of the minimum 28-octet ARP message.
	short := make([]byte, sizeHeaderv4-1)
	if _, err := NewFrame(short); err == nil {
		t.Fatal("expected NewFrame to reject a 27-octet buffer")
	}

	// A 29-octet buffer is valid; the codec only looks at the first 28.
	long := make([]byte, sizeHeaderv4+1)
	afrm, err := NewFrame(long)
	if err != nil {
		t.Fatal(err)
	}
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	var vld lneto.Validator
	afrm.ValidateIPv4Ethernet(&vld)
	if vld.HasError() {
		t.Fatalf("unexpected error on well-formed over-long frame: %s", vld.Err())
	}
}

func TestFrameValidateMalformed(t *testing.T) {
	buf := make([]byte, sizeHeaderv4)
	afrm, err := NewFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		mut  func()
	}{
		{"bad hardware type", func() { afrm.SetHardware(2, 6); afrm.SetProtocol(ethernet.TypeIPv4, 4) }},
		{"bad protocol type", func() { afrm.SetHardware(1, 6); afrm.SetProtocol(ethernet.TypeIPv6, 4) }},
		{"bad hardware len", func() { afrm.SetHardware(1, 4); afrm.SetProtocol(ethernet.TypeIPv4, 4) }},
		{"bad protocol len", func() { afrm.SetHardware(1, 6); afrm.SetProtocol(ethernet.TypeIPv4, 6) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.mut()
			var vld lneto.Validator
			afrm.ValidateIPv4Ethernet(&vld)
			if !vld.HasError() {
				t.Fatal("expected ErrMalformedFrame")
			}
		})
	}
}
