package dispatch

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nilmux/lneto/arp"
	"github.com/nilmux/lneto/ethernet"
	"github.com/stretchr/testify/require"
)

// fakeLink is a minimal in-memory LinkDevice for registry/routing tests.
type fakeLink struct {
	mu      sync.Mutex
	hw      [6]byte
	mtu     int
	written [][]byte
	closed  bool
}

func (f *fakeLink) Read(b []byte) (int, error) { return 0, nil }
func (f *fakeLink) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), b...)
	f.written = append(f.written, cp)
	return len(b), nil
}
func (f *fakeLink) Close() error                       { f.closed = true; return nil }
func (f *fakeLink) MTU() (int, error)                  { return f.mtu, nil }
func (f *fakeLink) HardwareAddress6() ([6]byte, error) { return f.hw, nil }

func TestDriverRegistryRegisterAndFreeze(t *testing.T) {
	drivers := NewDriverRegistry()
	link := &fakeLink{hw: [6]byte{1, 2, 3, 4, 5, 6}, mtu: 1500}
	require.NoError(t, drivers.Register(DeviceTAP, link))
	require.Error(t, drivers.Register(DeviceTAP, link), "duplicate type code must be rejected")

	protocols := NewProtocols()
	_, err := NewDevice("tap0", DeviceTAP, drivers, protocols, arp.PA{10, 0, 0, 1})
	require.NoError(t, err)

	err = drivers.Register(DeviceBridge, link)
	require.Error(t, err, "registry must be frozen once a Device has been built")
}

func TestProtocolsRouteByEtherType(t *testing.T) {
	drivers := NewDriverRegistry()
	link := &fakeLink{hw: [6]byte{0xc0, 0xff, 0xee, 0, 0, 1}, mtu: 1500}
	require.NoError(t, drivers.Register(DeviceTAP, link))
	protocols := NewProtocols()

	var gotPayload []byte
	require.NoError(t, protocols.Register(ethernet.TypeIPv4, func(netif Netif, payload []byte) error {
		gotPayload = payload
		return nil
	}))

	dev, err := NewDevice("tap0", DeviceTAP, drivers, protocols, arp.PA{10, 0, 0, 1})
	require.NoError(t, err)

	frame := make([]byte, 14+4)
	efrm, err := ethernet.NewFrame(frame)
	require.NoError(t, err)
	*efrm.DestinationHardwareAddr() = dev.LinkAddr()
	*efrm.SourceHardwareAddr() = [6]byte{9, 9, 9, 9, 9, 9}
	efrm.SetEtherType(ethernet.TypeIPv4)
	copy(frame[14:], []byte{0xde, 0xad, 0xbe, 0xef})

	require.NoError(t, dev.Demux(frame))
	require.True(t, cmp.Equal(gotPayload, []byte{0xde, 0xad, 0xbe, 0xef}))
}

func TestProtocolsUnregisteredEtherTypeIsDropped(t *testing.T) {
	drivers := NewDriverRegistry()
	link := &fakeLink{hw: [6]byte{0xc0, 0xff, 0xee, 0, 0, 1}, mtu: 1500}
	require.NoError(t, drivers.Register(DeviceTAP, link))
	protocols := NewProtocols()
	dev, err := NewDevice("tap0", DeviceTAP, drivers, protocols, arp.PA{10, 0, 0, 1})
	require.NoError(t, err)

	frame := make([]byte, 14)
	efrm, _ := ethernet.NewFrame(frame)
	*efrm.DestinationHardwareAddr() = dev.LinkAddr()
	efrm.SetEtherType(ethernet.Type(0x9999))

	require.NoError(t, dev.Demux(frame), "an unroutable ethertype must be dropped, not errored")
}

func TestDeviceTransmitWritesEthernetHeader(t *testing.T) {
	drivers := NewDriverRegistry()
	link := &fakeLink{hw: [6]byte{0xc0, 0xff, 0xee, 0, 0, 1}, mtu: 1500}
	require.NoError(t, drivers.Register(DeviceTAP, link))
	protocols := NewProtocols()
	dev, err := NewDevice("tap0", DeviceTAP, drivers, protocols, arp.PA{10, 0, 0, 1})
	require.NoError(t, err)

	dst := arp.HA{1, 1, 1, 1, 1, 1}
	n, err := dev.Transmit(uint16(ethernet.TypeARP), []byte{1, 2, 3}, dst)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Len(t, link.written, 1)

	efrm, err := ethernet.NewFrame(link.written[0])
	require.NoError(t, err)
	require.Equal(t, [6]byte(dst), *efrm.DestinationHardwareAddr())
	require.Equal(t, dev.LinkAddr(), arp.HA(*efrm.SourceHardwareAddr()))
	require.Equal(t, ethernet.TypeARP, efrm.EtherTypeOrSize())
}

func TestRegisterARPThenColdResolveTransmitsRequest(t *testing.T) {
	drivers := NewDriverRegistry()
	link := &fakeLink{hw: [6]byte{0xc0, 0xff, 0xee, 0, 0, 1}, mtu: 1500}
	require.NoError(t, drivers.Register(DeviceTAP, link))
	protocols := NewProtocols()

	handler, err := arp.NewHandler(arp.HandlerConfig{})
	require.NoError(t, err)
	require.NoError(t, RegisterARP(protocols, handler))

	dev, err := NewDevice("tap0", DeviceTAP, drivers, protocols, arp.PA{10, 0, 0, 1})
	require.NoError(t, err)

	var out arp.HA
	res, err := Resolve(handler, dev.GetNetif(), arp.PA{10, 0, 0, 2}, &out, nil)
	require.NoError(t, err)
	require.Equal(t, arp.ResultQuery, res)
	require.Len(t, link.written, 1, "a cold resolve must transmit one ARP request")
}
