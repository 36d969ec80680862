package dispatch

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nilmux/lneto"
	"github.com/nilmux/lneto/arp"
	"github.com/nilmux/lneto/ethernet"
)

// Device is a per-instance record pairing one link driver with the shared
// driver/protocol registries, matching the teacher's StackEthernet (one
// stack instance sharing read-only-after-init handler registries). It holds
// exactly one Netif, set by NewDevice; it has no flags field and no way to
// attach further netifs after construction.
type Device struct {
	name    string
	typ     DeviceType
	drivers *DriverRegistry
	proto   *Protocols
	vt      driverVTable
	hwaddr  arp.HA
	mtu     int
	netif   Netif
}

// Netif pairs a Device with the IPv4 unicast address it answers to.
// dispatch/arp.go converts it to an arp.Netif at the arp.Handler call site.
type Netif struct {
	Dev     *Device
	Unicast arp.PA
}

// NewDevice builds a Device from a registered driver type and attaches it
// to the given driver and protocol registries. Building a Device freezes
// the driver registry: no further DriverRegistry.Register calls are
// permitted once a Device has been built. The protocol registry freezes
// separately, on the first Demux.
func NewDevice(name string, typ DeviceType, drivers *DriverRegistry, protocols *Protocols, unicast arp.PA) (*Device, error) {
	vt, ok := drivers.get(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownDriver, typ)
	}
	hwaddrRaw, err := vt.hwaddr()
	if err != nil {
		return nil, fmt.Errorf("dispatch: reading hwaddr for %s: %w", name, err)
	}
	hwaddr := arp.HA(hwaddrRaw)
	mtu, err := vt.mtu()
	if err != nil {
		return nil, fmt.Errorf("dispatch: reading mtu for %s: %w", name, err)
	}
	d := &Device{
		name:    name,
		typ:     typ,
		drivers: drivers,
		proto:   protocols,
		vt:      vt,
		hwaddr:  hwaddr,
		mtu:     mtu,
	}
	d.netif = Netif{Dev: d, Unicast: unicast}
	return d, nil
}

// Name returns the device's configured name, e.g. "tap0".
func (d *Device) Name() string { return d.name }

// LinkAddr returns the device's link-layer (MAC) address. It satisfies
// arp.Device's LinkAddr method.
func (d *Device) LinkAddr() arp.HA { return d.hwaddr }

// MTU returns the maximum ethernet payload size reported by the driver.
func (d *Device) MTU() int { return d.mtu }

// GetNetif returns the Netif this device answers inbound ARP/IPv4 traffic
// for: its attached link combined with its configured IPv4 unicast address.
func (d *Device) GetNetif() Netif { return d.netif }

// Transmit builds a 14-octet ethernet header in front of payload and writes
// the resulting frame to the underlying link driver. It satisfies
// arp.Device's Transmit method (the uint16 etherType argument is the
// ethernet.Type numeric value, as arp.Device declares it).
func (d *Device) Transmit(etherType uint16, payload []byte, dst arp.HA) (int, error) {
	const headerLen = 14
	if len(payload) > d.mtu {
		return 0, errors.New("dispatch: payload exceeds device MTU")
	}
	buf := make([]byte, headerLen+len(payload))
	efrm, err := ethernet.NewFrame(buf)
	if err != nil {
		return 0, err
	}
	*efrm.DestinationHardwareAddr() = [6]byte(dst)
	*efrm.SourceHardwareAddr() = [6]byte(d.hwaddr)
	efrm.SetEtherType(ethernet.Type(etherType))
	copy(buf[headerLen:], payload)
	n, err := d.vt.write(buf)
	if n < headerLen {
		return 0, err
	}
	return n - headerLen, err
}

// Demux reads the ethernet header off of raw, validates it is addressed to
// this device (unicast match or broadcast), and routes the payload to the
// protocol handler registered for the frame's EtherType. A frame whose
// EtherType has no registered handler is dropped with a debug-level log
// line and a nil return, matching the teacher's StackEthernet.Demux drop
// path.
func (d *Device) Demux(raw []byte) error {
	efrm, err := ethernet.NewFrame(raw)
	if err != nil {
		return err
	}
	dst := efrm.DestinationHardwareAddr()
	if !efrm.IsBroadcast() && arp.HA(*dst) != d.hwaddr {
		return ErrLinkAddrMismatch
	}
	var vld lneto.Validator
	efrm.ValidateSize(&vld)
	if vld.HasError() {
		return vld.ErrPop()
	}
	etype := efrm.EtherTypeOrSize()
	h, ok := d.proto.get(etype)
	if !ok {
		slog.Debug("dispatch: no route for ethertype", slog.String("device", d.name), slog.String("ethertype", etype.String()))
		return nil
	}
	return h(d.netif, efrm.Payload())
}

// ReadFrame reads one raw ethernet frame off the underlying link into buf.
func (d *Device) ReadFrame(buf []byte) (int, error) {
	return d.vt.read(buf)
}

// Close releases the underlying link driver's resources.
func (d *Device) Close() error {
	return d.vt.close()
}
