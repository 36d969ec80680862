// Package dispatch implements the driver/protocol fabric that feeds frames
// into protocol handlers such as the ARP resolver. It plays the role the
// teacher repo gives to its internet package (StackEthernet, the
// node/handlers registry), renamed to match this project's vocabulary:
// a DriverRegistry maps a device-type-code to a link driver vtable, a
// Protocols registry maps an EtherType to an inbound handler, and a Device
// ties one concrete link (TAP, AF_PACKET bridge) to both registries.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nilmux/lneto/ethernet"
)

var (
	errDriverRegistered   = errors.New("dispatch: driver type already registered")
	errProtoRegistered    = errors.New("dispatch: protocol already registered")
	errUnknownDriver      = errors.New("dispatch: unknown device-type code")
	errRegistriesFrozen   = errors.New("dispatch: registry is read-only once it has been used")
	ErrNoRoute            = errors.New("dispatch: no protocol handler for ethertype")
	ErrLinkAddrMismatch   = errors.New("dispatch: frame not addressed to this device")
)

// DeviceType identifies a kind of link driver, e.g. DeviceTAP or DeviceBridge.
type DeviceType uint8

const (
	DeviceTAP DeviceType = iota + 1
	DeviceBridge
	DeviceRawSocket
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTAP:
		return "tap"
	case DeviceBridge:
		return "bridge"
	case DeviceRawSocket:
		return "rawsocket"
	default:
		return "unknown"
	}
}

// LinkDevice is the minimal read/write/close/MTU/hwaddr surface a link
// driver must provide. internal.Tap, internal.Bridge and internal.RawSocket
// all satisfy it without adaptation.
type LinkDevice interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
	MTU() (int, error)
	HardwareAddress6() ([6]byte, error)
}

// driverVTable holds the function-pointer set devirtualizing a LinkDevice's
// methods, following the teacher's node/cbnode pattern of storing bound
// method values instead of an interface at the hot path.
type driverVTable struct {
	read    func([]byte) (int, error)
	write   func([]byte) (int, error)
	close   func() error
	mtu     func() (int, error)
	hwaddr  func() ([6]byte, error)
}

func vtableFromLinkDevice(ld LinkDevice) driverVTable {
	return driverVTable{
		read:   ld.Read,
		write:  ld.Write,
		close:  ld.Close,
		mtu:    ld.MTU,
		hwaddr: ld.HardwareAddress6,
	}
}

// DriverRegistry maps a device-type-code to the LinkDevice it was
// constructed from. Entries are added only at program start via Register;
// callers must treat the registry as read-only once device construction
// (NewDevice) begins, matching the dispatch fabric's "populated once,
// read-only thereafter" contract.
type DriverRegistry struct {
	mu      sync.Mutex
	entries map[DeviceType]driverVTable
	frozen  bool
}

// NewDriverRegistry returns an empty, mutable driver registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{entries: make(map[DeviceType]driverVTable)}
}

// Register binds a device-type-code to a concrete LinkDevice. It returns an
// error if the registry has already produced a Device (frozen) or if the
// type code is already bound.
func (r *DriverRegistry) Register(typ DeviceType, ld LinkDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return errRegistriesFrozen
	}
	if _, ok := r.entries[typ]; ok {
		return fmt.Errorf("%w: %s", errDriverRegistered, typ)
	}
	r.entries[typ] = vtableFromLinkDevice(ld)
	return nil
}

func (r *DriverRegistry) get(typ DeviceType) (driverVTable, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	vt, ok := r.entries[typ]
	return vt, ok
}

// ProtocolHandler receives the inbound payload of a frame matching one
// registered EtherType, together with the Netif the frame arrived on.
type ProtocolHandler func(netif Netif, payload []byte) error

// Protocols maps an EtherType to an inbound handler closure. Like
// DriverRegistry it is meant to be populated once at program start and
// read many times thereafter.
type Protocols struct {
	mu      sync.Mutex
	entries map[ethernet.Type]ProtocolHandler
	frozen  bool
}

// NewProtocols returns an empty, mutable protocol registry.
func NewProtocols() *Protocols {
	return &Protocols{entries: make(map[ethernet.Type]ProtocolHandler)}
}

// Register binds an EtherType to an inbound handler. It returns an error if
// the registry is frozen (a Demux has already run) or the EtherType is
// already bound.
func (p *Protocols) Register(etherType ethernet.Type, h ProtocolHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frozen {
		return errRegistriesFrozen
	}
	if _, ok := p.entries[etherType]; ok {
		return fmt.Errorf("%w: %s", errProtoRegistered, etherType)
	}
	p.entries[etherType] = h
	return nil
}

func (p *Protocols) get(etherType ethernet.Type) (ProtocolHandler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = true
	h, ok := p.entries[etherType]
	return h, ok
}
