//go:build linux && !baremetal

package internal

import (
	"errors"
	"net"
	"syscall"

	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/raw"
)

var errShortEthernetFrame = errors.New("internal: frame shorter than an ethernet header")

// RawSocket is an AF_PACKET link bound to an existing host interface,
// backed by github.com/mdlayher/raw instead of Bridge's hand-rolled
// syscall.Socket/Bind pair. It exercises the same raw-Ethernet-socket role
// as Bridge, through the portable mdlayher/raw implementation, grounded in
// the same raw.ListenPacket(iface, socktype, proto) call other ARP/ethernet
// tooling in this ecosystem uses against ETH_P_ARP/ETH_P_ALL sockets.
type RawSocket struct {
	conn  net.PacketConn
	iface *net.Interface
}

// NewRawSocket opens an AF_PACKET socket listening for all ethertypes on
// the host interface named name.
func NewRawSocket(name string) (*RawSocket, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	conn, err := raw.ListenPacket(ifi, syscall.SOCK_RAW, int(htons(syscall.ETH_P_ALL)))
	if err != nil {
		return nil, err
	}
	return &RawSocket{conn: conn, iface: ifi}, nil
}

func (r *RawSocket) Read(b []byte) (int, error) {
	n, _, err := r.conn.ReadFrom(b)
	return n, err
}

// Write sends b, an already-framed ethernet packet, out the raw socket. It
// unmarshals b with mdlayher/ethernet to recover the destination hardware
// address, since mdlayher/raw requires an explicit link-layer Addr for
// WriteTo even though that address is already embedded in the frame itself.
func (r *RawSocket) Write(b []byte) (int, error) {
	if len(b) < 14 {
		return 0, errShortEthernetFrame
	}
	var f ethernet.Frame
	if err := f.UnmarshalBinary(b); err != nil {
		return 0, err
	}
	dst := &raw.Addr{HardwareAddr: f.DestinationMAC}
	return r.conn.WriteTo(b, dst)
}

func (r *RawSocket) Close() error {
	return r.conn.Close()
}

func (r *RawSocket) MTU() (int, error) {
	return r.iface.MTU, nil
}

func (r *RawSocket) HardwareAddress6() (hw [6]byte, err error) {
	copy(hw[:], r.iface.HardwareAddr)
	return hw, nil
}
