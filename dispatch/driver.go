package dispatch

import (
	"net/netip"

	"github.com/nilmux/lneto/internal"
)

// RegisterTAP opens a Linux TUN/TAP character device named name (optionally
// assigning it ip) and binds it to drivers under DeviceTAP.
func RegisterTAP(drivers *DriverRegistry, name string, ip netip.Prefix) error {
	tap, err := internal.NewTap(name, ip)
	if err != nil {
		return err
	}
	return drivers.Register(DeviceTAP, tap)
}

// RegisterBridge opens an AF_PACKET raw socket bound to the existing host
// interface named name and binds it to drivers under DeviceBridge. This is
// the "raw socket" collaborator the CLI test harness uses to attach to a
// real NIC as an alternative to a TAP.
func RegisterBridge(drivers *DriverRegistry, name string) error {
	br, err := internal.NewBridge(name)
	if err != nil {
		return err
	}
	return drivers.Register(DeviceBridge, br)
}

// RegisterRawSocket opens an mdlayher/raw AF_PACKET socket bound to the
// existing host interface named name and binds it to drivers under
// DeviceRawSocket: a second, library-backed alternative to RegisterBridge's
// hand-rolled syscall socket. Like RegisterBridge it works on Linux only;
// elsewhere it returns errors.ErrUnsupported.
func RegisterRawSocket(drivers *DriverRegistry, name string) error {
	rs, err := internal.NewRawSocket(name)
	if err != nil {
		return err
	}
	return drivers.Register(DeviceRawSocket, rs)
}
