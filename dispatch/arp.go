package dispatch

import (
	"github.com/nilmux/lneto/arp"
	"github.com/nilmux/lneto/ethernet"
)

// *Device satisfies arp.Device without arp importing this package:
// Device.Transmit and Device.LinkAddr use arp.HA, exactly as arp.Device
// declares them, so Device itself is handed to arp.Netif directly at every
// call site below.
var _ arp.Device = (*Device)(nil)

// RegisterARP wires an arp.Handler into a Protocols registry under
// EtherType 0x0806. Inbound ARP frames delivered by Device.Demux are routed
// here, converted to an arp.Netif using the dispatch Netif's Dev/Unicast
// pair, and handed to handler.Recv.
func RegisterARP(protocols *Protocols, handler *arp.Handler) error {
	return protocols.Register(ethernet.TypeARP, func(netif Netif, payload []byte) error {
		return handler.Recv(toARPNetif(netif), payload)
	})
}

// Resolve is a convenience wrapper around handler.Resolve that builds the
// arp.Netif from a dispatch.Netif, for callers (e.g. cmd/arpcli) that only
// hold a dispatch.Netif.
func Resolve(handler *arp.Handler, netif Netif, pa arp.PA, out *arp.HA, payload []byte) (arp.Result, error) {
	return handler.Resolve(toARPNetif(netif), pa, out, payload)
}

func toARPNetif(netif Netif) arp.Netif {
	return arp.Netif{Device: netif.Dev, Unicast: netif.Unicast}
}
