package dispatch

import (
	"errors"

	"github.com/nilmux/lneto"
	"github.com/nilmux/lneto/ethernet"
	"github.com/nilmux/lneto/ipv4"
)

var errIPv4NotForUs = errors.New("dispatch: ipv4 packet not addressed to this netif")

// IPv4Sink receives the payload of a validated, unwrapped IPv4 packet
// addressed to the local unicast address. A nil sink is a legal no-op,
// matching this module's collaborator-only treatment of IPv4 (no
// TCP/UDP/ICMP transport layer is implemented here).
type IPv4Sink func(netif Netif, protocol byte, payload []byte) error

// RegisterIPv4 wires a minimal IPv4 collaborator into a Protocols registry
// under EtherType 0x0800. It validates the IPv4 header (size fields,
// header checksum), drops packets not addressed to the netif's unicast
// address, and forwards whatever remains past the header to sink. Its only
// purpose is to prove the dispatch fabric's "route inbound frames by
// EtherType" contract end to end; it implements no transport layer.
func RegisterIPv4(protocols *Protocols, sink IPv4Sink) error {
	return protocols.Register(ethernet.TypeIPv4, func(netif Netif, payload []byte) error {
		ifrm, err := ipv4.NewFrame(payload)
		if err != nil {
			return nil // Too short to be an IPv4 header: drop silently.
		}
		var vld lneto.Validator
		ifrm.ValidateSize(&vld)
		if vld.HasError() {
			return nil // Malformed header: drop silently.
		}
		if *ifrm.DestinationAddr() != [4]byte(netif.Unicast) {
			return errIPv4NotForUs
		}
		if ifrm.CRC() != ifrm.CalculateHeaderCRC() {
			return nil // Bad checksum: drop silently.
		}
		if sink == nil {
			return nil
		}
		return sink(netif, byte(ifrm.Protocol()), ifrm.Payload())
	})
}
