// Command arpcli is a small interactive test harness for the dispatch
// fabric and ARP resolver, grounded in examples/tap/main.go's device I/O
// loop and examples/stack/main.go's protocol wiring.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/netip"
	"time"

	"github.com/nilmux/lneto/arp"
	"github.com/nilmux/lneto/dispatch"
)

func main() {
	var (
		flagIface   = flag.String("iface", "tap0", "device name (TAP character device or, with -bridge, an existing host interface)")
		flagNet     = flag.String("net", "192.168.10.1/24", "local address/subnet assigned to the TAP device")
		flagBridge  = flag.Bool("bridge", false, "attach to an existing host interface via AF_PACKET instead of creating a TAP device")
		flagResolve = flag.String("resolve", "", "perform a one-shot ARP resolve of the given IPv4 address and exit")
	)
	flag.Parse()

	if err := run(*flagIface, *flagNet, *flagBridge, *flagResolve); err != nil {
		log.Fatal(err)
	}
}

func run(ifaceName, netCIDR string, bridge bool, resolveTarget string) error {
	prefix, err := netip.ParsePrefix(netCIDR)
	if err != nil {
		return fmt.Errorf("arpcli: parsing -net: %w", err)
	}
	if !prefix.Addr().Is4() {
		return fmt.Errorf("arpcli: only IPv4 is supported")
	}

	drivers := dispatch.NewDriverRegistry()
	protocols := dispatch.NewProtocols()
	typ := dispatch.DeviceTAP
	if bridge {
		typ = dispatch.DeviceBridge
		if err := dispatch.RegisterBridge(drivers, ifaceName); err != nil {
			return fmt.Errorf("arpcli: opening bridge %s: %w", ifaceName, err)
		}
	} else {
		if err := dispatch.RegisterTAP(drivers, ifaceName, prefix); err != nil {
			return fmt.Errorf("arpcli: opening tap %s: %w", ifaceName, err)
		}
	}

	handler, err := arp.NewHandler(arp.HandlerConfig{})
	if err != nil {
		return fmt.Errorf("arpcli: building arp handler: %w", err)
	}
	if err := dispatch.RegisterARP(protocols, handler); err != nil {
		return fmt.Errorf("arpcli: registering arp protocol: %w", err)
	}
	if err := dispatch.RegisterIPv4(protocols, nil); err != nil {
		return fmt.Errorf("arpcli: registering ipv4 protocol: %w", err)
	}

	dev, err := dispatch.NewDevice(ifaceName, typ, drivers, protocols, arp.PA(prefix.Addr().As4()))
	if err != nil {
		return fmt.Errorf("arpcli: building device: %w", err)
	}
	defer dev.Close()

	if resolveTarget != "" {
		return resolveOnce(handler, dev, resolveTarget)
	}

	return serve(dev)
}

func resolveOnce(handler *arp.Handler, dev *dispatch.Device, target string) error {
	addr, err := netip.ParseAddr(target)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("arpcli: -resolve expects an IPv4 address, got %q", target)
	}

	var out arp.HA
	res, err := dispatch.Resolve(handler, dev.GetNetif(), arp.PA(addr.As4()), &out, nil)
	fmt.Printf("resolve %s: %s", target, res)
	if err != nil {
		fmt.Printf(" (err=%s)", err)
	}
	fmt.Println()

	if res == arp.ResultQuery {
		// Give the link a brief window to deliver the REPLY before exiting,
		// pumping the device's receive path exactly as serve does.
		deadline := time.Now().Add(2 * time.Second)
		buf := make([]byte, dev.MTU()+14)
		for time.Now().Before(deadline) {
			n, err := dev.ReadFrame(buf)
			if err != nil {
				break
			}
			if n > 0 {
				dev.Demux(buf[:n])
			}
		}
		res, err = dispatch.Resolve(handler, dev.GetNetif(), arp.PA(addr.As4()), &out, nil)
		fmt.Printf("resolve %s (after wait): %s", target, res)
		if err != nil {
			fmt.Printf(" (err=%s)", err)
		} else if res == arp.ResultFound {
			fmt.Printf(" ha=%x", out)
		}
		fmt.Println()
	} else if res == arp.ResultFound {
		fmt.Printf("ha=%x\n", out)
	}
	return nil
}

func serve(dev *dispatch.Device) error {
	slog.Info("arpcli: serving", slog.String("device", dev.Name()))
	buf := make([]byte, dev.MTU()+14)
	for {
		n, err := dev.ReadFrame(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		if err := dev.Demux(buf[:n]); err != nil {
			slog.Error("arpcli: demux", slog.String("err", err.Error()))
		}
	}
}
