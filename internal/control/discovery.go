package control

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
)

// Default mDNS browse parameters for the machines' advertisements.
const (
	DefaultService = "_ultimate64._tcp"
	DefaultDomain  = "local."
)

// Device is a machine discovered on the local network.
type Device struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Discover browses mDNS for devices advertising the given service type
// and returns everything found within the timeout. An empty result is
// not an error; the caller decides whether to fall back to a configured
// address.
func Discover(ctx context.Context, service, domain string, timeout time.Duration) ([]Device, error) {
	if service == "" {
		service = DefaultService
	}

	if domain == "" {
		domain = DefaultDomain
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []Device, 1)

	go func() {
		var devices []Device
		for entry := range entries {
			devices = append(devices, deviceFromEntry(entry))
		}
		collected <- devices
	}()

	if err := resolver.Browse(browseCtx, service, domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse mDNS: %w", err)
	}

	// Browse closes the entries channel once the context expires.
	<-browseCtx.Done()
	return <-collected, nil
}

func deviceFromEntry(entry *zeroconf.ServiceEntry) Device {
	device := Device{
		Name: entry.Instance,
		Host: entry.HostName,
		Port: entry.Port,
	}

	// Prefer a plain IPv4 address over the advertised hostname, which
	// may not resolve outside mDNS-aware resolvers.
	if len(entry.AddrIPv4) > 0 {
		device.Host = entry.AddrIPv4[0].String()
	}

	return device
}

// LocalIPFor returns the local interface address the OS would use to
// reach the given host, which is the address the machine must stream
// back to.
func LocalIPFor(host string, port int) (string, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return "", fmt.Errorf("failed to determine local address for %s: %w", host, err)
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}

	return localAddr.IP.String(), nil
}
