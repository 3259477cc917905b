package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/brutella/dnssd"
	dnssdlog "github.com/brutella/dnssd/log"
)

// Quiet silences dnssd's own loggers, which otherwise write every packet
// to stderr and tear up the terminal UI.
func Quiet() {
	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)
}

type MDNSAdapter struct {
	Log *slog.Logger
}

func (m *MDNSAdapter) logger() *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return slog.Default()
}

// Announce advertises service on the local network until ctx is done.
func (m *MDNSAdapter) Announce(ctx context.Context, serviceInfo ServiceInfo) error {
	text := map[string]string{"desc": "sneakvlc rendezvous server"}
	for k, v := range serviceInfo.Text {
		text[k] = v
	}

	serviceType := serviceInfo.Type
	if serviceType == "" {
		serviceType = DefaultServiceType
	}
	domain := serviceInfo.Domain
	if domain == "" {
		domain = DefaultDomain
	}

	cfg := dnssd.Config{
		Name:   serviceInfo.Name,
		Type:   serviceType,
		Domain: domain,
		// mdns will multicast to ip address, so we can leave it nil
		IPs:  nil,
		Text: text,
		Port: serviceInfo.Port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	m.logger().Info("Announcing rendezvous server", "name", cfg.Name, "type", serviceType, "port", cfg.Port)
	if err = rp.Respond(ctx); err != nil {
		// Context cancellation is not an error in normal operation
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to respond to mDNS service: %w", err)
	}

	m.logger().Info("Shutting down mDNS responder")
	return nil
}

// Discover browses for service and sends a full snapshot of what it has seen
// every time the set changes. Slow readers miss intermediate snapshots.
func (m *MDNSAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	var (
		mu      sync.RWMutex
		entries = make(map[string]ServiceInfo)
		outCh   = make(chan DiscoveryResult, 10)
	)

	sendSnapshot := func() {
		mu.Lock()
		defer mu.Unlock()
		snapshot := make([]ServiceInfo, 0, len(entries))
		for _, entry := range entries {
			snapshot = append(snapshot, entry)
		}
		select {
		case outCh <- DiscoveryResult{Services: snapshot, Error: nil}:
		default:
		}
	}

	sendError := func(err error) {
		select {
		case outCh <- DiscoveryResult{Services: nil, Error: err}:
		default:
		}
	}

	addFn := func(e dnssd.BrowseEntry) {
		mu.Lock()
		entries[entryKey(e)] = ServiceInfo{
			Name:   e.Name,
			Type:   e.Type,
			Domain: e.Domain,
			Addr:   preferredIP(e.IPs),
			Port:   e.Port,
			Text:   e.Text,
		}
		mu.Unlock()
		sendSnapshot()
	}

	rmvFn := func(e dnssd.BrowseEntry) {
		mu.Lock()
		delete(entries, entryKey(e))
		mu.Unlock()
		sendSnapshot()
	}

	go func() {
		defer close(outCh)
		if err := dnssd.LookupType(ctx, service, addFn, rmvFn); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			sendError(fmt.Errorf("mDNS lookup failed: %w", err))
		}
	}()

	return outCh
}

func entryKey(e dnssd.BrowseEntry) string {
	return fmt.Sprintf("%s:%s:%s", e.Name, e.Type, e.Domain)
}

// preferredIP picks the first IPv4 address, falling back to the first
// address of any family.
func preferredIP(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}
