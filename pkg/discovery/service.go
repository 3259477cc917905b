package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
)

const (
	DefaultServiceType = "_sneakvlc._tcp"
	DefaultDomain      = "local"
)

// ErrNoServer is returned when browsing ends without finding a rendezvous
// server.
var ErrNoServer = errors.New("no rendezvous server found")

type ServiceInfo struct {
	Name   string // instance name, usually the hostname
	Type   string // service type, e.g. "_sneakvlc._tcp"
	Domain string // domain, e.g. "local"
	Addr   net.IP
	Port   int
	Text   map[string]string
}

// URL returns the HTTP base URL of the announced rendezvous server.
func (s ServiceInfo) URL() string {
	host := "localhost"
	if s.Addr != nil && !s.Addr.IsUnspecified() {
		host = s.Addr.String()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// DiscoveryResult carries either a full snapshot of the services seen so
// far or an error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}

// BrowseName returns the fully qualified name used to browse for t in
// domain, e.g. "_sneakvlc._tcp.local.".
func BrowseName(serviceType, domain string) string {
	if serviceType == "" {
		serviceType = DefaultServiceType
	}
	if domain == "" {
		domain = DefaultDomain
	}
	return serviceType + "." + domain + "."
}

// FindServer browses until the first rendezvous server shows up or ctx is
// done.
func FindServer(ctx context.Context, adapter Adapter) (ServiceInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for result := range adapter.Discover(ctx, BrowseName(DefaultServiceType, DefaultDomain)) {
		if result.Error != nil {
			return ServiceInfo{}, result.Error
		}
		if len(result.Services) > 0 {
			return result.Services[0], nil
		}
	}
	if err := ctx.Err(); err != nil {
		return ServiceInfo{}, errors.Join(ErrNoServer, err)
	}
	return ServiceInfo{}, ErrNoServer
}
