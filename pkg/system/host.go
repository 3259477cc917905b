// Package system reports facts about the local host that a sender
// advertises in its descriptor.
package system

import (
	"errors"
	"net"
	"os"
	"runtime"
)

// ErrNoAddress is returned when no usable IPv4 address is configured.
var ErrNoAddress = errors.New("no usable IPv4 address found")

// HostInfo describes the machine a peer runs on.
type HostInfo struct {
	Hostname string   `json:"hostname"`
	OS       string   `json:"os"`
	Arch     string   `json:"arch"`
	Addrs    []net.IP `json:"addrs"`
}

// interfaceAddrs is replaced in tests.
var interfaceAddrs = net.InterfaceAddrs

// GetHostInfo collects the hostname and every non-loopback IPv4 address.
func GetHostInfo() (HostInfo, error) {
	name, err := os.Hostname()
	if err != nil {
		return HostInfo{}, err
	}
	addrs, err := ipv4Addrs()
	if err != nil {
		return HostInfo{}, err
	}
	return HostInfo{
		Hostname: name,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Addrs:    addrs,
	}, nil
}

// LocalIPv4 returns the address a LAN peer is most likely to reach. Private
// ranges win over public ones.
func LocalIPv4() (net.IP, error) {
	addrs, err := ipv4Addrs()
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrNoAddress
	}
	for _, ip := range addrs {
		if ip.IsPrivate() {
			return ip, nil
		}
	}
	return addrs[0], nil
}

func ipv4Addrs() ([]net.IP, error) {
	raw, err := interfaceAddrs()
	if err != nil {
		return nil, err
	}
	var out []net.IP
	for _, a := range raw {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP.To4()
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			continue
		}
		out = append(out, ip)
	}
	return out, nil
}
