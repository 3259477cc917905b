package system

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withAddrs(t *testing.T, addrs []net.Addr, err error) {
	t.Helper()
	orig := interfaceAddrs
	interfaceAddrs = func() ([]net.Addr, error) { return addrs, err }
	t.Cleanup(func() { interfaceAddrs = orig })
}

func cidr(t *testing.T, s string) *net.IPNet {
	t.Helper()
	ip, n, err := net.ParseCIDR(s)
	require.NoError(t, err)
	n.IP = ip
	return n
}

func TestLocalIPv4(t *testing.T) {
	t.Run("prefers private", func(t *testing.T) {
		withAddrs(t, []net.Addr{
			cidr(t, "127.0.0.1/8"),
			cidr(t, "fe80::1/64"),
			cidr(t, "203.0.113.7/24"),
			cidr(t, "192.168.1.20/24"),
		}, nil)
		ip, err := LocalIPv4()
		require.NoError(t, err)
		assert.Equal(t, "192.168.1.20", ip.String())
	})

	t.Run("falls back to public", func(t *testing.T) {
		withAddrs(t, []net.Addr{cidr(t, "203.0.113.7/24")}, nil)
		ip, err := LocalIPv4()
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.7", ip.String())
	})

	t.Run("loopback only", func(t *testing.T) {
		withAddrs(t, []net.Addr{cidr(t, "127.0.0.1/8"), cidr(t, "169.254.3.4/16")}, nil)
		_, err := LocalIPv4()
		assert.ErrorIs(t, err, ErrNoAddress)
	})

	t.Run("interface error", func(t *testing.T) {
		boom := errors.New("boom")
		withAddrs(t, nil, boom)
		_, err := LocalIPv4()
		assert.ErrorIs(t, err, boom)
	})
}

func TestGetHostInfo(t *testing.T) {
	withAddrs(t, []net.Addr{cidr(t, "10.0.0.5/8")}, nil)
	info, err := GetHostInfo()
	require.NoError(t, err)
	assert.NotEmpty(t, info.Hostname)
	assert.NotEmpty(t, info.OS)
	require.Len(t, info.Addrs, 1)
	assert.Equal(t, "10.0.0.5", info.Addrs[0].String())
}
