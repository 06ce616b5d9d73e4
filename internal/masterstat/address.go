package masterstat

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"net/netip"
	"slices"
	"strconv"
)

// ServerAddress is a game server IPv4 address and port as reported by a master server.
type ServerAddress struct {
	IP   [4]byte
	Port uint16
}

// NewServerAddress builds a ServerAddress from a netip.AddrPort.
// It returns false if the address is not IPv4.
func NewServerAddress(ap netip.AddrPort) (ServerAddress, bool) {
	addr := ap.Addr().Unmap()
	if !addr.Is4() {
		return ServerAddress{}, false
	}

	return ServerAddress{IP: addr.As4(), Port: ap.Port()}, true
}

// Addr returns the IP part as netip.Addr.
func (a ServerAddress) Addr() netip.Addr {
	return netip.AddrFrom4(a.IP)
}

// AddrPort returns the address as netip.AddrPort.
func (a ServerAddress) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(a.Addr(), a.Port)
}

// String returns the address in "a.b.c.d:port" form.
func (a ServerAddress) String() string {
	return a.Addr().String() + ":" + strconv.Itoa(int(a.Port))
}

// Compare orders addresses byte-exact: IP octets first, then port.
func (a ServerAddress) Compare(b ServerAddress) int {
	if c := bytes.Compare(a.IP[:], b.IP[:]); c != 0 {
		return c
	}

	return cmp.Compare(a.Port, b.Port)
}

// MarshalText implements encoding.TextMarshaler.
func (a ServerAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ServerAddress) UnmarshalText(text []byte) error {
	ap, err := netip.ParseAddrPort(string(text))
	if err != nil {
		return err
	}

	addr, ok := NewServerAddress(ap)
	if !ok {
		return fmt.Errorf("%q is not an IPv4 address", text)
	}
	*a = addr

	return nil
}

// appendRecord writes the 6-byte wire record of a to b.
func (a ServerAddress) appendRecord(b []byte) []byte {
	b = append(b, a.IP[:]...)
	return binary.BigEndian.AppendUint16(b, a.Port)
}

// SortedUnique returns a sorted copy of servers with duplicates removed.
func SortedUnique(servers []ServerAddress) []ServerAddress {
	out := slices.Clone(servers)
	slices.SortFunc(out, ServerAddress.Compare)

	return slices.Compact(out)
}
