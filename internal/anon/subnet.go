package anon

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/netanon/internal/core"
)

// Subnet is an IPv4 replacement pool with at least two usable hosts.
type Subnet struct {
	prefix netip.Prefix
	base   uint32
	size   uint64
}

// ParseSubnet parses CIDR notation. Host bits are masked off.
func ParseSubnet(cidr string) (Subnet, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return Subnet{}, fmt.Errorf("%w: %q: %v", core.ErrInvalidSubnet, cidr, err)
	}
	if !p.Addr().Is4() {
		return Subnet{}, fmt.Errorf("%w: %q is not IPv4", core.ErrInvalidSubnet, cidr)
	}
	if p.Bits() > 30 {
		return Subnet{}, fmt.Errorf("%w: %q", core.ErrSubnetTooSmall, cidr)
	}
	p = p.Masked()
	b := p.Addr().As4()
	return Subnet{
		prefix: p,
		base:   binary.BigEndian.Uint32(b[:]),
		size:   uint64(1) << (32 - p.Bits()),
	}, nil
}

// MustParseSubnet is ParseSubnet for constants; it panics on error.
func MustParseSubnet(cidr string) Subnet {
	s, err := ParseSubnet(cidr)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Subnet) Prefix() netip.Prefix { return s.prefix }

// Size is the number of addresses in the subnet, network and broadcast included.
func (s Subnet) Size() uint64 { return s.size }

// Usable is the number of host addresses, size-2.
func (s Subnet) Usable() uint64 { return s.size - 2 }

func (s Subnet) String() string { return s.prefix.String() }

// IsValid reports whether s came from ParseSubnet.
func (s Subnet) IsValid() bool { return s.size != 0 }

// Host returns the address at index within the subnet. Index 0 is the network
// address and size-1 the broadcast address.
func (s Subnet) Host(index uint64) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], s.base+uint32(index))
	return netip.AddrFrom4(b)
}

// ContainsHost reports whether addr is a usable host of s.
func (s Subnet) ContainsHost(addr netip.Addr) bool {
	if !s.prefix.Contains(addr) {
		return false
	}
	b := addr.As4()
	idx := uint64(binary.BigEndian.Uint32(b[:]) - s.base)
	return idx >= 1 && idx <= s.size-2
}
