// Package anon rewrites public IP addresses in a capture stream with
// synthetic addresses drawn from per-application subnets.
package anon

import (
	"net/netip"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

// Special-purpose IPv4 blocks that are never anonymized: private-use,
// loopback, link-local, IETF protocol assignments, documentation,
// benchmarking, multicast and the reserved class E range. Shared address
// space (100.64.0.0/10) is public.
var nonPublicV4 = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/29",
	"192.0.0.170/31",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
}

// Special-purpose IPv6 blocks.
var nonPublicV6 = []string{
	"::/8", // unspecified, loopback, IPv4-compatible
	"64:ff9b:1::/48",
	"100::/8", // discard-only and reserved
	"200::/7",
	"400::/6",
	"800::/5",
	"1000::/4",
	"2001::/23",
	"2001:db8::/32",
	"2002::/16",
	"4000::/3",
	"6000::/3",
	"8000::/3",
	"a000::/3",
	"c000::/3",
	"e000::/4",
	"f000::/5",
	"f800::/6",
	"fc00::/7", // unique local
	"fe00::/9",
	"fe80::/10",
	"fec0::/10",
	"ff00::/8",
}

// Classifier decides whether an address is public, i.e. eligible for
// replacement. It is read-only after construction and safe for concurrent use.
type Classifier struct {
	v4 ipaddr.Trie[*ipaddr.IPAddress]
	v6 ipaddr.Trie[*ipaddr.IPAddress]
}

// NewClassifier builds the special-purpose range tries.
func NewClassifier() *Classifier {
	c := &Classifier{}
	for _, block := range nonPublicV4 {
		c.v4.Add(mustBlock(block))
	}
	for _, block := range nonPublicV6 {
		c.v6.Add(mustBlock(block))
	}
	return c
}

func mustBlock(s string) *ipaddr.IPAddress {
	addr := ipaddr.NewIPAddressString(s).GetAddress()
	if addr == nil {
		panic("anon: bad special-purpose block " + s)
	}
	return addr.ToPrefixBlock()
}

// IsPublic parses address and reports whether it is public. Unparsable
// input is never public.
func (c *Classifier) IsPublic(address string) bool {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return false
	}
	return c.IsPublicAddr(addr)
}

// IsPublicAddr reports whether addr lies outside every special-purpose block.
// IPv4-mapped IPv6 addresses are classified by the embedded IPv4 address.
func (c *Classifier) IsPublicAddr(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap().WithZone("")

	key := ipaddr.NewIPAddressFromNetNetIPAddr(addr)
	if key == nil {
		return false
	}
	if addr.Is4() {
		return !c.v4.ElementContains(key)
	}
	return !c.v6.ElementContains(key)
}
