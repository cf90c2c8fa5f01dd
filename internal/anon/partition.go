package anon

import (
	"fmt"
	"log/slog"
	"net/netip"

	"firestige.xyz/netanon/internal/config"
	"firestige.xyz/netanon/internal/core"
)

// DefaultPoolName labels replacements drawn from the fallback subnet.
const DefaultPoolName = "default"

// Partition is one application group: private addresses whose public peers
// get replacements from Subnet.
type Partition struct {
	Name      string
	Subnet    Subnet
	Addresses []netip.Addr
}

type indexEntry struct {
	group  int
	subnet Subnet
}

// PartitionTable holds the application groups and the reverse index from a
// private address to its group. Immutable after construction.
type PartitionTable struct {
	groups   []Partition
	index    map[netip.Addr]indexEntry
	fallback Subnet
}

// NewPartitionTable indexes groups in order. An address listed by two groups
// fails with ErrPartitionOverlap unless allowOverlap is set, in which case
// the later group wins.
func NewPartitionTable(groups []Partition, fallback Subnet, allowOverlap bool) (*PartitionTable, error) {
	if !fallback.IsValid() {
		return nil, fmt.Errorf("%w: fallback subnet not set", core.ErrInvalidSubnet)
	}
	t := &PartitionTable{
		groups:   groups,
		index:    make(map[netip.Addr]indexEntry),
		fallback: fallback,
	}
	for gi, g := range groups {
		for _, addr := range g.Addresses {
			addr = addr.Unmap()
			if prev, ok := t.index[addr]; ok && prev.group != gi {
				if !allowOverlap {
					return nil, fmt.Errorf("%w: %s in both %s and %s",
						core.ErrPartitionOverlap, addr, groups[prev.group].Name, g.Name)
				}
				slog.Warn("partition overlap, later group wins",
					"address", addr.String(),
					"previous", groups[prev.group].Name,
					"winner", g.Name)
			}
			t.index[addr] = indexEntry{group: gi, subnet: g.Subnet}
		}
	}
	return t, nil
}

// BuildPartitionTable parses the configured groups and default subnet.
func BuildPartitionTable(cfg config.AnonymizeConfig, parts []config.PartitionConfig) (*PartitionTable, error) {
	fallback, err := ParseSubnet(cfg.DefaultSubnet)
	if err != nil {
		return nil, fmt.Errorf("default subnet: %w", err)
	}

	groups := make([]Partition, 0, len(parts))
	for i, p := range parts {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("partition-%d", i)
		}
		subnet, err := ParseSubnet(p.Subnet)
		if err != nil {
			return nil, fmt.Errorf("partition %s: %w", name, err)
		}
		addrs := make([]netip.Addr, 0, len(p.Addresses))
		for _, s := range p.Addresses {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("partition %s: %w: %q", name, core.ErrInvalidAddress, s)
			}
			addrs = append(addrs, addr.WithZone(""))
		}
		groups = append(groups, Partition{Name: name, Subnet: subnet, Addresses: addrs})
	}
	return NewPartitionTable(groups, fallback, cfg.AllowOverlap)
}

// SubnetFor returns the subnet owning a private address.
func (t *PartitionTable) SubnetFor(private netip.Addr) (Subnet, bool) {
	e, ok := t.index[private.Unmap()]
	return e.subnet, ok
}

// PoolFor returns the pool replacements for peer's counterparts are drawn
// from, falling back to the default subnet, with the group name.
func (t *PartitionTable) PoolFor(peer netip.Addr) (Subnet, string) {
	if e, ok := t.index[peer.Unmap()]; ok {
		return e.subnet, t.groups[e.group].Name
	}
	return t.fallback, DefaultPoolName
}

// IsKnown reports whether addr belongs to some partition.
func (t *PartitionTable) IsKnown(addr netip.Addr) bool {
	_, ok := t.index[addr.Unmap()]
	return ok
}

// Groups returns the groups in configuration order.
func (t *PartitionTable) Groups() []Partition { return t.groups }

// Fallback returns the default subnet.
func (t *PartitionTable) Fallback() Subnet { return t.fallback }

// Len returns the number of indexed private addresses.
func (t *PartitionTable) Len() int { return len(t.index) }
