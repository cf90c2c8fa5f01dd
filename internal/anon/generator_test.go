package anon

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netanon/internal/config"
	"firestige.xyz/netanon/internal/core"
)

func TestParseSubnet(t *testing.T) {
	s, err := ParseSubnet("10.9.0.77/24")
	require.NoError(t, err)
	assert.Equal(t, "10.9.0.0/24", s.String())
	assert.Equal(t, uint64(256), s.Size())
	assert.Equal(t, uint64(254), s.Usable())
	assert.Equal(t, netip.MustParseAddr("10.9.0.0"), s.Host(0))
	assert.Equal(t, netip.MustParseAddr("10.9.0.255"), s.Host(255))

	s, err = ParseSubnet("0.0.0.0/0")
	require.NoError(t, err)
	assert.Equal(t, uint64(1)<<32, s.Size())
}

func TestParseSubnetErrors(t *testing.T) {
	tests := []struct {
		cidr string
		want error
	}{
		{"garbage", core.ErrInvalidSubnet},
		{"10.0.0.1", core.ErrInvalidSubnet},
		{"2001:db8::/64", core.ErrInvalidSubnet},
		{"10.0.0.0/31", core.ErrSubnetTooSmall},
		{"10.0.0.0/32", core.ErrSubnetTooSmall},
	}
	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			_, err := ParseSubnet(tt.cidr)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestContainsHost(t *testing.T) {
	s := MustParseSubnet("10.9.0.0/24")
	assert.False(t, s.ContainsHost(netip.MustParseAddr("10.9.0.0")))
	assert.True(t, s.ContainsHost(netip.MustParseAddr("10.9.0.1")))
	assert.True(t, s.ContainsHost(netip.MustParseAddr("10.9.0.254")))
	assert.False(t, s.ContainsHost(netip.MustParseAddr("10.9.0.255")))
	assert.False(t, s.ContainsHost(netip.MustParseAddr("10.9.1.1")))
}

func TestRandomGeneratorContainment(t *testing.T) {
	g := NewRandomGenerator(0)
	orig := netip.MustParseAddr("8.8.8.8")

	for _, cidr := range []string{"10.9.0.0/24", "10.1.0.0/16", "192.0.2.0/30", "10.0.0.0/8"} {
		s := MustParseSubnet(cidr)
		for i := 0; i < 2000; i++ {
			a := g.Generate(s, orig)
			require.True(t, s.ContainsHost(a), "%s outside usable range of %s", a, cidr)
		}
	}
}

func TestRandomGeneratorSmallestSubnetCoversBothHosts(t *testing.T) {
	g := NewRandomGenerator(42)
	s := MustParseSubnet("192.0.2.0/30")
	seen := map[netip.Addr]bool{}
	for i := 0; i < 200; i++ {
		seen[g.Generate(s, netip.Addr{})] = true
	}
	assert.Equal(t, map[netip.Addr]bool{
		netip.MustParseAddr("192.0.2.1"): true,
		netip.MustParseAddr("192.0.2.2"): true,
	}, seen)
}

func TestRandomGeneratorSeedReproducible(t *testing.T) {
	s := MustParseSubnet("10.0.0.0/8")
	a, b := NewRandomGenerator(7), NewRandomGenerator(7)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Generate(s, netip.Addr{}), b.Generate(s, netip.Addr{}))
	}
}

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestKeyedGeneratorStableAcrossInstances(t *testing.T) {
	g1, err := NewKeyedGenerator(testKey)
	require.NoError(t, err)
	g2, err := NewKeyedGenerator(testKey)
	require.NoError(t, err)

	s := MustParseSubnet("10.9.0.0/24")
	for _, orig := range []string{"8.8.8.8", "1.1.1.1", "93.184.216.34"} {
		a := netip.MustParseAddr(orig)
		r1 := g1.Generate(s, a)
		assert.Equal(t, r1, g2.Generate(s, a))
		assert.Equal(t, r1, g1.Generate(s, a))
		assert.True(t, s.ContainsHost(r1))
	}
}

func TestKeyedGeneratorDependsOnKey(t *testing.T) {
	other := []byte(strings.Repeat("k", 32))
	g1, err := NewKeyedGenerator(testKey)
	require.NoError(t, err)
	g2, err := NewKeyedGenerator(other)
	require.NoError(t, err)

	s := MustParseSubnet("10.0.0.0/8")
	differs := false
	for i := 1; i < 20; i++ {
		a := netip.AddrFrom4([4]byte{8, 8, 8, byte(i)})
		if g1.Generate(s, a) != g2.Generate(s, a) {
			differs = true
		}
	}
	assert.True(t, differs)
}

func TestNewKeyedGeneratorRejectsShortKey(t *testing.T) {
	_, err := NewKeyedGenerator([]byte("short"))
	assert.ErrorIs(t, err, core.ErrInvalidKey)
}

func TestParseKey(t *testing.T) {
	raw, err := ParseKey(string(testKey))
	require.NoError(t, err)
	assert.Equal(t, testKey, raw)

	hexKey := strings.Repeat("ab", 32)
	b, err := ParseKey(hexKey)
	require.NoError(t, err)
	assert.Len(t, b, 32)
	assert.Equal(t, byte(0xab), b[0])

	_, err = ParseKey("too-short")
	assert.ErrorIs(t, err, core.ErrInvalidKey)
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator(config.AnonymizeConfig{Strategy: config.StrategyRandom, Seed: 3})
	require.NoError(t, err)
	assert.IsType(t, &RandomGenerator{}, g)

	g, err = NewGenerator(config.AnonymizeConfig{Strategy: config.StrategyKeyed, Key: string(testKey)})
	require.NoError(t, err)
	assert.IsType(t, &KeyedGenerator{}, g)

	_, err = NewGenerator(config.AnonymizeConfig{Strategy: config.StrategyKeyed, Key: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidKey)

	_, err = NewGenerator(config.AnonymizeConfig{Strategy: "sequential"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
