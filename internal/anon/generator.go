package anon

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"net"
	"net/netip"

	"github.com/Yawning/cryptopan"

	"firestige.xyz/netanon/internal/config"
	"firestige.xyz/netanon/internal/core"
)

// Generator draws a usable host address from a subnet. The original address
// is available to strategies that derive the host from it.
type Generator interface {
	Generate(subnet Subnet, original netip.Addr) netip.Addr
}

// RandomGenerator draws host indices uniformly from [1, size-2].
// It is not safe for concurrent use.
type RandomGenerator struct {
	rng *rand.Rand
}

// NewRandomGenerator returns a generator seeded with seed. Seed 0 draws a
// fresh seed, so consecutive runs differ.
func NewRandomGenerator(seed uint64) *RandomGenerator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *RandomGenerator) Generate(subnet Subnet, _ netip.Addr) netip.Addr {
	return subnet.Host(1 + g.rng.Uint64N(subnet.Usable()))
}

// KeyedGenerator derives the host index from the prefix-preserving CryptoPAn
// encryption of the original address, so the mapping is stable for a given
// key and subnet across runs and files.
type KeyedGenerator struct {
	pan *cryptopan.Cryptopan
}

// NewKeyedGenerator creates a keyed generator from a 32 byte key.
func NewKeyedGenerator(key []byte) (*KeyedGenerator, error) {
	pan, err := cryptopan.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidKey, err)
	}
	return &KeyedGenerator{pan: pan}, nil
}

func (g *KeyedGenerator) Generate(subnet Subnet, original netip.Addr) netip.Addr {
	enc := g.pan.Anonymize(net.IP(original.AsSlice()))
	var word uint32
	if v4 := enc.To4(); v4 != nil {
		word = binary.BigEndian.Uint32(v4)
	} else if len(enc) >= 4 {
		word = binary.BigEndian.Uint32(enc[len(enc)-4:])
	}
	return subnet.Host(1 + uint64(word)%subnet.Usable())
}

// ParseKey accepts either 64 hex digits or a raw 32 byte string.
func ParseKey(s string) ([]byte, error) {
	if len(s) == 2*cryptopan.Size {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	if len(s) != cryptopan.Size {
		return nil, fmt.Errorf("%w: need %d bytes or %d hex digits, got %d characters",
			core.ErrInvalidKey, cryptopan.Size, 2*cryptopan.Size, len(s))
	}
	return []byte(s), nil
}

// NewGenerator builds the generator selected by cfg.Strategy.
func NewGenerator(cfg config.AnonymizeConfig) (Generator, error) {
	switch cfg.Strategy {
	case config.StrategyKeyed:
		key, err := ParseKey(cfg.Key)
		if err != nil {
			return nil, err
		}
		return NewKeyedGenerator(key)
	case config.StrategyRandom, "":
		return NewRandomGenerator(cfg.Seed), nil
	default:
		return nil, fmt.Errorf("%w: unsupported strategy %q", core.ErrConfigInvalid, cfg.Strategy)
	}
}
