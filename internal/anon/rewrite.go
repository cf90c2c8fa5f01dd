package anon

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/netanon/internal/core"
)

// rewriteIPv4 returns a copy of data with the IPv4 header at offset carrying
// src and dst and a regenerated header checksum. Everything outside the
// header is copied unchanged, including transport checksums.
func rewriteIPv4(data []byte, offset int, hdr *layers.IPv4, src, dst netip.Addr) ([]byte, error) {
	hlen := len(hdr.Contents)
	if hlen < 20 || offset < 0 || offset+hlen > len(data) {
		return nil, fmt.Errorf("%w: header of %d bytes at offset %d in %d byte frame",
			core.ErrPacketTooShort, hlen, offset, len(data))
	}

	out := make([]byte, len(data))
	copy(out, data)

	// The decoder substitutes the frame length for a zero total length
	// (segmentation offload), so the captured field is carried over as is.
	totalLen := binary.BigEndian.Uint16(data[offset+2 : offset+4])
	header, err := serializeHeader(hdr, totalLen, src, dst)
	if err != nil || len(header) != hlen {
		// Options that do not re-serialize to the captured length are kept
		// byte for byte and only the address and checksum fields change.
		patchHeader(out[offset:offset+hlen], src, dst)
		return out, nil
	}
	copy(out[offset:], header)
	return out, nil
}

func serializeHeader(hdr *layers.IPv4, totalLen uint16, src, dst netip.Addr) ([]byte, error) {
	ip := *hdr
	ip.Length = totalLen
	ip.SrcIP = net.IP(src.AsSlice())
	ip.DstIP = net.IP(dst.AsSlice())
	ip.Checksum = 0

	buf := gopacket.NewSerializeBuffer()
	if err := ip.SerializeTo(buf, gopacket.SerializeOptions{ComputeChecksums: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func patchHeader(h []byte, src, dst netip.Addr) {
	s, d := src.As4(), dst.As4()
	copy(h[12:16], s[:])
	copy(h[16:20], d[:])
	h[10], h[11] = 0, 0
	binary.BigEndian.PutUint16(h[10:12], headerChecksum(h))
}

// headerChecksum is the RFC 791 ones' complement sum over h.
func headerChecksum(h []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(h); i += 2 {
		sum += uint32(h[i])<<8 | uint32(h[i+1])
	}
	if len(h)%2 == 1 {
		sum += uint32(h[len(h)-1]) << 8
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}
