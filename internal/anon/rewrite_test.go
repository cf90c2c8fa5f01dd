package anon

import (
	"net/netip"
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netanon/internal/core"
)

func TestHeaderChecksumKnownVector(t *testing.T) {
	// RFC 1071 style example header, checksum field zeroed.
	h := []byte{
		0x45, 0x00, 0x00, 0x73, 0x00, 0x00, 0x40, 0x00, 0x40, 0x11,
		0x00, 0x00, 0xc0, 0xa8, 0x00, 0x01, 0xc0, 0xa8, 0x00, 0xc7,
	}
	assert.Equal(t, uint16(0xb861), headerChecksum(h))
}

func TestRewriteFallsBackToPatching(t *testing.T) {
	frame := tcpFrame(t, "8.8.8.8", "192.168.0.2", layers.IPv4Option{OptionType: 1}, layers.IPv4Option{OptionType: 1},
		layers.IPv4Option{OptionType: 1}, layers.IPv4Option{OptionType: 1})
	hdr := *ipv4Of(t, frame)
	// Drop the decoded options so re-serialization yields a 20 byte header
	// that no longer matches the captured 24 bytes.
	hdr.Options = nil

	src := netip.MustParseAddr("10.0.0.7")
	dst := netip.MustParseAddr("192.168.0.2")
	out, err := rewriteIPv4(frame, 14, &hdr, src, dst)
	require.NoError(t, err)

	after := ipv4Of(t, out)
	assert.Equal(t, uint8(6), after.IHL)
	assert.Equal(t, frame[14+20:14+24], out[14+20:14+24], "options must be kept byte for byte")
	assert.Equal(t, []byte{10, 0, 0, 7}, []byte(after.SrcIP.To4()))
	assert.Zero(t, headerChecksum(after.Contents))
}

func TestRewriteRejectsBadOffset(t *testing.T) {
	frame := tcpFrame(t, "8.8.8.8", "192.168.0.2")
	hdr := ipv4Of(t, frame)
	a := netip.MustParseAddr("10.0.0.1")

	_, err := rewriteIPv4(frame[:20], 14, hdr, a, a)
	assert.ErrorIs(t, err, core.ErrPacketTooShort)
}
