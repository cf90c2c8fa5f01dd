package anon

import (
	"errors"
	"io"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netanon/internal/capture"
	"firestige.xyz/netanon/internal/core"
)

var (
	srcMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	dstMAC = net.HardwareAddr{0x02, 0, 0, 0, 0, 2}
)

// tcpFrame builds Ethernet/IPv4/TCP with a payload and valid checksums.
func tcpFrame(t *testing.T, src, dst string, opts ...layers.IPv4Option) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Id:       0x1234,
		Flags:    layers.IPv4DontFragment,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
		Options:  opts,
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, Seq: 1000, Ack: 2000, ACK: true, PSH: true, Window: 512}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	so := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, so, eth, ip, tcp, gopacket.Payload("payload")))
	return append([]byte(nil), buf.Bytes()...)
}

func ipv6Frame(t *testing.T, src, dst string) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv6}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	so := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, so, eth, ip, udp, gopacket.Payload("v6")))
	return append([]byte(nil), buf.Bytes()...)
}

func arpFrame(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: []byte{192, 168, 0, 2},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{192, 168, 0, 1},
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, arp))
	return append([]byte(nil), buf.Bytes()...)
}

func record(data []byte, i int) core.Record {
	return core.Record{
		Info: gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000+int64(i), 0),
			CaptureLength: len(data),
			Length:        len(data),
		},
		Data: data,
	}
}

// ipv4Of decodes the IPv4 layer of an Ethernet frame.
func ipv4Of(t *testing.T, data []byte) *layers.IPv4 {
	t.Helper()
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	l := pkt.Layer(layers.LayerTypeIPv4)
	require.NotNil(t, l, "frame has no IPv4 layer")
	return l.(*layers.IPv4)
}

func addrsOf(t *testing.T, data []byte) (netip.Addr, netip.Addr) {
	t.Helper()
	ip := ipv4Of(t, data)
	src, _ := netip.AddrFromSlice(ip.SrcIP)
	dst, _ := netip.AddrFromSlice(ip.DstIP)
	return src.Unmap(), dst.Unmap()
}

func writePcap(t *testing.T, path string, frames [][]byte) {
	t.Helper()
	w, err := capture.Create(path, 65535, layers.LinkTypeEthernet)
	require.NoError(t, err)
	for i, f := range frames {
		require.NoError(t, w.Write(record(f, i)))
	}
	require.NoError(t, w.Close())
}

func readPcap(t *testing.T, path string) []core.Record {
	t.Helper()
	r, err := capture.Open(path)
	require.NoError(t, err)
	defer r.Close()
	var out []core.Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func mustTable(t *testing.T, groups ...Partition) *PartitionTable {
	t.Helper()
	tbl, err := NewPartitionTable(groups, MustParseSubnet("10.0.0.0/8"), false)
	require.NoError(t, err)
	return tbl
}

func group(name, subnet string, addrs ...string) Partition {
	p := Partition{Name: name, Subnet: MustParseSubnet(subnet)}
	for _, a := range addrs {
		p.Addresses = append(p.Addresses, netip.MustParseAddr(a))
	}
	return p
}
