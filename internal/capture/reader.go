// Package capture reads and writes packet-capture files without libpcap.
package capture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/netanon/internal/core"
)

// DefaultSnaplen is used when the input does not declare a snapshot length.
const DefaultSnaplen = 262144

// Magic numbers of the supported container formats.
const (
	magicPcapng        = 0x0A0D0D0A
	magicPcapMicros    = 0xA1B2C3D4
	magicPcapNanos     = 0xA1B23C4D
	magicPcapMicrosSwp = 0xD4C3B2A1
	magicPcapNanosSwp  = 0x4D3CB2A1
)

// packetReader is satisfied by both pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader yields Records from a pcap or pcapng stream in file order.
type Reader struct {
	path    string
	file    *os.File
	src     packetReader
	snaplen uint32
	ng      bool
	nanos   bool
}

// Open opens a capture file, detecting pcap or pcapng from its magic number.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	r.path = path
	r.file = f
	return r, nil
}

// NewReader wraps an already opened stream.
func NewReader(in io.Reader) (*Reader, error) {
	br := bufio.NewReader(in)
	head, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: reading magic: %v", core.ErrUnsupportedFormat, err)
	}

	r := &Reader{}
	switch binary.LittleEndian.Uint32(head) {
	case magicPcapng:
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrUnsupportedFormat, err)
		}
		r.src = ng
		r.ng = true
		// interfaces may declare up to nanosecond resolution
		r.nanos = true
		r.snaplen = DefaultSnaplen
		if intf, err := ng.Interface(0); err == nil && intf.SnapLength > 0 {
			r.snaplen = intf.SnapLength
		}
	case magicPcapMicros, magicPcapNanos, magicPcapMicrosSwp, magicPcapNanosSwp:
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrUnsupportedFormat, err)
		}
		magic := binary.LittleEndian.Uint32(head)
		r.nanos = magic == magicPcapNanos || magic == magicPcapNanosSwp
		r.src = pr
		r.snaplen = pr.Snaplen()
		if r.snaplen == 0 {
			r.snaplen = DefaultSnaplen
		}
	default:
		return nil, fmt.Errorf("%w: magic %x", core.ErrUnsupportedFormat, head)
	}
	return r, nil
}

// Next returns the next Record, or io.EOF once the stream is exhausted.
// The returned data is owned by the caller.
func (r *Reader) Next() (core.Record, error) {
	data, ci, err := r.src.ReadPacketData()
	if err != nil {
		if err == io.EOF {
			return core.Record{}, io.EOF
		}
		return core.Record{}, fmt.Errorf("failed to read packet: %w", err)
	}
	return core.Record{Info: ci, Data: data}, nil
}

// LinkType returns the link type of the capture.
func (r *Reader) LinkType() layers.LinkType {
	return r.src.LinkType()
}

// Snaplen returns the snapshot length declared by the capture.
func (r *Reader) Snaplen() uint32 {
	return r.snaplen
}

// Nanos reports whether timestamps may carry sub-microsecond precision.
func (r *Reader) Nanos() bool {
	return r.nanos
}

// IsPcapng reports whether the input is a pcapng container.
func (r *Reader) IsPcapng() bool {
	return r.ng
}

func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
