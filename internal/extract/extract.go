// Package extract turns a capture into per-packet CSV tables.
package extract

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/netanon/internal/capture"
	"firestige.xyz/netanon/internal/config"
	"firestige.xyz/netanon/internal/core"
	"firestige.xyz/netanon/internal/metrics"
)

// Options selects the input capture, the table layout and output paths.
type Options struct {
	Input string
	Mode  string // config.ExtractMetadata | ExtractCombined | ExtractData

	// Output is the metadata table, the combined table or the data table,
	// depending on Mode.
	Output string
	// Payload is the companion No,Length,Payload table of the metadata mode.
	Payload string

	LogInterval int

	// Until stops extraction at the first packet stamped after this epoch
	// second. Zero means the whole capture.
	Until int64
}

// Metadata is one row of the metadata table.
type Metadata struct {
	Time            int64
	No              int
	SourceIP        string
	DestinationIP   string
	SourcePort      uint16
	DestinationPort uint16
	SequenceNumber  uint32
	AckNumber       uint32
	Protocol        string
	Length          int
	Load            []byte
}

// Row renders the metadata columns.
func (m Metadata) Row() []string {
	return []string{
		strconv.FormatInt(m.Time, 10),
		strconv.Itoa(m.No),
		m.SourceIP,
		m.DestinationIP,
		strconv.FormatUint(uint64(m.SourcePort), 10),
		strconv.FormatUint(uint64(m.DestinationPort), 10),
		strconv.FormatUint(uint64(m.SequenceNumber), 10),
		strconv.FormatUint(uint64(m.AckNumber), 10),
		m.Protocol,
		strconv.Itoa(m.Length),
	}
}

// Packet is what a single frame contributes to the tables.
type Packet struct {
	Time     int64
	No       int
	Length   int // IP total length, 0 without an IP header
	Payload  []byte
	Metadata *Metadata // nil unless TCP or UDP
}

// Parse decodes one record; no is its 1-based position in the capture.
func Parse(rec core.Record, link gopacket.Decoder, no int) Packet {
	pkt := gopacket.NewPacket(rec.Data, link, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	p := Packet{Time: rec.Info.Timestamp.Unix(), No: no}

	var src, dst string
	var proto uint8
	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		src, dst = ip.SrcIP.String(), ip.DstIP.String()
		proto = uint8(ip.Protocol)
		p.Length = int(ip.Length)
	case *layers.IPv6:
		src, dst = ip.SrcIP.String(), ip.DstIP.String()
		proto = uint8(ip.NextHeader)
		p.Length = int(ip.Length) + 40
	}

	if tl := pkt.TransportLayer(); tl != nil {
		p.Payload = tl.LayerPayload()
	} else if al := pkt.ApplicationLayer(); al != nil {
		p.Payload = al.Payload()
	}

	m := &Metadata{
		Time:          p.Time,
		No:            no,
		SourceIP:      src,
		DestinationIP: dst,
		Protocol:      core.ProtocolName(proto),
		Length:        p.Length,
		Load:          p.Payload,
	}
	if src == "" {
		m.Protocol = ""
	}
	switch t := pkt.TransportLayer().(type) {
	case *layers.TCP:
		m.SourcePort, m.DestinationPort = uint16(t.SrcPort), uint16(t.DstPort)
		m.SequenceNumber, m.AckNumber = t.Seq, t.Ack
		p.Metadata = m
	case *layers.UDP:
		m.SourcePort, m.DestinationPort = uint16(t.SrcPort), uint16(t.DstPort)
		p.Metadata = m
	}
	return p
}

// table is a CSV output file.
type table struct {
	f  *os.File
	bw *bufio.Writer
	cw *csv.Writer
}

func createTable(path string, header []string) (*table, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	t := &table{f: f, bw: bw, cw: csv.NewWriter(bw)}
	if err := t.cw.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func (t *table) write(row []string) error { return t.cw.Write(row) }

func (t *table) close() error {
	t.cw.Flush()
	err := t.cw.Error()
	if ferr := t.bw.Flush(); err == nil {
		err = ferr
	}
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// sink receives every parsed packet of one mode.
type sink interface {
	add(p Packet) error
	close() error
}

type metadataSink struct{ meta, payload *table }

func (s *metadataSink) add(p Packet) error {
	if p.Metadata != nil {
		if err := s.meta.write(p.Metadata.Row()); err != nil {
			return err
		}
	}
	return s.payload.write([]string{strconv.Itoa(p.No), strconv.Itoa(p.Length), encode(p.Payload)})
}

func (s *metadataSink) close() error {
	err := s.meta.close()
	if perr := s.payload.close(); err == nil {
		err = perr
	}
	return err
}

type combinedSink struct{ t *table }

func (s *combinedSink) add(p Packet) error {
	if p.Metadata == nil {
		return nil
	}
	return s.t.write(append(p.Metadata.Row(), encode(p.Metadata.Load)))
}

func (s *combinedSink) close() error { return s.t.close() }

type dataSink struct{ t *table }

func (s *dataSink) add(p Packet) error {
	return s.t.write([]string{strconv.FormatInt(p.Time, 10), strconv.Itoa(p.No), encode(p.Payload)})
}

func (s *dataSink) close() error { return s.t.close() }

func encode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

func openSink(opts Options) (sink, error) {
	switch opts.Mode {
	case config.ExtractMetadata, "":
		if opts.Payload == "" {
			return nil, fmt.Errorf("%w: metadata mode needs a payload table path", core.ErrConfigInvalid)
		}
		meta, err := createTable(opts.Output, core.MetadataHeader)
		if err != nil {
			return nil, err
		}
		payload, err := createTable(opts.Payload, core.PayloadHeader)
		if err != nil {
			meta.close()
			return nil, err
		}
		return &metadataSink{meta: meta, payload: payload}, nil
	case config.ExtractCombined:
		header := append(append([]string{}, core.MetadataHeader...), core.ColLoad)
		t, err := createTable(opts.Output, header)
		if err != nil {
			return nil, err
		}
		return &combinedSink{t: t}, nil
	case config.ExtractData:
		t, err := createTable(opts.Output, core.DataHeader)
		if err != nil {
			return nil, err
		}
		return &dataSink{t: t}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported extract mode %q", core.ErrConfigInvalid, opts.Mode)
	}
}

// Extract writes the tables of opts.Mode and returns the number of packets read.
func Extract(ctx context.Context, opts Options) (int, error) {
	start := time.Now()
	interval := opts.LogInterval
	if interval <= 0 {
		interval = 10000
	}

	r, err := capture.Open(opts.Input)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	out, err := openSink(opts)
	if err != nil {
		return 0, err
	}

	link := r.LinkType()
	n := 0
	for {
		if err = ctx.Err(); err != nil {
			break
		}
		var rec core.Record
		rec, err = r.Next()
		if err == io.EOF {
			err = nil
			break
		}
		if err != nil {
			break
		}
		if opts.Until > 0 && rec.Info.Timestamp.After(time.Unix(opts.Until, 0)) {
			slog.Info("extraction stopped at time bound",
				"input", opts.Input, "packet_time", rec.Info.Timestamp, "until", opts.Until, "packets", n)
			break
		}
		n++
		if err = out.add(Parse(rec, link, n)); err != nil {
			break
		}
		metrics.PacketsTotal.WithLabelValues(metrics.StageExtracted).Inc()
		if n%interval == 0 {
			slog.Info("extraction progress", "input", opts.Input, "packets", n)
		}
	}

	if cerr := out.close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write tables: %w", cerr)
	}
	metrics.RunDurationSeconds.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		return n, err
	}
	slog.Info("extraction finished", "input", opts.Input, "mode", opts.Mode, "packets", n)
	return n, nil
}
