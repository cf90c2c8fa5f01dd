package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/netanon/internal/core"
)

// Writer emits Records as a classic pcap file.
type Writer struct {
	file *os.File
	buf  *bufio.Writer
	w    *pcapgo.Writer
}

// WriterOption customizes a Writer.
type WriterOption func(*writerOptions)

type writerOptions struct {
	nanos bool
}

// WithNanos writes nanosecond timestamps when nanos is set.
func WithNanos(nanos bool) WriterOption {
	return func(o *writerOptions) { o.nanos = nanos }
}

// Create truncates path and writes a pcap file header.
func Create(path string, snaplen uint32, linkType layers.LinkType, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture %s: %w", path, err)
	}
	w, err := NewWriter(f, snaplen, linkType, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter writes a pcap header to out and returns a Writer on it.
func NewWriter(out io.Writer, snaplen uint32, linkType layers.LinkType, opts ...WriterOption) (*Writer, error) {
	var o writerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if snaplen == 0 {
		snaplen = DefaultSnaplen
	}
	buf := bufio.NewWriter(out)
	w := pcapgo.NewWriter(buf)
	if o.nanos {
		w = pcapgo.NewWriterNanos(buf)
	}
	if err := w.WriteFileHeader(snaplen, linkType); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &Writer{buf: buf, w: w}, nil
}

// Write appends one Record.
func (w *Writer) Write(rec core.Record) error {
	if err := w.w.WritePacket(rec.Info, rec.Data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// Flush pushes buffered packets to the underlying stream.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}

// Close flushes and closes the file. Whatever was flushed is a valid capture prefix.
func (w *Writer) Close() error {
	ferr := w.buf.Flush()
	if w.file == nil {
		return ferr
	}
	cerr := w.file.Close()
	w.file = nil
	if ferr != nil {
		return fmt.Errorf("failed to flush capture: %w", ferr)
	}
	return cerr
}
