package anon

import (
	"log/slog"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/netanon/internal/core"
	"firestige.xyz/netanon/internal/metrics"
)

// Frame is a Record with its IPv4 header located. Decoding is independent of
// engine state, so frames can be produced concurrently.
type Frame struct {
	Record core.Record
	ip     *layers.IPv4
	offset int
}

// IsIPv4 reports whether an IPv4 header was found.
func (f Frame) IsIPv4() bool { return f.ip != nil }

// Decode parses rec starting at the given link layer and locates its first
// IPv4 header.
func Decode(rec core.Record, link gopacket.Decoder) Frame {
	f := Frame{Record: rec}
	pkt := gopacket.NewPacket(rec.Data, link, gopacket.DecodeOptions{NoCopy: true})

	offset := 0
	for _, l := range pkt.Layers() {
		if l.LayerType() == layers.LayerTypeIPv4 {
			ip := l.(*layers.IPv4)
			if offset+len(ip.Contents) > len(rec.Data) {
				return f
			}
			f.ip = ip
			f.offset = offset
			return f
		}
		offset += len(l.LayerContents())
	}
	return f
}

// Stats summarizes one run.
type Stats struct {
	Read          int
	Written       int
	Rewritten     int
	NonIPv4       int
	RewriteErrors int
	Replacements  int
	AuditRecords  int
}

// Engine substitutes public IPv4 addresses for one run. It owns the
// replacement cache and audit log and is not safe for concurrent use.
type Engine struct {
	classifier *Classifier
	table      *PartitionTable
	gen        Generator
	cache      *ReplacementCache
	audit      *AuditLog
	stats      Stats
	logger     *slog.Logger
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClassifier shares a prebuilt classifier between engines.
func WithClassifier(c *Classifier) EngineOption {
	return func(e *Engine) { e.classifier = c }
}

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine with an empty cache and audit log.
func NewEngine(table *PartitionTable, gen Generator, opts ...EngineOption) *Engine {
	e := &Engine{
		table: table,
		gen:   gen,
		cache: NewReplacementCache(),
		audit: NewAuditLog(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.classifier == nil {
		e.classifier = NewClassifier()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Process decodes and applies one record.
func (e *Engine) Process(rec core.Record, link gopacket.Decoder) core.Record {
	return e.Apply(Decode(rec, link))
}

// Apply substitutes the public addresses of f. Source and destination are
// both judged against the addresses seen on entry. The input record is
// returned as is when nothing changes.
func (e *Engine) Apply(f Frame) core.Record {
	if f.ip == nil {
		e.stats.NonIPv4++
		metrics.PacketsTotal.WithLabelValues(metrics.StageNonIPv4).Inc()
		return f.Record
	}

	src, ok1 := netip.AddrFromSlice(f.ip.SrcIP)
	dst, ok2 := netip.AddrFromSlice(f.ip.DstIP)
	if !ok1 || !ok2 {
		return f.Record
	}
	src, dst = src.Unmap(), dst.Unmap()

	newSrc := e.substitute(src, dst)
	newDst := e.substitute(dst, src)
	if newSrc == src && newDst == dst {
		return f.Record
	}

	data, err := rewriteIPv4(f.Record.Data, f.offset, f.ip, newSrc, newDst)
	if err != nil {
		e.stats.RewriteErrors++
		metrics.RewriteErrorsTotal.Inc()
		e.logger.Debug("ipv4 rewrite failed, passing packet through",
			"src", src.String(), "dst", dst.String(), "error", err)
		return f.Record
	}
	e.stats.Rewritten++
	metrics.PacketsTotal.WithLabelValues(metrics.StageRewritten).Inc()
	return f.Record.WithData(data)
}

// substitute returns the replacement for subject, or subject itself when it
// is not public. peer picks the pool on first sight and, when it belongs to a
// partition, the audit triple.
func (e *Engine) substitute(subject, peer netip.Addr) netip.Addr {
	if !e.classifier.IsPublicAddr(subject) {
		return subject
	}

	repl, ok := e.cache.Get(subject)
	if !ok {
		pool, name := e.table.PoolFor(peer)
		repl = e.gen.Generate(pool, subject)
		e.cache.Add(subject, repl)
		metrics.ReplacementsTotal.WithLabelValues(name).Inc()
		e.logger.Debug("new replacement",
			"original", subject.String(), "replacement", repl.String(), "partition", name)
	}

	if e.table.IsKnown(peer) {
		e.audit.Add(core.AuditRecord{Private: peer, Public: subject, Replacement: repl})
	}
	return repl
}

// Lookup returns the replacement recorded for original.
func (e *Engine) Lookup(original netip.Addr) (netip.Addr, bool) {
	return e.cache.Get(original)
}

// Audit returns the unique audit records in first-seen order.
func (e *Engine) Audit() []core.AuditRecord { return e.audit.Records() }

// Stats returns the engine counters. Read and Written are filled by Run.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Replacements = e.cache.Len()
	s.AuditRecords = e.audit.Len()
	return s
}
