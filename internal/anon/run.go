package anon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/uuid"
	concurrently "github.com/tejzpr/ordered-concurrently/v3"

	"firestige.xyz/netanon/internal/capture"
	"firestige.xyz/netanon/internal/core"
	"firestige.xyz/netanon/internal/metrics"
	"firestige.xyz/netanon/internal/report"
)

const decodeQueueSize = 256

// RunOptions describes one capture anonymization.
type RunOptions struct {
	Input  string
	Output string

	Table      *PartitionTable
	Generator  Generator
	Classifier *Classifier // optional, shared between runs

	// Sink receives the audit records once the capture is flushed. Optional.
	Sink report.Sink

	// DecodeWorkers > 1 decodes frames concurrently; the engine still sees
	// them in input order.
	DecodeWorkers int

	// RunID tags logs and audit messages; generated when empty.
	RunID string
}

// Run anonymizes one capture file with a fresh Engine.
func Run(ctx context.Context, opts RunOptions) (Stats, error) {
	if opts.Table == nil || opts.Generator == nil {
		return Stats{}, fmt.Errorf("%w: partition table and generator are required", core.ErrConfigInvalid)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	logger := slog.Default().With("run_id", opts.RunID, "input", opts.Input)
	start := time.Now()

	r, err := capture.Open(opts.Input)
	if err != nil {
		return Stats{}, err
	}
	defer r.Close()

	link := r.LinkType()
	if !linkSupported(link) {
		return Stats{}, fmt.Errorf("%w: %d in %s", core.ErrUnsupportedLinkType, link, opts.Input)
	}

	w, err := capture.Create(opts.Output, r.Snaplen(), link, capture.WithNanos(r.Nanos()))
	if err != nil {
		return Stats{}, err
	}

	engine := NewEngine(opts.Table, opts.Generator,
		WithClassifier(opts.Classifier),
		WithLogger(logger))

	logger.Info("anonymization started",
		"output", opts.Output,
		"link_type", link.String(),
		"decode_workers", opts.DecodeWorkers)

	var read, written int
	if opts.DecodeWorkers > 1 {
		read, written, err = runParallel(ctx, r, w, engine, link, opts.DecodeWorkers)
	} else {
		read, written, err = runSequential(ctx, r, w, engine, link)
	}
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close capture %s: %w", opts.Output, cerr)
	}

	stats := engine.Stats()
	stats.Read = read
	stats.Written = written
	metrics.RunDurationSeconds.WithLabelValues("anonymize").Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("anonymization aborted", "packets", written, "error", err)
		return stats, err
	}

	if opts.Sink != nil {
		if err := opts.Sink.Emit(ctx, opts.RunID, engine.Audit()); err != nil {
			return stats, fmt.Errorf("failed to emit audit records: %w", err)
		}
	}
	metrics.AuditRecordsTotal.Add(float64(stats.AuditRecords))

	logger.Info("anonymization finished",
		"packets", stats.Written,
		"rewritten", stats.Rewritten,
		"non_ipv4", stats.NonIPv4,
		"rewrite_errors", stats.RewriteErrors,
		"replacements", stats.Replacements,
		"audit_records", stats.AuditRecords,
		"duration", time.Since(start))
	return stats, nil
}

func linkSupported(lt layers.LinkType) bool {
	return lt.String() != "UnknownLinkType"
}

func runSequential(ctx context.Context, r *capture.Reader, w *capture.Writer, e *Engine, link gopacket.Decoder) (read, written int, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return read, written, err
		}
		rec, err := r.Next()
		if err == io.EOF {
			return read, written, nil
		}
		if err != nil {
			return read, written, err
		}
		read++
		metrics.PacketsTotal.WithLabelValues(metrics.StageRead).Inc()

		if err := w.Write(e.Process(rec, link)); err != nil {
			return read, written, err
		}
		written++
		metrics.PacketsTotal.WithLabelValues(metrics.StageWritten).Inc()
	}
}

// decodeJob is the unit of work of the parallel decode stage.
type decodeJob struct {
	rec  core.Record
	link gopacket.Decoder
}

func (j decodeJob) Run(context.Context) interface{} {
	return Decode(j.rec, j.link)
}

func runParallel(ctx context.Context, r *capture.Reader, w *capture.Writer, e *Engine, link gopacket.Decoder, workers int) (read, written int, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan concurrently.WorkFunction, decodeQueueSize)
	out := concurrently.Process(ctx, in, &concurrently.Options{
		PoolSize:         workers,
		OutChannelBuffer: decodeQueueSize,
	})

	readErr := make(chan error, 1)
	go func() {
		defer close(in)
		for {
			rec, err := r.Next()
			if err == io.EOF {
				readErr <- nil
				return
			}
			if err != nil {
				readErr <- err
				return
			}
			metrics.PacketsTotal.WithLabelValues(metrics.StageRead).Inc()
			select {
			case in <- decodeJob{rec: rec, link: link}:
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
	}()

	drain := func() {
		cancel()
		go func() {
			for range out {
			}
		}()
	}

	for item := range out {
		read++
		f := item.Value.(Frame)
		if werr := w.Write(e.Apply(f)); werr != nil {
			drain()
			// the reader must be done before Run closes the capture
			<-readErr
			return read, written, werr
		}
		written++
		metrics.PacketsTotal.WithLabelValues(metrics.StageWritten).Inc()
	}

	if err := <-readErr; err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return read, written, ctx.Err()
		}
		return read, written, err
	}
	if err := ctx.Err(); err != nil {
		return read, written, err
	}
	return read, written, nil
}
