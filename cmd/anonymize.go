package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"firestige.xyz/netanon/internal/anon"
	"firestige.xyz/netanon/internal/config"
	"firestige.xyz/netanon/internal/report"
)

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize",
	Short: "Replace public IPv4 addresses in captures",
	Long: `Replace public IPv4 addresses in pcap/pcapng captures with synthetic
addresses drawn from the subnet of the private peer's partition.

A single capture can be written to an explicit path:
  netanon anonymize -c netanon.yml -i in.pcap --output out.pcap --audit audit.csv

Several captures are processed concurrently into a directory, producing
anonymized_<name> and <stem>_ip_replacements.csv for each:
  netanon anonymize -c netanon.yml -i day1.pcap -i day2.pcap -o out/`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		if err := runAnonymize(ctx, globalCfg, anonymizeOpts, cmd.OutOrStdout()); err != nil {
			exitWithError("anonymize failed", err)
		}
	},
}

type anonymizeOptions struct {
	inputs        []string
	outputDir     string
	output        string
	audit         string
	decodeWorkers int
	parallel      int
}

var anonymizeOpts anonymizeOptions

func init() {
	f := anonymizeCmd.Flags()
	f.StringSliceVarP(&anonymizeOpts.inputs, "input", "i", nil, "input capture (repeatable, required)")
	f.StringVarP(&anonymizeOpts.outputDir, "output-dir", "o", ".", "output directory for batch mode")
	f.StringVar(&anonymizeOpts.output, "output", "", "output capture path (single input only)")
	f.StringVar(&anonymizeOpts.audit, "audit", "", "audit table path (single input only)")
	f.IntVar(&anonymizeOpts.decodeWorkers, "decode-workers", 0, "override anonymize.decode_workers")
	f.IntVar(&anonymizeOpts.parallel, "parallel", 0, "override anonymize.parallel")
	anonymizeCmd.MarkFlagRequired("input")
}

func runAnonymize(ctx context.Context, cfg *config.GlobalConfig, opts anonymizeOptions, w io.Writer) error {
	if len(opts.inputs) == 0 {
		return errors.New("at least one --input is required")
	}
	a := cfg.Anonymize
	if opts.decodeWorkers > 0 {
		a.DecodeWorkers = opts.decodeWorkers
	}
	if opts.parallel > 0 {
		a.Parallel = opts.parallel
	}

	// Everything configurable is checked before any output is opened.
	table, err := anon.BuildPartitionTable(a, cfg.Partitions)
	if err != nil {
		return err
	}
	newGenerator := func() (anon.Generator, error) { return anon.NewGenerator(a) }
	if _, err := newGenerator(); err != nil {
		return err
	}

	var jobs []anon.Job
	if opts.output != "" {
		if len(opts.inputs) != 1 {
			return fmt.Errorf("--output takes exactly one input, got %d", len(opts.inputs))
		}
		jobs = []anon.Job{{Input: opts.inputs[0], Output: opts.output, Audit: singleAuditPath(opts)}}
	} else {
		jobs = anon.PlanJobs(opts.inputs, opts.outputDir)
	}
	if err := anon.CheckJobs(jobs); err != nil {
		return err
	}

	var kafkaSink report.Sink
	if cfg.Audit.Kafka.Enabled {
		ks, err := report.NewKafkaSink(cfg.Audit.Kafka)
		if err != nil {
			return err
		}
		defer ks.Close()
		kafkaSink = ks
	}

	stopMetrics := startMetrics(ctx, cfg.Metrics)
	defer stopMetrics()

	if opts.output != "" {
		return anonymizeOne(ctx, jobs[0], a, table, newGenerator, kafkaSink, w)
	}

	if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	results, err := anon.Batch(ctx, anon.BatchOptions{
		Jobs:          jobs,
		Parallel:      a.Parallel,
		Table:         table,
		NewGenerator:  newGenerator,
		Sink:          kafkaSink,
		DecodeWorkers: a.DecodeWorkers,
	})
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "FAILED %s: %v\n", r.Job.Input, r.Err)
			continue
		}
		printStats(w, r.Job.Input, r.Job.Output, r.Job.Audit, r.Stats)
	}
	return err
}

// singleAuditPath is --audit, or <stem>_ip_replacements.csv next to --output.
func singleAuditPath(opts anonymizeOptions) string {
	if opts.audit != "" {
		return opts.audit
	}
	base := filepath.Base(opts.inputs[0])
	return filepath.Join(filepath.Dir(opts.output), strings.TrimSuffix(base, filepath.Ext(base))+"_ip_replacements.csv")
}

func anonymizeOne(ctx context.Context, job anon.Job, a config.AnonymizeConfig,
	table *anon.PartitionTable, newGenerator func() (anon.Generator, error), extra report.Sink, w io.Writer) error {
	gen, err := newGenerator()
	if err != nil {
		return err
	}

	var sink report.Sink = report.NewCSVSink(job.Audit)
	if extra != nil {
		sink = report.Multi{sink, extra}
	}
	stats, err := anon.Run(ctx, anon.RunOptions{
		Input:         job.Input,
		Output:        job.Output,
		Table:         table,
		Generator:     gen,
		Sink:          sink,
		DecodeWorkers: a.DecodeWorkers,
		RunID:         uuid.NewString(),
	})
	if err != nil {
		return err
	}
	printStats(w, job.Input, job.Output, job.Audit, stats)
	return nil
}

func printStats(w io.Writer, input, output, audit string, s anon.Stats) {
	fmt.Fprintf(w, "%s -> %s: %d packets, %d rewritten, %d non-IPv4, %d replacements, %d audit rows (%s)\n",
		input, output, s.Written, s.Rewritten, s.NonIPv4, s.Replacements, s.AuditRecords, audit)
	if s.RewriteErrors > 0 {
		fmt.Fprintf(w, "  %d packets passed through after rewrite errors\n", s.RewriteErrors)
	}
}
