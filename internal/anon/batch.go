package anon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"firestige.xyz/netanon/internal/core"
	"firestige.xyz/netanon/internal/report"
)

// Job is one capture of a batch with its derived output paths.
type Job struct {
	Input  string
	Output string
	Audit  string
}

// PlanJobs derives anonymized_<base> and <stem>_ip_replacements.csv in outDir
// for every input.
func PlanJobs(inputs []string, outDir string) []Job {
	jobs := make([]Job, 0, len(inputs))
	for _, in := range inputs {
		base := filepath.Base(in)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		jobs = append(jobs, Job{
			Input:  in,
			Output: filepath.Join(outDir, "anonymized_"+base),
			Audit:  filepath.Join(outDir, stem+"_ip_replacements.csv"),
		})
	}
	return jobs
}

// CheckJobs rejects jobs whose outputs would clobber an input or each other,
// such as same-named inputs from different directories.
func CheckJobs(jobs []Job) error {
	owner := make(map[string]string)
	for _, j := range jobs {
		owner[cleanPath(j.Input)] = j.Input
	}
	for _, j := range jobs {
		for _, out := range []string{j.Output, j.Audit} {
			if out == "" {
				continue
			}
			key := cleanPath(out)
			if prev, ok := owner[key]; ok {
				return fmt.Errorf("%w: output %s of %s collides with %s",
					core.ErrConfigInvalid, out, j.Input, prev)
			}
			owner[key] = j.Input
		}
	}
	return nil
}

func cleanPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// BatchOptions configures a batch. Each job gets its own Engine and
// generator; nothing but the read-only table and classifier is shared.
type BatchOptions struct {
	Jobs     []Job
	Parallel int

	Table        *PartitionTable
	NewGenerator func() (Generator, error)
	Classifier   *Classifier

	// Sink is added to every job's CSV sink; it must be safe for concurrent use.
	Sink          report.Sink
	DecodeWorkers int
}

// JobResult is the outcome of one job.
type JobResult struct {
	Job   Job
	RunID string
	Stats Stats
	Err   error
}

// Batch runs every job on a pool of opts.Parallel workers and returns one
// result per job in job order, plus the joined job errors.
func Batch(ctx context.Context, opts BatchOptions) ([]JobResult, error) {
	if opts.NewGenerator == nil {
		return nil, errors.New("batch requires a generator factory")
	}
	if err := CheckJobs(opts.Jobs); err != nil {
		return nil, err
	}
	size := opts.Parallel
	if size < 1 {
		size = 1
	}
	if opts.Classifier == nil {
		opts.Classifier = NewClassifier()
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]JobResult, len(opts.Jobs))
	var wg sync.WaitGroup
	for i, job := range opts.Jobs {
		results[i] = JobResult{Job: job, RunID: uuid.NewString()}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					slog.Error("batch job panic", "input", job.Input, "panic", p)
					results[i].Err = fmt.Errorf("panic: %v", p)
				}
			}()
			results[i].Stats, results[i].Err = runJob(ctx, opts, job, results[i].RunID)
		})
		if submitErr != nil {
			wg.Done()
			results[i].Err = fmt.Errorf("submit %s: %w", job.Input, submitErr)
		}
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Job.Input, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func runJob(ctx context.Context, opts BatchOptions, job Job, runID string) (Stats, error) {
	gen, err := opts.NewGenerator()
	if err != nil {
		return Stats{}, err
	}
	var sink report.Sink = report.NewCSVSink(job.Audit)
	if opts.Sink != nil {
		sink = report.Multi{sink, opts.Sink}
	}
	return Run(ctx, RunOptions{
		Input:         job.Input,
		Output:        job.Output,
		Table:         opts.Table,
		Generator:     gen,
		Classifier:    opts.Classifier,
		Sink:          sink,
		DecodeWorkers: opts.DecodeWorkers,
		RunID:         runID,
	})
}
