package anon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netanon/internal/core"
)

func TestPlanJobs(t *testing.T) {
	jobs := PlanJobs([]string{"/data/day1.pcap", "capture.pcapng", "noext"}, "/out")
	assert.Equal(t, []Job{
		{Input: "/data/day1.pcap", Output: "/out/anonymized_day1.pcap", Audit: "/out/day1_ip_replacements.csv"},
		{Input: "capture.pcapng", Output: "/out/anonymized_capture.pcapng", Audit: "/out/capture_ip_replacements.csv"},
		{Input: "noext", Output: "/out/anonymized_noext", Audit: "/out/noext_ip_replacements.csv"},
	}, jobs)
}

func TestCheckJobs(t *testing.T) {
	t.Run("SameNameDifferentDirectories", func(t *testing.T) {
		jobs := PlanJobs([]string{"day1/capture.pcap", "day2/capture.pcap"}, "out")
		err := CheckJobs(jobs)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfigInvalid)
	})

	t.Run("OutputIsInput", func(t *testing.T) {
		err := CheckJobs([]Job{{Input: "in.pcap", Output: "./in.pcap", Audit: "audit.csv"}})
		assert.ErrorIs(t, err, core.ErrConfigInvalid)
	})

	t.Run("AuditIsOutput", func(t *testing.T) {
		err := CheckJobs([]Job{{Input: "in.pcap", Output: "out.pcap", Audit: "out.pcap"}})
		assert.ErrorIs(t, err, core.ErrConfigInvalid)
	})

	t.Run("Distinct", func(t *testing.T) {
		assert.NoError(t, CheckJobs(PlanJobs([]string{"day1/a.pcap", "day2/b.pcap"}, "out")))
	})
}

func TestBatchRejectsCollidingOutputs(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, sub := range []string{"day1", "day2"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, sub), 0o755))
		p := filepath.Join(dir, sub, "capture.pcap")
		writePcap(t, p, mixedTraffic(t))
		inputs = append(inputs, p)
	}
	outDir := filepath.Join(dir, "out")

	results, err := Batch(context.Background(), BatchOptions{
		Jobs:         PlanJobs(inputs, outDir),
		Parallel:     2,
		Table:        mustTable(t),
		NewGenerator: func() (Generator, error) { return NewRandomGenerator(0), nil },
	})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	assert.Nil(t, results)
	assert.NoFileExists(t, filepath.Join(outDir, "anonymized_capture.pcap"))
}

func TestBatchRunsEveryJob(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.pcap", "b.pcap", "c.pcap"} {
		p := filepath.Join(dir, name)
		writePcap(t, p, mixedTraffic(t))
		inputs = append(inputs, p)
	}
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(outDir, 0o755))

	results, err := Batch(context.Background(), BatchOptions{
		Jobs:         PlanJobs(inputs, outDir),
		Parallel:     2,
		Table:        mustTable(t, group("APP", "10.1.0.0/16", "192.168.0.2")),
		NewGenerator: func() (Generator, error) { return NewRandomGenerator(0), nil },
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	runIDs := map[string]bool{}
	for _, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, 40, r.Stats.Written)
		assert.FileExists(t, r.Job.Output)
		assert.FileExists(t, r.Job.Audit)
		runIDs[r.RunID] = true
	}
	assert.Len(t, runIDs, 3)
}

func TestBatchJoinsErrors(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pcap")
	writePcap(t, good, mixedTraffic(t))

	results, err := Batch(context.Background(), BatchOptions{
		Jobs:         PlanJobs([]string{good, filepath.Join(dir, "missing.pcap")}, dir),
		Parallel:     2,
		Table:        mustTable(t),
		NewGenerator: func() (Generator, error) { return NewRandomGenerator(0), nil },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.pcap")
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
}

func TestBatchRequiresGeneratorFactory(t *testing.T) {
	_, err := Batch(context.Background(), BatchOptions{})
	assert.Error(t, err)
}
