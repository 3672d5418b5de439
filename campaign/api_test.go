// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package campaign

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/rbfuzz/adapter"
	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/bucketstats"
	"github.com/NVIDIA/rbfuzz/conf"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/harness"
	"github.com/NVIDIA/rbfuzz/logger"
)

func smallConfig() Config {
	config := DefaultConfig()
	config.Runs = 40
	config.Workers = 4
	config.Run.MaxRounds = 50
	return config
}

// faultyConfig arms a predecessor fault that a duplicate-free run is all but
// certain to reach.
func faultyConfig(t *testing.T) Config {
	config := smallConfig()
	config.Runs = 60
	config.Run.ChooseSetup = false
	config.Run.Tree = "rbtree"
	config.Run.Rounds = 100
	config.Run.NoDuplicates = true
	config.Run.RestrictRange = true
	config.Run.RangeBound = 8
	config.Arm = map[string]uint32{halter.RBTreeWrongPredecessor: 1}
	return config
}

func TestRunPasses(t *testing.T) {
	for _, name := range adapter.Names() {
		config := smallConfig()
		config.Run.Tree = name
		config.MetricsFile = filepath.Join(t.TempDir(), "rbfuzz.prom")

		report, err := Run(context.Background(), config)
		require.Nil(t, err, name)
		assert.True(t, report.OK(), "%s: %v", name, report)
		assert.Equal(t, 40, report.Runs)
		assert.Equal(t, 40, report.Passed)
		assert.Empty(t, report.Failures)
		assert.NotEmpty(t, report.ID)
		assert.Contains(t, report.Stats, "Runs")
		assert.Contains(t, report.String(), "40 passed")

		metricsText, err := os.ReadFile(config.MetricsFile)
		require.Nil(t, err)
		assert.Contains(t, string(metricsText), `rbfuzz_runs_total{outcome="passed"} 40`)
		assert.Contains(t, string(metricsText), `rbfuzz_distinct_failures 0`)
	}
}

func TestRunIsReproducible(t *testing.T) {
	config := smallConfig()
	config.Seed = 1234
	config.Workers = 1

	first, err := Run(context.Background(), config)
	require.Nil(t, err)
	second, err := Run(context.Background(), config)
	require.Nil(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Passed, second.Passed)
}

func TestRunFindsAndReplaysInjectedFault(t *testing.T) {
	config := faultyConfig(t)
	config.FailureDir = filepath.Join(t.TempDir(), "failures")

	report, err := Run(context.Background(), config)
	require.Nil(t, err)
	require.False(t, report.OK())
	assert.Equal(t, config.Runs, report.Runs)
	assert.Equal(t, report.Runs, report.Passed+report.Failed+report.TimedOut)

	require.Len(t, report.Failures, 1, "every run fails the same way")
	failure := report.Failures[0]
	assert.Equal(t, blunder.EquivalenceViolation, failure.Kind)
	assert.Equal(t, "EquivalenceViolation PRED PRED of N has the same key", failure.Signature)
	assert.Equal(t, report.Failed, failure.Count)
	assert.True(t, strings.HasPrefix(failure.Input, "seed="))
	assert.NotEmpty(t, failure.Data)
	assert.Equal(t, filepath.Join(config.FailureDir, FailureFileName(failure.Signature)), failure.File)

	paths, err := CorpusFiles(config.FailureDir)
	require.Nil(t, err)
	require.Equal(t, []string{failure.File}, paths)

	replayed, err := Replay(context.Background(), config, paths)
	require.Nil(t, err)
	assert.Equal(t, 1, replayed.Runs)
	assert.Equal(t, 1, replayed.Failed)
	require.Len(t, replayed.Failures, 1)
	assert.Equal(t, failure.Signature, replayed.Failures[0].Signature)
	assert.Equal(t, failure.Step, replayed.Failures[0].Step)
	assert.Equal(t, failure.File, replayed.Failures[0].Input)
}

func TestReplayWithoutFaultPasses(t *testing.T) {
	config := faultyConfig(t)
	config.FailureDir = t.TempDir()

	report, err := Run(context.Background(), config)
	require.Nil(t, err)
	require.Len(t, report.Failures, 1)

	config.Arm = nil
	config.FailureDir = ""
	replayed, err := Replay(context.Background(), config, []string{report.Failures[0].File})
	require.Nil(t, err)
	assert.True(t, replayed.OK(), "the fault, not the input, caused the failure")
}

func TestFailFast(t *testing.T) {
	config := faultyConfig(t)
	config.Runs = 1000
	config.Workers = 2
	config.FailFast = true

	report, err := Run(context.Background(), config)
	require.Nil(t, err)
	assert.Less(t, report.Runs, config.Runs)
	assert.GreaterOrEqual(t, report.Failed, 1)
}

func TestCampaignDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	config := smallConfig()
	report, err := Run(ctx, config)
	assert.True(t, blunder.Is(err, blunder.TimeoutError), blunder.ErrorString(err))
	require.NotNil(t, report)
	assert.Less(t, report.Runs, config.Runs)
	assert.True(t, report.OK())
}

func TestExploreBackend(t *testing.T) {
	config := smallConfig()
	config.Backend = BackendExplore
	config.Runs = 0
	config.Workers = 1
	config.Run = harness.Config{
		Tree:          "rbtree",
		Rounds:        2,
		RestrictRange: true,
		RangeBound:    1,
		Teardown:      harness.TeardownChoose,
	}

	report, err := Run(context.Background(), config)
	require.Nil(t, err)
	assert.True(t, report.OK())
	assert.Greater(t, report.Runs, 15*15)

	config.Runs = 10
	report, err = Run(context.Background(), config)
	require.Nil(t, err)
	assert.Equal(t, 10, report.Runs)
}

func TestPairs(t *testing.T) {
	config := smallConfig()
	config.Pairs = true

	report, err := Run(context.Background(), config)
	require.Nil(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, config.Runs, report.Passed)
}

func TestSignature(t *testing.T) {
	a := blunder.WithAction(blunder.NewError(blunder.EquivalenceViolation, "17 should equal 12"), "SUCC:17")
	b := blunder.WithAction(blunder.NewError(blunder.EquivalenceViolation, "-4 should equal 0x2a\nmore"), "SUCC:-4")
	c := blunder.WithAction(blunder.NewError(blunder.EquivalenceViolation, "17 should equal 12"), "PRED:17")

	assert.Equal(t, "EquivalenceViolation SUCC N should equal N", Signature(a))
	assert.Equal(t, Signature(a), Signature(b))
	assert.NotEqual(t, Signature(a), Signature(c))
	assert.Equal(t, "StructuralViolation - red node N has a red child",
		Signature(blunder.NewError(blunder.StructuralViolation, "red node 2 has a red child")))
	assert.Equal(t, "", Signature(nil))

	assert.Equal(t, FailureFileName(Signature(a)), FailureFileName(Signature(b)))
	assert.NotEqual(t, FailureFileName(Signature(a)), FailureFileName(Signature(c)))
	assert.Len(t, FailureFileName(Signature(a)), 16+len(FailureFileSuffix))
}

func TestSmallerThan(t *testing.T) {
	short := &Failure{Step: 3, Data: make([]byte, 40)}
	long := &Failure{Step: 9, Data: make([]byte, 10)}
	unknown := &Failure{Step: -1, Data: make([]byte, 1)}
	shorter := &Failure{Step: 3, Data: make([]byte, 20)}

	assert.True(t, short.smallerThan(long))
	assert.False(t, long.smallerThan(short))
	assert.True(t, long.smallerThan(unknown))
	assert.False(t, unknown.smallerThan(long))
	assert.True(t, shorter.smallerThan(short))
}

func TestMetrics(t *testing.T) {
	m := newMetrics()
	m.record(harness.Result{Rounds: 3, Actions: map[harness.Kind]uint64{harness.Insert: 2, harness.Find: 1}, Sizes: []int{1, 2}}, nil)
	m.record(harness.Result{Rounds: 1}, blunder.NewError(blunder.StructuralViolation, "bad"))
	m.record(harness.Result{}, blunder.NewError(blunder.TimeoutError, "late"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("passed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("timeout")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.actions.WithLabelValues("INSERT")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.actions.WithLabelValues("TEARDOWN")))

	m.finish(&Report{Failures: []*Failure{{}, {}}, Elapsed: 2 * time.Second, MaxRSS: 1})
	assert.Equal(t, float64(2), testutil.ToFloat64(m.failures))
	assert.Equal(t, float64(1024), testutil.ToFloat64(m.maxRSS))
}

func TestConfigFromConfMap(t *testing.T) {
	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Run.Tree=btree",
		"Run.MaxRounds=77",
		"Campaign.Runs=12",
		"Campaign.Workers=3",
		"Campaign.Seed=-5",
		"Campaign.Backend=explore",
		"Campaign.Pairs=true",
		"Campaign.Timeout=90s",
		"Campaign.RunTimeout=5s",
		"Campaign.FailFast=true",
		"Campaign.FailureDir=/tmp/failures",
		"Campaign.MetricsFile=/tmp/rbfuzz.prom",
		"Campaign.StatsLogPeriod=10ms",
		"FaultInjection.Arm=rbtree.loseDelete:4",
	})
	require.Nil(t, err)

	config, err := ConfigFromConfMap(confMap)
	require.Nil(t, err)
	assert.Equal(t, "btree", config.Run.Tree)
	assert.Equal(t, 77, config.Run.MaxRounds)
	assert.True(t, config.Run.ChooseSetup)
	assert.Equal(t, 12, config.Runs)
	assert.Equal(t, 3, config.Workers)
	assert.Equal(t, int64(-5), config.Seed)
	assert.Equal(t, BackendExplore, config.Backend)
	assert.True(t, config.Pairs)
	assert.Equal(t, 90*time.Second, config.Timeout)
	assert.Equal(t, 5*time.Second, config.RunTimeout)
	assert.True(t, config.FailFast)
	assert.Equal(t, "/tmp/failures", config.FailureDir)
	assert.Equal(t, "/tmp/rbfuzz.prom", config.MetricsFile)
	assert.Equal(t, DefaultStatsLogPeriod, config.StatsLogPeriod, "too short a period is replaced")
	assert.Equal(t, map[string]uint32{halter.RBTreeLoseDelete: 4}, config.Arm)

	config, err = ConfigFromConfMap(conf.MakeConfMap())
	require.Nil(t, err)
	assert.Equal(t, DefaultConfig(), config)

	for _, bad := range []string{
		"Campaign.Backend=genetic",
		"Campaign.Workers=0",
		"Campaign.Runs=lots",
		"Campaign.Timeout=soon",
		"FaultInjection.Arm=rbtree.noSuchSite:1",
		"Run.Tree=splay",
	} {
		confMap, err = conf.MakeConfMapFromStrings([]string{bad})
		require.Nil(t, err)
		_, err = ConfigFromConfMap(confMap)
		assert.True(t, blunder.Is(err, blunder.ConfigError), bad)
	}
}

func TestBackendStrings(t *testing.T) {
	backend, err := ParseBackend("Random")
	require.Nil(t, err)
	assert.Equal(t, BackendRandom, backend)
	assert.Equal(t, "explore", BackendExplore.String())
	assert.Equal(t, "Backend(7)", Backend(7).String())
}

func TestProgressLogger(t *testing.T) {
	confMap, err := conf.MakeConfMapFromStrings([]string{"Logging.LogToConsole=false"})
	require.Nil(t, err)
	require.Nil(t, logger.Up(confMap))
	defer func() { _ = logger.Down() }()

	var target logger.LogTarget
	target.Init(100)
	logger.AddLogTarget(target)

	c, err := newCampaign(smallConfig())
	require.Nil(t, err)
	defer bucketstats.UnRegister("campaign", c.id)

	assert.Nil(t, startProgressLogger(c, 0))
	(*progressLogger)(nil).stop()

	c.record(job{input: "seed=1"}, harness.Result{Rounds: 1}, nil)

	progress := startProgressLogger(c, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	progress.stop()

	assert.True(t, target.Contains("progress (delta)"))
	assert.True(t, target.Contains("runs=1 of 40 passed=1 failed=0"))
	assert.True(t, target.Contains("Memory in Kibyte"))
}
