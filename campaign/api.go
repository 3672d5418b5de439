// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package campaign drives many harness runs, sharded over a pool of workers,
// and reduces their outcomes to a Report.
//
// Every run draws from a source.Recorder so a failing run can be replayed
// byte for byte through source.Bytes: Replay() does just that for every file
// in a corpus directory.  Failures are grouped by Signature(); of each group
// only the input with the fewest rounds (then the fewest bytes) is kept.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/creachadair/cityhash"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/bucketstats"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/harness"
	"github.com/NVIDIA/rbfuzz/logger"
	"github.com/NVIDIA/rbfuzz/source"
	"github.com/NVIDIA/rbfuzz/utils"
)

// FailureFileSuffix names the files written to Config.FailureDir.
const FailureFileSuffix = ".fail"

// Failure is the smallest known input for one failure signature.
type Failure struct {
	Signature string
	Kind      blunder.ViolationKind
	// Step is the round the failure surfaced in, or -1 if not recorded.
	Step int
	// Input names the run: "seed=N", "explore#N" or a corpus path.
	Input string
	// Data replays the failure through source.Bytes under the same Config.Run.
	Data []byte
	// Count is how many runs failed with this signature.
	Count int
	// File is where Data was written, if anywhere.
	File string
	Err  error
}

// Report summarizes a campaign.
type Report struct {
	ID       string
	Runs     int
	Passed   int
	Failed   int
	TimedOut int
	// Failures is sorted by Signature.
	Failures []*Failure
	Elapsed  time.Duration
	// MaxRSS is in KiB.
	MaxRSS uint64
	// Stats is the bucketstats rendering of the campaign's counters.
	Stats string
}

// OK reports whether every run passed or timed out.
func (report *Report) OK() bool {
	return 0 == report.Failed
}

func (report *Report) String() string {
	return fmt.Sprintf("campaign %s: %d runs, %d passed, %d failed, %d timed out, %d distinct failures in %v (maxrss %d KiB)",
		report.ID, report.Runs, report.Passed, report.Failed, report.TimedOut, len(report.Failures), report.Elapsed, report.MaxRSS)
}

var numberRE = regexp.MustCompile(`0x[0-9a-fA-F]+|-?[0-9]+`)

// Signature groups failures that are very likely the same bug: the violation
// kind, the action kind, and the first line of the message with every number
// replaced by N.
func Signature(err error) string {
	if nil == err {
		return ""
	}

	actionKind := blunder.Action(err)
	if i := strings.IndexByte(actionKind, ':'); 0 <= i {
		actionKind = actionKind[:i]
	}
	if "" == actionKind {
		actionKind = "-"
	}

	message := err.Error()
	if i := strings.IndexByte(message, '\n'); 0 <= i {
		message = message[:i]
	}

	return fmt.Sprintf("%v %s %s", blunder.Kind(err), actionKind, numberRE.ReplaceAllString(message, "N"))
}

// FailureFileName is the name a failure's Data is written under.
func FailureFileName(signature string) string {
	return fmt.Sprintf("%016x%s", cityhash.Hash64([]byte(signature)), FailureFileSuffix)
}

// job is one run: where its choices come from and how to recover them.
type job struct {
	input    string
	src      source.Source
	recorded func() []byte
}

type campaign struct {
	config  Config
	id      string
	stats   *campaignStats
	metrics *metrics
	cancel  context.CancelFunc

	sync.Mutex
	runs     int
	passed   int
	failed   int
	timedOut int
	failures map[string]*Failure
}

func newCampaign(config Config) (c *campaign, err error) {
	err = config.Validate()
	if nil != err {
		return
	}

	c = &campaign{
		config:   config,
		id:       uuid.New().String(),
		stats:    &campaignStats{},
		metrics:  newMetrics(),
		failures: make(map[string]*Failure),
	}
	bucketstats.Register("campaign", c.id, c.stats)

	logger.Infof("campaign %s: %d runs on %d workers, backend=%v pairs=%v run=[%v]",
		c.id, config.Runs, config.Workers, config.Backend, config.Pairs, config.Run)

	return
}

func (c *campaign) newHalter() (h *halter.Halter, err error) {
	h = halter.New()
	for label, count := range c.config.Arm {
		err = h.Arm(label, count)
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
	}
	return
}

func (c *campaign) execute(ctx context.Context, j job) (err error) {
	h, err := c.newHalter()
	if nil != err {
		return
	}

	if 0 < c.config.RunTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RunTimeout)
		defer cancel()
	}

	var (
		result harness.Result
		runErr error
	)
	if c.config.Pairs {
		result, runErr = harness.RunInsertDeletePairs(ctx, c.config.Run, j.src, h)
	} else {
		result, runErr = harness.Execute(ctx, c.config.Run, j.src, h)
	}

	c.record(j, result, runErr)
	return
}

func (c *campaign) record(j job, result harness.Result, err error) {
	c.stats.record(result, err)

	c.Lock()
	defer c.Unlock()

	c.metrics.record(result, err)
	c.runs++

	switch {
	case nil == err:
		c.passed++
		logger.Tracef("%s: passed %d rounds of [%v]", j.input, result.Rounds, result.Config)
		return
	case blunder.Is(err, blunder.TimeoutError):
		c.timedOut++
		logger.Tracef("%s: timed out after %d rounds", j.input, result.Rounds)
		return
	}

	c.failed++

	step, ok := blunder.Step(err)
	if !ok {
		step = -1
	}
	candidate := &Failure{
		Signature: Signature(err),
		Kind:      blunder.Kind(err),
		Step:      step,
		Input:     j.input,
		Data:      j.recorded(),
		Count:     1,
		Err:       err,
	}

	kept, ok := c.failures[candidate.Signature]
	if !ok {
		logger.ErrorfWithError(err, "%s: new failure of kind %v under [%v]", j.input, candidate.Kind, result.Config)
		c.failures[candidate.Signature] = candidate
	} else {
		candidate.Count = kept.Count + 1
		if candidate.smallerThan(kept) {
			c.failures[candidate.Signature] = candidate
		} else {
			kept.Count = candidate.Count
		}
	}

	if c.config.FailFast && (nil != c.cancel) {
		c.cancel()
	}
}

func (failure *Failure) smallerThan(other *Failure) bool {
	if failure.Step != other.Step {
		return (0 <= failure.Step) && ((0 > other.Step) || (failure.Step < other.Step))
	}
	return len(failure.Data) < len(other.Data)
}

// shard runs every job from jobs over config.Workers goroutines.
func (c *campaign) shard(ctx context.Context, jobs func(ctx context.Context, out chan<- job) error) (err error) {
	ctx, c.cancel = context.WithCancel(ctx)
	defer c.cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	queue := make(chan job)

	group.Go(func() error {
		defer close(queue)
		return jobs(groupCtx, queue)
	})

	for i := 0; i < c.config.Workers; i++ {
		group.Go(func() error {
			for j := range queue {
				if nil != groupCtx.Err() {
					continue
				}
				jobErr := c.execute(groupCtx, j)
				if nil != jobErr {
					return jobErr
				}
			}
			return nil
		})
	}

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return
}

func (c *campaign) finish(ctx context.Context, stopwatch *utils.Stopwatch, err error) (report *Report, finishErr error) {
	defer bucketstats.UnRegister("campaign", c.id)

	c.Lock()
	report = &Report{
		ID:       c.id,
		Runs:     c.runs,
		Passed:   c.passed,
		Failed:   c.failed,
		TimedOut: c.timedOut,
		Failures: make([]*Failure, 0, len(c.failures)),
	}
	for _, failure := range c.failures {
		report.Failures = append(report.Failures, failure)
	}
	c.Unlock()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Signature < report.Failures[j].Signature
	})

	report.Elapsed = stopwatch.Stop()
	report.MaxRSS = utils.MaxRSS()
	report.Stats = bucketstats.SprintStats(bucketstats.StatFormatParsable1, "campaign", c.id)

	finishErr = err
	if (nil == finishErr) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		finishErr = blunder.NewError(blunder.TimeoutError, "campaign %s: deadline expired after %d of %d runs", c.id, report.Runs, c.config.Runs)
	}

	if "" != c.config.FailureDir {
		writeErr := writeFailures(c.config.FailureDir, report.Failures)
		if (nil != writeErr) && (nil == finishErr) {
			finishErr = writeErr
		}
	}

	c.metrics.finish(report)
	if "" != c.config.MetricsFile {
		writeErr := c.metrics.writeTextfile(c.config.MetricsFile)
		if (nil != writeErr) && (nil == finishErr) {
			finishErr = writeErr
		}
	}

	logger.Infof("%v", report)
	for _, failure := range report.Failures {
		logger.Infof("  %dx %s (smallest: %s, step %d, %d bytes)", failure.Count, failure.Signature, failure.Input, failure.Step, len(failure.Data))
	}

	return
}

func writeFailures(dir string, failures []*Failure) (err error) {
	err = os.MkdirAll(dir, 0755)
	if nil != err {
		return
	}
	for _, failure := range failures {
		failure.File = filepath.Join(dir, FailureFileName(failure.Signature))
		err = os.WriteFile(failure.File, failure.Data, 0644)
		if nil != err {
			return
		}
	}
	return
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if 0 < timeout {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// Run executes config.Runs runs and reports on them.  A non-nil error means
// the campaign itself could not complete (bad config, deadline, I/O); failing
// runs are reported in the Report, see Report.OK().
func Run(ctx context.Context, config Config) (report *Report, err error) {
	c, err := newCampaign(config)
	if nil != err {
		return
	}

	stopwatch := utils.NewStopwatch()
	ctx, cancel := withTimeout(ctx, config.Timeout)
	defer cancel()

	progress := startProgressLogger(c, config.StatsLogPeriod)

	switch config.Backend {
	case BackendExplore:
		err = c.explore(ctx)
	default:
		err = c.shard(ctx, func(ctx context.Context, out chan<- job) error {
			for i := 0; i < config.Runs; i++ {
				seed := config.Seed + int64(i)
				recorder := source.NewRecorder(source.NewRandom(seed))
				j := job{
					input:    fmt.Sprintf("seed=%d", seed),
					src:      recorder,
					recorded: recorder.Recorded,
				}
				select {
				case out <- j:
				case <-ctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	progress.stop()
	return c.finish(ctx, stopwatch, err)
}

// explore walks choice sequences depth first until config.Runs runs have been
// made or the space is exhausted.  It is single threaded: each sequence
// depends on the choices made by the run before it.
func (c *campaign) explore(ctx context.Context) (err error) {
	ctx, c.cancel = context.WithCancel(ctx)
	defer c.cancel()

	explorer := source.NewExplorer()
	explorer.MaxRuns = c.config.Runs
	for explorer.Next() {
		if nil != ctx.Err() {
			break
		}
		recorder := source.NewRecorder(explorer)
		j := job{
			input:    fmt.Sprintf("explore#%d", explorer.Runs()),
			src:      recorder,
			recorded: recorder.Recorded,
		}
		err = c.execute(ctx, j)
		if nil != err {
			return
		}
	}

	if explorer.Exhausted() {
		logger.Infof("campaign %s: choice space exhausted after %d runs", c.id, explorer.Runs())
	}
	err = explorer.Err()
	return
}

// CorpusFiles lists the regular files in dir, sorted by name.
func CorpusFiles(dir string) (paths []string, err error) {
	entries, err := os.ReadDir(dir)
	if nil != err {
		err = blunder.AddKind(err, blunder.ConfigError)
		return
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return
}

// Replay runs config.Run over every file in paths, each file supplying the
// choices of one run through source.Bytes.  config.Runs and config.Backend
// are ignored.
func Replay(ctx context.Context, config Config, paths []string) (report *Report, err error) {
	config.Runs = len(paths)

	c, err := newCampaign(config)
	if nil != err {
		return
	}

	stopwatch := utils.NewStopwatch()
	ctx, cancel := withTimeout(ctx, config.Timeout)
	defer cancel()

	progress := startProgressLogger(c, config.StatsLogPeriod)

	err = c.shard(ctx, func(ctx context.Context, out chan<- job) error {
		for _, path := range paths {
			data, readErr := os.ReadFile(path)
			if nil != readErr {
				return readErr
			}
			j := job{
				input:    path,
				src:      source.NewBytes(data),
				recorded: func() []byte { return data },
			}
			select {
			case out <- j:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	progress.stop()
	return c.finish(ctx, stopwatch, err)
}
