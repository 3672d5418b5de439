// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package harness drives a tree under test and an oracle.Container through
// the same sequence of actions and reports the first disagreement.
//
// Every choice a run makes (which action, which key, which info, whether to
// drain at the end) is asked of a source.Source, so the same run can be
// driven by a seeded random generator, a replayed byte string, rapid, or the
// exhaustive Explorer.  Failures are blunder errors carrying the violation
// kind, the round, the rendered action and the expected/observed values.
package harness

import (
	"context"
	"time"

	"github.com/NVIDIA/rbfuzz/adapter"
	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/logger"
	"github.com/NVIDIA/rbfuzz/oracle"
	"github.com/NVIDIA/rbfuzz/source"
	"github.com/NVIDIA/rbfuzz/utils"
)

// Result summarizes a run, complete or not.
type Result struct {
	Config Config // after ChooseSetup
	// Rounds counts the rounds that completed without a failure.
	Rounds  int
	Actions map[Kind]uint64
	// Sizes holds the oracle's size at every full cross-check.
	Sizes    []int
	TornDown bool
	Elapsed  time.Duration
}

// Run is the context of a single run: its configuration, its two models and
// the source it draws from.  A Run is not safe for concurrent use.
type Run struct {
	config Config
	src    source.Source
	picker oracle.Picker
	tree   adapter.Tree
	oracle *oracle.Container
	round  int
	result Result
	closed bool
}

// New validates config, lets src pick the setup if config.ChooseSetup, and
// returns a Run over an empty tree and an empty oracle.  h, if non-nil, is
// handed to the tree for fault injection.
func New(config Config, src source.Source, h *halter.Halter) (run *Run, err error) {
	err = config.Validate()
	if nil != err {
		return
	}
	if config.ChooseSetup {
		config = chooseSetup(config, src)
	}

	tree, err := adapter.New(config.Tree, h)
	if nil != err {
		return
	}

	run = &Run{
		config: config,
		src:    src,
		picker: src,
		tree:   tree,
		oracle: oracle.New(),
		result: Result{
			Config:  config,
			Actions: make(map[Kind]uint64),
		},
	}

	if config.NoDuplicates {
		logger.Tracef("No duplicates allowed.")
	}
	logger.Tracef("run: %v", config)

	return
}

// Execute builds a Run and executes it.
func Execute(ctx context.Context, config Config, src source.Source, h *halter.Halter) (result Result, err error) {
	run, err := New(config, src, h)
	if nil != err {
		return
	}
	return run.Execute(ctx)
}

// RunInsertDeletePairs builds a Run and executes it with ExecutePairs.
func RunInsertDeletePairs(ctx context.Context, config Config, src source.Source, h *halter.Halter) (result Result, err error) {
	run, err := New(config, src, h)
	if nil != err {
		return
	}
	return run.ExecutePairs(ctx)
}

func (run *Run) Config() Config {
	return run.config
}

func (run *Run) Tree() adapter.Tree {
	return run.tree
}

func (run *Run) Oracle() *oracle.Container {
	return run.oracle
}

// Round returns the 0-based round in progress.
func (run *Run) Round() int {
	return run.round
}

// Execute performs the configured rounds, a final cross-check, and the
// teardown if one is due, then destroys the tree.  A run whose ctx expires
// stops between rounds with a TimeoutError.
func (run *Run) Execute(ctx context.Context) (result Result, err error) {
	stopwatch := utils.NewStopwatch()

	defer func() {
		run.Close()
		run.result.Elapsed = stopwatch.Stop()
		result = run.result
	}()

	for run.round = 0; run.round < run.config.Rounds; run.round++ {
		err = run.checkContext(ctx)
		if nil != err {
			return
		}
		err = run.Step()
		if nil != err {
			return
		}
		run.result.Rounds++
	}

	err = run.Verify()
	if nil != err {
		err = blunder.WithStep(err, run.round)
		return
	}

	if run.teardownDue() {
		_, err = run.Apply(Action{Kind: RandomTeardown})
	}

	return
}

// ExecutePairs performs the configured rounds of "insert one generated
// entry, then delete one generated key", cross-checking after each.
func (run *Run) ExecutePairs(ctx context.Context) (result Result, err error) {
	stopwatch := utils.NewStopwatch()

	defer func() {
		run.Close()
		run.result.Elapsed = stopwatch.Stop()
		result = run.result
	}()

	for run.round = 0; run.round < run.config.Rounds; run.round++ {
		err = run.checkContext(ctx)
		if nil != err {
			return
		}

		insert := Action{Kind: Insert, Key: run.generateKey()}
		insert.Info = run.generateInfo()
		_, err = run.Apply(insert)
		if nil != err {
			return
		}

		_, err = run.Apply(Action{Kind: Delete, Key: run.generateKey()})
		if nil != err {
			return
		}

		err = run.checkRep()
		if nil == err {
			err = run.Verify()
		}
		if nil != err {
			err = blunder.WithStep(err, run.round)
			return
		}
		run.result.Rounds++
	}

	return
}

// Step performs one round: self-check, one generated action, full cross-check.
func (run *Run) Step() (err error) {
	err = run.checkRep()
	if nil == err {
		_, err = run.Apply(run.generate())
	}
	if nil == err {
		err = run.Verify()
	}
	if nil != err {
		err = blunder.WithStep(err, run.round)
	}
	return
}

// Close destroys the tree.  Calling it again is harmless.
func (run *Run) Close() {
	if run.closed {
		return
	}
	logger.Tracef("Destroying the tree...")
	run.tree.Destroy()
	run.closed = true
}

func (run *Run) checkContext(ctx context.Context) (err error) {
	if ctxErr := ctx.Err(); nil != ctxErr {
		err = blunder.NewError(blunder.TimeoutError, "run abandoned before round %d: %v", run.round, ctxErr)
	}
	return
}

func (run *Run) teardownDue() bool {
	switch run.config.Teardown {
	case TeardownAlways:
		return true
	case TeardownChoose:
		return run.src.Bool()
	default:
		return false
	}
}
