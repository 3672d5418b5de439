// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"github.com/NVIDIA/rbfuzz/oracle"
	"github.com/NVIDIA/rbfuzz/source"
)

// chooseSetup lets src pick the round count, the duplicate policy, and
// whether keys are confined to [0, RangeBound] with RangeBound < Rounds.
func chooseSetup(config Config, src source.Source) Config {
	config.Rounds = 1 + src.OneOf(config.MaxRounds)
	config.NoDuplicates = src.Bool()
	if src.Bool() {
		config.RestrictRange = true
		config.RangeBound = int64(src.OneOf(config.Rounds))
	} else {
		config.RestrictRange = false
		config.RangeBound = 0
	}
	return config
}

func (run *Run) generateKey() int64 {
	if run.config.RestrictRange {
		return run.src.IntRange(0, run.config.RangeBound)
	}
	return run.src.Int()
}

// generateInfo assembles a token from eight bytes, most significant first.
func (run *Run) generateInfo() (info oracle.Token) {
	for i := 0; i < 8; i++ {
		info = (info << 8) | oracle.Token(run.src.Byte())
	}
	return
}

// generate picks one Menu action and draws only the arguments it uses.  An
// INSERT that will be skipped as a duplicate draws no info.
func (run *Run) generate() (action Action) {
	action.Kind = Menu[run.src.OneOf(len(Menu))]

	switch action.Kind {
	case Insert:
		action.Key = run.generateKey()
		if !run.config.NoDuplicates || !run.oracle.Find(action.Key) {
			action.Info = run.generateInfo()
		}
	case Delete, Find, Predecessor, Successor:
		action.Key = run.generateKey()
	case RangeEnumerate:
		action.Key = run.generateKey()
		action.High = run.generateKey()
	}

	return
}
