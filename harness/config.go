// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"fmt"
	"strings"

	"github.com/NVIDIA/rbfuzz/adapter"
	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/conf"
)

// TeardownMode decides whether a run drains both models by random deletion
// after its last round.
type TeardownMode int

const (
	TeardownNever TeardownMode = iota
	TeardownAlways
	// TeardownChoose lets the Source decide with a Bool().
	TeardownChoose
)

var teardownModeStrings = []string{"never", "always", "choose"}

func (mode TeardownMode) String() string {
	if (mode < 0) || (int(mode) >= len(teardownModeStrings)) {
		return fmt.Sprintf("TeardownMode(%d)", int(mode))
	}
	return teardownModeStrings[mode]
}

func ParseTeardownMode(s string) (mode TeardownMode, err error) {
	for i, modeString := range teardownModeStrings {
		if strings.EqualFold(s, modeString) {
			mode = TeardownMode(i)
			return
		}
	}
	err = blunder.NewError(blunder.ConfigError, "unknown teardown mode '%s' (want one of %v)", s, teardownModeStrings)
	return
}

// Config is the immutable setup of one run.
type Config struct {
	// NoDuplicates forbids inserting a key already present, which in turn
	// lets every comparison include info.
	NoDuplicates bool
	// RestrictRange draws keys from [0, RangeBound] instead of all of int64.
	RestrictRange bool
	RangeBound    int64
	Rounds        int
	// TrackDuplicateInfo makes DELETE remove the exact (key, info) the tree
	// removed from the oracle, so duplicate infos can be compared as
	// per-key multisets.
	TrackDuplicateInfo bool
	Teardown           TeardownMode
	// Tree names the adapter implementation under test.
	Tree string
	// ChooseSetup lets the Source pick Rounds (1..MaxRounds), NoDuplicates,
	// and half the time a RangeBound below Rounds.
	ChooseSetup bool
	MaxRounds   int
}

const (
	DefaultRounds    = 10
	DefaultMaxRounds = 1000
	DefaultTree      = "rbtree"
)

func DefaultConfig() Config {
	return Config{
		Rounds:    DefaultRounds,
		MaxRounds: DefaultMaxRounds,
		Teardown:  TeardownChoose,
		Tree:      DefaultTree,
	}
}

func (config Config) Validate() (err error) {
	if config.RestrictRange && (0 > config.RangeBound) {
		err = blunder.NewError(blunder.ConfigError, "RangeBound (%d) must not be negative", config.RangeBound)
		return
	}
	if config.ChooseSetup {
		if 1 > config.MaxRounds {
			err = blunder.NewError(blunder.ConfigError, "MaxRounds (%d) must be positive", config.MaxRounds)
			return
		}
	} else if 0 > config.Rounds {
		err = blunder.NewError(blunder.ConfigError, "Rounds (%d) must not be negative", config.Rounds)
		return
	}
	if (config.Teardown < TeardownNever) || (config.Teardown > TeardownChoose) {
		err = blunder.NewError(blunder.ConfigError, "invalid %v", config.Teardown)
		return
	}
	for _, name := range adapter.Names() {
		if name == config.Tree {
			return
		}
	}
	err = blunder.NewError(blunder.ConfigError, "unknown tree implementation '%s' (want one of %v)", config.Tree, adapter.Names())
	return
}

func (config Config) String() string {
	rangeString := "unrestricted"
	if config.RestrictRange {
		rangeString = fmt.Sprintf("[0,%d]", config.RangeBound)
	}
	return fmt.Sprintf("tree=%s rounds=%d noDuplicates=%v range=%s trackDuplicateInfo=%v teardown=%v",
		config.Tree, config.Rounds, config.NoDuplicates, rangeString, config.TrackDuplicateInfo, config.Teardown)
}

func hasOption(confMap conf.ConfMap, sectionName string, optionName string) bool {
	section, ok := confMap[sectionName]
	if !ok {
		return false
	}
	_, ok = section[optionName]
	return ok
}

// ConfigFromConfMap overlays the [Run] section on DefaultConfig():
//
//   [Run]
//   Tree               : rbtree
//   Rounds             : 10
//   NoDuplicates       : false
//   RestrictRange      : true
//   RangeBound         : 32
//   TrackDuplicateInfo : false
//   Teardown           : choose
//   ChooseSetup        : false
//   MaxRounds          : 1000
//
// Absent options keep their defaults; malformed ones are a ConfigError.
func ConfigFromConfMap(confMap conf.ConfMap) (config Config, err error) {
	config = DefaultConfig()

	boolOptions := []struct {
		name string
		dest *bool
	}{
		{"NoDuplicates", &config.NoDuplicates},
		{"RestrictRange", &config.RestrictRange},
		{"TrackDuplicateInfo", &config.TrackDuplicateInfo},
		{"ChooseSetup", &config.ChooseSetup},
	}
	for _, option := range boolOptions {
		if hasOption(confMap, "Run", option.name) {
			*option.dest, err = confMap.FetchOptionValueBool("Run", option.name)
			if nil != err {
				err = blunder.AddKind(err, blunder.ConfigError)
				return
			}
		}
	}

	var value int64

	if hasOption(confMap, "Run", "RangeBound") {
		config.RangeBound, err = confMap.FetchOptionValueInt64("Run", "RangeBound")
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
	}
	if hasOption(confMap, "Run", "Rounds") {
		value, err = confMap.FetchOptionValueInt64("Run", "Rounds")
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
		config.Rounds = int(value)
	}
	if hasOption(confMap, "Run", "MaxRounds") {
		value, err = confMap.FetchOptionValueInt64("Run", "MaxRounds")
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
		config.MaxRounds = int(value)
	}

	if hasOption(confMap, "Run", "Teardown") {
		var teardownString string
		teardownString, err = confMap.FetchOptionValueString("Run", "Teardown")
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
		config.Teardown, err = ParseTeardownMode(teardownString)
		if nil != err {
			return
		}
	}
	if hasOption(confMap, "Run", "Tree") {
		config.Tree, err = confMap.FetchOptionValueString("Run", "Tree")
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
	}

	err = config.Validate()
	return
}
