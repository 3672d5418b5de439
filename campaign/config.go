// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package campaign

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/conf"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/harness"
	"github.com/NVIDIA/rbfuzz/logger"
)

// Backend selects where a campaign's runs draw their choices from.
type Backend int

const (
	// BackendRandom runs Seed, Seed+1, ... through source.Random.
	BackendRandom Backend = iota
	// BackendExplore enumerates choice sequences with source.Explorer.
	BackendExplore
)

var backendStrings = []string{"random", "explore"}

func (backend Backend) String() string {
	if (backend < 0) || (int(backend) >= len(backendStrings)) {
		return fmt.Sprintf("Backend(%d)", int(backend))
	}
	return backendStrings[backend]
}

func ParseBackend(s string) (backend Backend, err error) {
	for i, backendString := range backendStrings {
		if strings.EqualFold(s, backendString) {
			backend = Backend(i)
			return
		}
	}
	err = blunder.NewError(blunder.ConfigError, "unknown backend '%s' (want one of %v)", s, backendStrings)
	return
}

// Config describes a campaign: many runs of Run, sharded over Workers.
type Config struct {
	Run harness.Config
	// Runs caps the number of runs.  For BackendExplore, 0 means run until
	// the choice space is exhausted.
	Runs    int
	Workers int
	Seed    int64
	Backend Backend
	// Pairs runs the insert-then-delete scenario instead of the action menu.
	Pairs bool
	// Timeout bounds the whole campaign and RunTimeout each run; 0 is unbounded.
	Timeout    time.Duration
	RunTimeout time.Duration
	// FailFast stops the campaign at the first failing run.
	FailFast bool
	// FailureDir, if set, receives the shortest input of every distinct failure.
	FailureDir string
	// MetricsFile, if set, receives a Prometheus text-format summary.
	MetricsFile string
	// StatsLogPeriod is how often progress is logged; 0 disables it.
	StatsLogPeriod time.Duration
	// Arm is armed on a fresh halter.Halter for every run.
	Arm map[string]uint32
}

const (
	DefaultRuns           = 5000
	DefaultRunTimeout     = 60 * time.Second
	DefaultStatsLogPeriod = time.Minute
)

func DefaultConfig() Config {
	run := harness.DefaultConfig()
	run.ChooseSetup = true

	return Config{
		Run:            run,
		Runs:           DefaultRuns,
		Workers:        runtime.NumCPU(),
		Backend:        BackendRandom,
		RunTimeout:     DefaultRunTimeout,
		StatsLogPeriod: DefaultStatsLogPeriod,
		Arm:            make(map[string]uint32),
	}
}

func (config Config) Validate() (err error) {
	if 0 > config.Runs {
		err = blunder.NewError(blunder.ConfigError, "Runs (%d) must not be negative", config.Runs)
		return
	}
	if 1 > config.Workers {
		err = blunder.NewError(blunder.ConfigError, "Workers (%d) must be positive", config.Workers)
		return
	}
	err = config.Run.Validate()
	return
}

func hasOption(confMap conf.ConfMap, sectionName string, optionName string) bool {
	section, ok := confMap[sectionName]
	if !ok {
		return false
	}
	_, ok = section[optionName]
	return ok
}

// ConfigFromConfMap overlays DefaultConfig() with the [Run] section (see
// harness.ConfigFromConfMap), the [FaultInjection] section (see
// halter.NewFromConfMap), and the [Campaign] section:
//
//   [Campaign]
//   Runs        : 5000
//   Workers     : 8
//   Seed        : 0
//   Backend     : random
//   Pairs       : false
//   Timeout     : 10m
//   RunTimeout  : 60s
//   FailFast    : false
//   FailureDir  : /tmp/rbfuzz/failures
//   MetricsFile : /tmp/rbfuzz/metrics.prom
//   StatsLogPeriod : 1m
//
// A campaign defaults [Run]ChooseSetup to true.
func ConfigFromConfMap(confMap conf.ConfMap) (config Config, err error) {
	config = DefaultConfig()

	if !hasOption(confMap, "Run", "ChooseSetup") {
		err = confMap.UpdateFromString("Run.ChooseSetup=true")
		if nil != err {
			return
		}
	}
	config.Run, err = harness.ConfigFromConfMap(confMap)
	if nil != err {
		return
	}

	h, err := halter.NewFromConfMap(confMap)
	if nil != err {
		err = blunder.AddKind(err, blunder.ConfigError)
		return
	}
	config.Arm = h.Dump()

	var value int64

	if hasOption(confMap, "Campaign", "Runs") {
		value, err = confMap.FetchOptionValueInt64("Campaign", "Runs")
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
		config.Runs = int(value)
	}
	if hasOption(confMap, "Campaign", "Workers") {
		value, err = confMap.FetchOptionValueInt64("Campaign", "Workers")
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
		config.Workers = int(value)
	}
	if hasOption(confMap, "Campaign", "Seed") {
		config.Seed, err = confMap.FetchOptionValueInt64("Campaign", "Seed")
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
	}
	if hasOption(confMap, "Campaign", "Backend") {
		var backendString string
		backendString, err = confMap.FetchOptionValueString("Campaign", "Backend")
		if nil != err {
			err = blunder.AddKind(err, blunder.ConfigError)
			return
		}
		config.Backend, err = ParseBackend(backendString)
		if nil != err {
			return
		}
	}

	boolOptions := []struct {
		name string
		dest *bool
	}{
		{"Pairs", &config.Pairs},
		{"FailFast", &config.FailFast},
	}
	for _, option := range boolOptions {
		if hasOption(confMap, "Campaign", option.name) {
			*option.dest, err = confMap.FetchOptionValueBool("Campaign", option.name)
			if nil != err {
				err = blunder.AddKind(err, blunder.ConfigError)
				return
			}
		}
	}

	durationOptions := []struct {
		name string
		dest *time.Duration
	}{
		{"Timeout", &config.Timeout},
		{"RunTimeout", &config.RunTimeout},
		{"StatsLogPeriod", &config.StatsLogPeriod},
	}
	for _, option := range durationOptions {
		if hasOption(confMap, "Campaign", option.name) {
			*option.dest, err = confMap.FetchOptionValueDuration("Campaign", option.name)
			if nil != err {
				err = blunder.AddKind(err, blunder.ConfigError)
				return
			}
		}
	}

	stringOptions := []struct {
		name string
		dest *string
	}{
		{"FailureDir", &config.FailureDir},
		{"MetricsFile", &config.MetricsFile},
	}
	for _, option := range stringOptions {
		if hasOption(confMap, "Campaign", option.name) {
			*option.dest, err = confMap.FetchOptionValueString("Campaign", option.name)
			if nil != err {
				err = blunder.AddKind(err, blunder.ConfigError)
				return
			}
		}
	}

	// StatsLogPeriod must be >= 1 sec, except 0 means disabled
	if (0 != config.StatsLogPeriod) && (time.Second > config.StatsLogPeriod) {
		logger.Warnf("config variable 'Campaign.StatsLogPeriod' value is non-zero and less than 1s; defaulting to '%v'", DefaultStatsLogPeriod)
		config.StatsLogPeriod = DefaultStatsLogPeriod
	}

	err = config.Validate()
	return
}
