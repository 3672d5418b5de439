// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/rbfuzz/adapter"
	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/conf"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/oracle"
	"github.com/NVIDIA/rbfuzz/source"
)

func newManualRun(t *testing.T, config Config, h *halter.Halter) *Run {
	run, err := New(config, source.NewBytes(nil), h)
	require.Nil(t, err)
	return run
}

func mustApply(t *testing.T, run *Run, action Action) string {
	observation, err := run.Apply(action)
	require.Nil(t, err, "%v: %s", action, blunder.ErrorString(err))
	return observation
}

func TestScenarioFiveThreeEight(t *testing.T) {
	for _, name := range adapter.Names() {
		config := DefaultConfig()
		config.NoDuplicates = true
		config.Tree = name
		run := newManualRun(t, config, nil)

		for _, k := range []int64{5, 3, 8} {
			mustApply(t, run, Action{Kind: Insert, Key: k, Info: oracle.Token(k << 4)})
		}
		require.Nil(t, run.Verify())

		assert.Equal(t, "FOUND 5", mustApply(t, run, Action{Kind: Predecessor, Key: 8}), name)
		assert.Equal(t, "FOUND 5", mustApply(t, run, Action{Kind: Successor, Key: 3}), name)
		assert.Equal(t, "NO_PRED_OR_SUCC", mustApply(t, run, Action{Kind: Predecessor, Key: 3}), name)
		assert.Equal(t, "NO_PRED_OR_SUCC", mustApply(t, run, Action{Kind: Successor, Key: 8}), name)
		assert.Equal(t, "KEY_NOT_FOUND", mustApply(t, run, Action{Kind: Successor, Key: 4}), name)
		assert.Equal(t, "2 entries", mustApply(t, run, Action{Kind: RangeEnumerate, Key: 4, High: 100}), name)

		assert.Equal(t, "deleted 5:0x50", mustApply(t, run, Action{Kind: Delete, Key: 5}), name)
		assert.Equal(t, "FOUND 3", mustApply(t, run, Action{Kind: Predecessor, Key: 8}), name)
		assert.Equal(t, "FOUND 8", mustApply(t, run, Action{Kind: Successor, Key: 3}), name)
		require.Nil(t, run.Verify())

		run.Close()
		run.Close()
	}
}

func TestScenarioDuplicateKey(t *testing.T) {
	for _, name := range adapter.Names() {
		config := DefaultConfig()
		config.Tree = name
		run := newManualRun(t, config, nil)

		mustApply(t, run, Action{Kind: Insert, Key: 10, Info: 1})
		mustApply(t, run, Action{Kind: Insert, Key: 10, Info: 2})
		require.Nil(t, run.Verify())
		assert.Equal(t, 2, run.Oracle().Len())
		assert.Equal(t, 2, run.Tree().Len())

		mustApply(t, run, Action{Kind: Predecessor, Key: 10})
		mustApply(t, run, Action{Kind: Successor, Key: 10})

		mustApply(t, run, Action{Kind: Delete, Key: 10})
		require.Nil(t, run.Verify())
		assert.Equal(t, "found", mustApply(t, run, Action{Kind: Find, Key: 10}))
		mustApply(t, run, Action{Kind: Delete, Key: 10})
		assert.Equal(t, "absent", mustApply(t, run, Action{Kind: Find, Key: 10}))
		require.Nil(t, run.Verify())
		run.Close()
	}
}

func TestScenarioDuplicateInsertAvoided(t *testing.T) {
	config := DefaultConfig()
	config.NoDuplicates = true
	run := newManualRun(t, config, nil)

	mustApply(t, run, Action{Kind: Insert, Key: 10, Info: 1})
	assert.Equal(t, "AVOIDING DUPLICATE INSERT", mustApply(t, run, Action{Kind: Insert, Key: 10, Info: 2}))
	assert.Equal(t, []oracle.Entry{{Key: 10, Info: 1}}, run.Oracle().Entries())
	require.Nil(t, run.Verify())
}

func TestScenarioEmptyTree(t *testing.T) {
	for _, name := range adapter.Names() {
		config := DefaultConfig()
		config.Tree = name
		run := newManualRun(t, config, nil)

		assert.Equal(t, "absent", mustApply(t, run, Action{Kind: Find, Key: 0}))
		assert.Equal(t, "absent", mustApply(t, run, Action{Kind: Delete, Key: 0}))
		assert.Equal(t, "KEY_NOT_FOUND", mustApply(t, run, Action{Kind: Predecessor, Key: 0}))
		assert.Equal(t, "0 entries", mustApply(t, run, Action{Kind: RangeEnumerate, Key: -100, High: 100}))
		assert.Equal(t, "ok", mustApply(t, run, Action{Kind: StructuralCheck}))
		assert.Equal(t, "drained 0", mustApply(t, run, Action{Kind: RandomTeardown}))
		run.Close()
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	config := DefaultConfig()
	config.TrackDuplicateInfo = true
	run := newManualRun(t, config, nil)

	for i := int64(0); i < 50; i++ {
		mustApply(t, run, Action{Kind: Insert, Key: i % 7, Info: oracle.Token(i)})
	}
	assert.Equal(t, "drained 50", mustApply(t, run, Action{Kind: RandomTeardown}))
	assert.Equal(t, "drained 0", mustApply(t, run, Action{Kind: RandomTeardown}))
	assert.Equal(t, 0, run.Tree().Len())
	require.Nil(t, run.Verify())
}

func TestRandomRuns(t *testing.T) {
	configs := []Config{
		{Rounds: 300, Teardown: TeardownAlways},
		{Rounds: 300, NoDuplicates: true, Teardown: TeardownChoose},
		{Rounds: 300, RestrictRange: true, RangeBound: 16, Teardown: TeardownAlways},
		{Rounds: 300, RestrictRange: true, RangeBound: 16, NoDuplicates: true, Teardown: TeardownNever},
		{Rounds: 300, RestrictRange: true, RangeBound: 4, TrackDuplicateInfo: true, Teardown: TeardownAlways},
	}

	for _, name := range adapter.Names() {
		for i, config := range configs {
			config.Tree = name
			for seed := int64(0); seed < 4; seed++ {
				result, err := Execute(context.Background(), config, source.NewRandom(seed), nil)
				require.Nil(t, err, "tree=%s config#%d seed=%d: %s", name, i, seed, blunder.ErrorString(err))
				assert.Equal(t, config.Rounds, result.Rounds)
				checks := int(result.Actions[StructuralCheck] + result.Actions[RandomTeardown])
				assert.Equal(t, config.Rounds+1, len(result.Sizes)-checks)
				if TeardownAlways == config.Teardown {
					assert.True(t, result.TornDown)
				}
			}
		}
	}
}

func TestChooseSetupReplays(t *testing.T) {
	config := DefaultConfig()
	config.ChooseSetup = true
	config.MaxRounds = 200

	for seed := int64(0); seed < 10; seed++ {
		recorder := source.NewRecorder(source.NewRandom(seed))
		original, err := Execute(context.Background(), config, recorder, nil)
		require.Nil(t, err, blunder.ErrorString(err))
		assert.True(t, (1 <= original.Config.Rounds) && (original.Config.Rounds <= 200))
		if original.Config.RestrictRange {
			assert.Less(t, original.Config.RangeBound, int64(original.Config.Rounds))
		}

		replayed, err := Execute(context.Background(), config, source.NewBytes(recorder.Recorded()), nil)
		require.Nil(t, err)
		assert.Equal(t, original.Config, replayed.Config)
		assert.Equal(t, original.Actions, replayed.Actions)
		assert.Equal(t, original.Sizes, replayed.Sizes)
		assert.Equal(t, original.TornDown, replayed.TornDown)
	}
}

func TestInsertDeletePairs(t *testing.T) {
	for _, name := range adapter.Names() {
		config := DefaultConfig()
		config.Tree = name
		config.Rounds = 200
		config.RestrictRange = true
		config.RangeBound = 8

		result, err := RunInsertDeletePairs(context.Background(), config, source.NewRandom(99), nil)
		require.Nil(t, err, blunder.ErrorString(err))
		assert.Equal(t, 200, result.Rounds)
		assert.Equal(t, uint64(200), result.Actions[Insert])
		assert.Equal(t, uint64(200), result.Actions[Delete])
	}
}

func TestTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Execute(ctx, DefaultConfig(), source.NewRandom(0), nil)
	assert.True(t, blunder.Is(err, blunder.TimeoutError))
	assert.Equal(t, 0, result.Rounds)
}

func TestNewRejectsBadConfig(t *testing.T) {
	config := DefaultConfig()
	config.Tree = "splay"
	_, err := New(config, source.NewRandom(0), nil)
	assert.True(t, blunder.Is(err, blunder.ConfigError))

	config = DefaultConfig()
	config.RestrictRange = true
	config.RangeBound = -1
	_, err = New(config, source.NewRandom(0), nil)
	assert.True(t, blunder.Is(err, blunder.ConfigError))

	config = DefaultConfig()
	config.ChooseSetup = true
	config.MaxRounds = 0
	_, err = New(config, source.NewRandom(0), nil)
	assert.True(t, blunder.Is(err, blunder.ConfigError))
}

func TestConfigFromConfMap(t *testing.T) {
	confMap, err := conf.MakeConfMapFromStrings([]string{
		"Run.Tree=llrb",
		"Run.Rounds=25",
		"Run.NoDuplicates=true",
		"Run.RestrictRange=yes",
		"Run.RangeBound=7",
		"Run.Teardown=always",
	})
	require.Nil(t, err)

	config, err := ConfigFromConfMap(confMap)
	require.Nil(t, err)
	assert.Equal(t, "llrb", config.Tree)
	assert.Equal(t, 25, config.Rounds)
	assert.True(t, config.NoDuplicates)
	assert.True(t, config.RestrictRange)
	assert.Equal(t, int64(7), config.RangeBound)
	assert.Equal(t, TeardownAlways, config.Teardown)
	assert.False(t, config.TrackDuplicateInfo)
	assert.Equal(t, DefaultMaxRounds, config.MaxRounds)
	assert.Equal(t, "tree=llrb rounds=25 noDuplicates=true range=[0,7] trackDuplicateInfo=false teardown=always", config.String())

	config, err = ConfigFromConfMap(conf.MakeConfMap())
	require.Nil(t, err)
	assert.Equal(t, DefaultConfig(), config)

	for _, bad := range []string{"Run.Tree=splay", "Run.Teardown=sometimes", "Run.Rounds=ten", "Run.NoDuplicates=maybe"} {
		confMap, err = conf.MakeConfMapFromStrings([]string{bad})
		require.Nil(t, err)
		_, err = ConfigFromConfMap(confMap)
		assert.True(t, blunder.Is(err, blunder.ConfigError), bad)
	}
}

func TestKindStrings(t *testing.T) {
	for _, kind := range Kinds() {
		parsed, err := ParseKind(kind.String())
		require.Nil(t, err)
		assert.Equal(t, kind, parsed)
	}
	_, err := ParseKind("SPLAY")
	assert.NotNil(t, err)

	assert.Equal(t, "INSERT:-3 0xff", Action{Kind: Insert, Key: -3, Info: 0xff}.String())
	assert.Equal(t, "RANGE:1..9", Action{Kind: RangeEnumerate, Key: 1, High: 9}.String())
	assert.Equal(t, "CHECK", Action{Kind: StructuralCheck, Key: 4}.String())
}

func TestExplorerCoversSmallRuns(t *testing.T) {
	config := Config{
		Tree:          "rbtree",
		Rounds:        2,
		RestrictRange: true,
		RangeBound:    1,
		Teardown:      TeardownChoose,
	}

	explorer := source.NewExplorer()
	for explorer.Next() {
		_, err := Execute(context.Background(), config, explorer, nil)
		require.Nil(t, err, "path %v: %s", explorer.Path(), blunder.ErrorString(err))
	}
	require.Nil(t, explorer.Err())
	assert.True(t, explorer.Exhausted())
	// 15 alternatives per round, before teardown choices
	assert.Greater(t, explorer.Runs(), 15*15)
}

func TestExplorerFindsInjectedFault(t *testing.T) {
	config := Config{
		Tree:          "rbtree",
		Rounds:        3,
		NoDuplicates:  true,
		RestrictRange: true,
		RangeBound:    2,
		Teardown:      TeardownNever,
	}

	failures := 0
	explorer := source.NewExplorer()
	for explorer.Next() {
		h := halter.New()
		require.Nil(t, h.Arm(halter.RBTreeWrongPredecessor, 1))
		_, err := Execute(context.Background(), config, explorer, h)
		if nil != err {
			assert.True(t, blunder.Is(err, blunder.EquivalenceViolation), blunder.ErrorString(err))
			step, ok := blunder.Step(err)
			assert.True(t, ok)
			assert.True(t, (0 < step) && (step < 3))
			failures++
		}
	}
	require.Nil(t, explorer.Err())
	assert.Greater(t, failures, 0)
}
