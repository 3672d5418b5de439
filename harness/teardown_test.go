// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/rbfuzz/adapter"
	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/oracle"
)

// unlinklessTree acknowledges every Delete and shrinks its reported Len, but
// never unlinks a node.
type unlinklessTree struct {
	adapter.Tree
	deleted int
}

func (t *unlinklessTree) Delete(node adapter.Node) error {
	t.deleted++
	return nil
}

func (t *unlinklessTree) Len() int {
	return t.Tree.Len() - t.deleted
}

func newUnlinklessRun(t *testing.T, config Config) (run *Run) {
	run = newManualRun(t, config, nil)
	run.tree = &unlinklessTree{Tree: run.tree}
	for _, k := range []int64{5, 3, 8} {
		mustApply(t, run, Action{Kind: Insert, Key: k, Info: oracle.Token(k << 4)})
	}
	return
}

func TestTeardownCatchesUnlinkedKey(t *testing.T) {
	for _, name := range adapter.Names() {
		config := DefaultConfig()
		config.Tree = name
		config.NoDuplicates = true
		run := newUnlinklessRun(t, config)

		_, err := run.Apply(Action{Kind: RandomTeardown})
		assert.True(t, blunder.Is(err, blunder.EquivalenceViolation), "%s: %s", name, blunder.ErrorString(err))
		assert.Contains(t, err.Error(), "after deleting it during teardown", name)
		assert.False(t, run.result.TornDown)
	}
}

func TestTeardownWalksTheEmptiedTree(t *testing.T) {
	for _, name := range adapter.Names() {
		config := DefaultConfig()
		config.Tree = name
		run := newUnlinklessRun(t, config)

		_, err := run.Apply(Action{Kind: RandomTeardown})
		require.NotNil(t, err, name)
		assert.True(t, blunder.Is(err, blunder.CardinalityViolation), "%s: %s", name, blunder.ErrorString(err))
		assert.Contains(t, err.Error(), "oracle has 0 entries, tree has 3", name)
	}
}

func TestVerifyStopsAtFirstDisagreement(t *testing.T) {
	config := DefaultConfig()
	config.NoDuplicates = true
	run := newManualRun(t, config, nil)

	for _, k := range []int64{1, 2, 3} {
		mustApply(t, run, Action{Kind: Insert, Key: k, Info: oracle.Token(k)})
	}
	require.Nil(t, run.Verify())

	// The oracle alone loses 2
	require.True(t, run.oracle.Delete(2))
	err := run.Verify()
	assert.True(t, blunder.Is(err, blunder.EquivalenceViolation), blunder.ErrorString(err))
	assert.Contains(t, err.Error(), "in-order traversal: key at position 1 differs")
	assert.Equal(t, oracle.Entry{Key: 3, Info: 3}, blunder.Expected(err))
	assert.Equal(t, oracle.Entry{Key: 2, Info: 2}, blunder.Observed(err))

	// The tree alone lacks 4
	run.oracle.Insert(2, 2)
	run.oracle.Insert(4, 4)
	err = run.Verify()
	assert.True(t, blunder.Is(err, blunder.CardinalityViolation), blunder.ErrorString(err))
	assert.Contains(t, err.Error(), "oracle has 4 entries, tree has 3; tree is exhausted but the oracle holds 4")
}
