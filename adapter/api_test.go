// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/oracle"
)

func keysOf(nodes []Node) (keys []int64) {
	keys = make([]int64, 0, len(nodes))
	for _, node := range nodes {
		keys = append(keys, node.Key())
	}
	return
}

func walkEntries(t *testing.T, tree Tree) (entries []oracle.Entry) {
	err := tree.Walk(func(node Node) error {
		entries = append(entries, oracle.Entry{Key: node.Key(), Info: node.Info()})
		return nil
	})
	require.Nil(t, err)
	return
}

func forEachTree(t *testing.T, test func(t *testing.T, tree Tree)) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			tree, err := New(name, nil)
			require.Nil(t, err)
			require.Equal(t, name, tree.Name())
			defer tree.Destroy()
			test(t, tree)
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"btree", "llrb", "rbtree"}, Names())

	_, err := New("splay", nil)
	assert.True(t, blunder.Is(err, blunder.ConfigError))
	assert.Contains(t, err.Error(), "splay")
}

func TestContractBasics(t *testing.T) {
	forEachTree(t, func(t *testing.T, tree Tree) {
		assert := assert.New(t)

		_, ok, err := tree.ExactQuery(1)
		assert.Nil(err)
		assert.False(ok)
		assert.Nil(tree.CheckRep())

		for _, k := range []int64{5, 3, 8} {
			require.Nil(t, tree.Insert(k, oracle.Token(k*0x10)))
		}
		assert.Equal(3, tree.Len())
		assert.Nil(tree.CheckRep())

		eight, ok, err := tree.ExactQuery(8)
		require.Nil(t, err)
		require.True(t, ok)
		assert.Equal(oracle.Token(0x80), eight.Info())

		pred, ok, err := tree.Predecessor(eight)
		assert.Nil(err)
		assert.True(ok)
		assert.Equal(int64(5), pred.Key())

		_, ok, err = tree.Successor(eight)
		assert.Nil(err)
		assert.False(ok)

		three, _, _ := tree.ExactQuery(3)
		_, ok, _ = tree.Predecessor(three)
		assert.False(ok)
		succ, ok, _ := tree.Successor(three)
		assert.True(ok)
		assert.Equal(int64(5), succ.Key())

		five, _, _ := tree.ExactQuery(5)
		require.Nil(t, tree.Delete(five))
		assert.Nil(tree.CheckRep())
		_, ok, _ = tree.ExactQuery(5)
		assert.False(ok)
		pred, _, _ = tree.Predecessor(eight)
		assert.Equal(int64(3), pred.Key())
		assert.Equal(2, tree.Len())
	})
}

func TestContractDuplicates(t *testing.T) {
	forEachTree(t, func(t *testing.T, tree Tree) {
		for i := 0; i < 12; i++ {
			require.Nil(t, tree.Insert(int64(i%3), oracle.Token(i)))
		}
		require.Nil(t, tree.CheckRep())

		var infos []oracle.Token
		for _, entry := range walkEntries(t, tree) {
			if 1 == entry.Key {
				infos = append(infos, entry.Info)
			}
		}
		assert.Equal(t, []oracle.Token{1, 4, 7, 10}, infos)

		// neighbors of a duplicate may be equal keys
		one, ok, _ := tree.ExactQuery(1)
		require.True(t, ok)
		pred, ok, _ := tree.Predecessor(one)
		require.True(t, ok)
		assert.LessOrEqual(t, pred.Key(), int64(1))

		for remaining := 4; remaining > 0; remaining-- {
			node, ok, err := tree.ExactQuery(1)
			require.Nil(t, err)
			require.True(t, ok)
			require.Nil(t, tree.Delete(node))
			require.Nil(t, tree.CheckRep())
		}
		_, ok, _ = tree.ExactQuery(1)
		assert.False(t, ok)
		assert.Equal(t, 8, tree.Len())
	})
}

func TestContractEnumerate(t *testing.T) {
	forEachTree(t, func(t *testing.T, tree Tree) {
		assert := assert.New(t)

		nodes, err := tree.Enumerate(math.MinInt64, math.MaxInt64)
		assert.Nil(err)
		assert.Empty(nodes)

		for _, k := range []int64{10, 20, 30, 40, 50, 30, math.MinInt64, math.MaxInt64} {
			require.Nil(t, tree.Insert(k, 0))
		}

		nodes, _ = tree.Enumerate(15, 45)
		assert.Equal([]int64{20, 30, 30, 40}, keysOf(nodes))
		nodes, _ = tree.Enumerate(50, math.MaxInt64)
		assert.Equal([]int64{50, math.MaxInt64}, keysOf(nodes))
		nodes, _ = tree.Enumerate(math.MinInt64, math.MinInt64)
		assert.Equal([]int64{math.MinInt64}, keysOf(nodes))
		nodes, _ = tree.Enumerate(41, 49)
		assert.Equal([]int64{}, keysOf(nodes))
		nodes, _ = tree.Enumerate(45, 15)
		assert.Equal([]int64{}, keysOf(nodes))
	})
}

func TestContractAgainstOracle(t *testing.T) {
	forEachTree(t, func(t *testing.T, tree Tree) {
		rng := rand.New(rand.NewSource(7))
		container := oracle.New()

		for step := 0; step < 3000; step++ {
			key := int64(rng.Intn(64))
			if (0 == rng.Intn(3)) && container.Find(key) {
				node, ok, err := tree.ExactQuery(key)
				require.Nil(t, err)
				require.True(t, ok, "step %d", step)
				require.Nil(t, tree.Delete(node))
				require.True(t, container.DeleteEntry(node.Key(), node.Info()))
			} else {
				require.Nil(t, tree.Insert(key, oracle.Token(step)))
				container.Insert(key, oracle.Token(step))
			}
			if 0 == step%101 {
				require.Nil(t, tree.CheckRep(), "step %d", step)
			}
		}

		require.Nil(t, tree.CheckRep())
		require.Equal(t, container.Len(), tree.Len())
		assert.Equal(t, container.Entries(), walkEntries(t, tree))
	})
}

func TestContractForeignNode(t *testing.T) {
	forEachTree(t, func(t *testing.T, tree Tree) {
		other := "rbtree"
		if "rbtree" == tree.Name() {
			other = "btree"
		}
		foreign, err := New(other, nil)
		require.Nil(t, err)
		require.Nil(t, foreign.Insert(1, 1))
		node, _, _ := foreign.ExactQuery(1)

		err = tree.Delete(node)
		assert.True(t, blunder.Is(err, blunder.PreconditionViolation), "%v", err)
		_, _, err = tree.Successor(node)
		assert.True(t, blunder.Is(err, blunder.PreconditionViolation), "%v", err)
	})
}

func TestContractWalkAndDump(t *testing.T) {
	forEachTree(t, func(t *testing.T, tree Tree) {
		for i := int64(0); i < 5; i++ {
			require.Nil(t, tree.Insert(i, oracle.Token(i)))
		}

		visited := 0
		err := tree.Walk(func(node Node) error {
			visited++
			if 2 == node.Key() {
				return fmt.Errorf("stop")
			}
			return nil
		})
		assert.NotNil(t, err)
		assert.Equal(t, 3, visited)

		assert.Contains(t, tree.Dump(), "info=0x4")

		tree.Destroy()
		assert.Equal(t, 0, tree.Len())
		assert.Nil(t, tree.CheckRep())
	})
}

func TestRBTreeReleasesKeys(t *testing.T) {
	tree := NewRBTree(nil).(*rbTree)
	for i := int64(0); i < 6; i++ {
		require.Nil(t, tree.Insert(i, 0))
	}
	node, _, _ := tree.ExactQuery(3)
	require.Nil(t, tree.Delete(node))
	assert.Equal(t, 1, tree.released)

	tree.Destroy()
	assert.Equal(t, 6, tree.released)
}

func TestRBTreeHalterIsWired(t *testing.T) {
	h := halter.New()
	tree, err := New("rbtree", h)
	require.Nil(t, err)

	require.Nil(t, tree.Insert(1, 0))
	require.Nil(t, tree.Insert(2, 0))
	require.Nil(t, h.Arm(halter.RBTreeSkipInsertFixup, 1))
	require.Nil(t, tree.Insert(3, 0))

	err = tree.CheckRep()
	assert.True(t, blunder.Is(err, blunder.StructuralViolation))

	// implementations without fault-injection sites ignore the halter
	h = halter.New()
	tree, err = New("btree", h)
	require.Nil(t, err)
	require.Nil(t, h.Arm(halter.RBTreeSkipInsertFixup, 1))
	require.Nil(t, tree.Insert(1, 0))
	assert.Nil(t, tree.CheckRep())
	assert.Equal(t, uint32(0), h.Fired(halter.RBTreeSkipInsertFixup))
}
