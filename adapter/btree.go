// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"fmt"
	"strings"

	"github.com/google/btree"

	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/oracle"
)

// BTreeDegree is the degree of trees built by NewBTree.  A small degree makes
// splits and merges frequent.
const BTreeDegree = 3

type bTree struct {
	tree    *btree.BTreeG[*seqNode]
	nextSeq uint64
	count   int
}

func lessSeqNode(a *seqNode, b *seqNode) bool {
	return a.seqKey.less(b.seqKey)
}

// NewBTree wraps google/btree.  h is ignored.
func NewBTree(h *halter.Halter) Tree {
	return &bTree{
		tree:    btree.NewG[*seqNode](BTreeDegree, lessSeqNode),
		nextSeq: 1,
	}
}

func (t *bTree) Name() string {
	return "btree"
}

func (t *bTree) Insert(key int64, info oracle.Token) (err error) {
	node := &seqNode{seqKey: seqKey{key: key, seq: t.nextSeq}, info: info}
	t.nextSeq++
	if _, replaced := t.tree.ReplaceOrInsert(node); replaced {
		err = blunder.NewError(blunder.StructuralViolation, "btree: sequence number %v already present", node.seqKey)
		return
	}
	t.count++
	return
}

func (t *bTree) ExactQuery(key int64) (node Node, ok bool, err error) {
	t.tree.AscendGreaterOrEqual(&seqNode{seqKey: seqKey{key: key}}, func(item *seqNode) bool {
		if item.key == key {
			node, ok = item, true
		}
		return false
	})
	return
}

func (t *bTree) Delete(node Node) (err error) {
	sn, err := asSeqNode("btree", node)
	if nil != err {
		return
	}
	if _, found := t.tree.Delete(sn); !found {
		err = blunder.NewError(blunder.PreconditionViolation, "btree: node %v is not in the tree", sn.seqKey)
		return
	}
	t.count--
	return
}

func (t *bTree) Predecessor(node Node) (predecessor Node, ok bool, err error) {
	sn, err := asSeqNode("btree", node)
	if nil != err {
		return
	}
	t.tree.DescendLessOrEqual(sn, func(item *seqNode) bool {
		if item.seqKey == sn.seqKey {
			return true
		}
		predecessor, ok = item, true
		return false
	})
	return
}

func (t *bTree) Successor(node Node) (successor Node, ok bool, err error) {
	sn, err := asSeqNode("btree", node)
	if nil != err {
		return
	}
	t.tree.AscendGreaterOrEqual(sn, func(item *seqNode) bool {
		if item.seqKey == sn.seqKey {
			return true
		}
		successor, ok = item, true
		return false
	})
	return
}

func (t *bTree) Enumerate(low int64, high int64) (nodes []Node, err error) {
	nodes = make([]Node, 0)
	if low > high {
		return
	}
	t.tree.AscendGreaterOrEqual(&seqNode{seqKey: seqKey{key: low}}, func(item *seqNode) bool {
		if item.key > high {
			return false
		}
		nodes = append(nodes, item)
		return true
	})
	return
}

// CheckRep verifies strict ascending order and that Len() matches the
// number of inserts minus deletes; google/btree exposes no deeper validator.
func (t *bTree) CheckRep() (err error) {
	var (
		prev    *seqNode
		visited int
	)
	t.tree.Ascend(func(item *seqNode) bool {
		if (nil != prev) && !lessSeqNode(prev, item) {
			err = blunder.NewError(blunder.StructuralViolation, "btree: %v does not follow %v", item.seqKey, prev.seqKey)
			return false
		}
		prev = item
		visited++
		return true
	})
	if nil != err {
		return
	}
	if (visited != t.tree.Len()) || (visited != t.count) {
		err = blunder.NewError(blunder.StructuralViolation, "btree: visited %d items, Len() is %d, expected %d",
			visited, t.tree.Len(), t.count)
	}
	return
}

func (t *bTree) Walk(visit func(node Node) error) (err error) {
	t.tree.Ascend(func(item *seqNode) bool {
		err = visit(item)
		return nil == err
	})
	return
}

func (t *bTree) Len() int {
	return t.tree.Len()
}

func (t *bTree) Dump() string {
	var sb strings.Builder
	t.tree.Ascend(func(item *seqNode) bool {
		fmt.Fprintf(&sb, "key=%s#%d info=%s\n", keyString(item.key), item.seq, infoString(item.info))
		return true
	})
	return sb.String()
}

func (t *bTree) Destroy() {
	t.tree.Clear(false)
	t.count = 0
	t.nextSeq = 1
}

