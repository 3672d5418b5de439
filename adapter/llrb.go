// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"fmt"
	"strings"

	"github.com/NVIDIA/sortedmap"

	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/oracle"
)

// llrbTree keeps entries in a sortedmap left-leaning red-black tree keyed by
// seqKey, with the *seqNode as the value.
type llrbTree struct {
	tree    sortedmap.LLRBTree
	nextSeq uint64
}

// NewLLRB wraps sortedmap's LLRB tree.  h is ignored.
func NewLLRB(h *halter.Halter) Tree {
	t := &llrbTree{nextSeq: 1}
	t.tree = sortedmap.NewLLRBTree(t.compare, t)
	return t
}

func (t *llrbTree) compare(key1 sortedmap.Key, key2 sortedmap.Key) (result int, err error) {
	k1, ok := key1.(seqKey)
	if !ok {
		err = fmt.Errorf("llrb compare(non-seqKey,) not supported")
		return
	}
	k2, ok := key2.(seqKey)
	if !ok {
		err = fmt.Errorf("llrb compare(seqKey, non-seqKey) not supported")
		return
	}
	result = compareSeqKey(k1, k2)
	return
}

func (t *llrbTree) DumpKey(key sortedmap.Key) (keyAsString string, err error) {
	k, ok := key.(seqKey)
	if !ok {
		err = fmt.Errorf("llrb DumpKey(non-seqKey) not supported")
		return
	}
	keyAsString = fmt.Sprintf("%s#%d", keyString(k.key), k.seq)
	return
}

func (t *llrbTree) DumpValue(value sortedmap.Value) (valueAsString string, err error) {
	node, ok := value.(*seqNode)
	if !ok {
		err = fmt.Errorf("llrb DumpValue(non-*seqNode) not supported")
		return
	}
	valueAsString = infoString(node.info)
	return
}

func (t *llrbTree) Name() string {
	return "llrb"
}

func (t *llrbTree) Insert(key int64, info oracle.Token) (err error) {
	node := &seqNode{seqKey: seqKey{key: key, seq: t.nextSeq}, info: info}
	t.nextSeq++

	ok, err := t.tree.Put(node.seqKey, node)
	if nil != err {
		return
	}
	if !ok {
		err = blunder.NewError(blunder.StructuralViolation, "llrb: Put(%v) found sequence number already present", node.seqKey)
	}
	return
}

func (t *llrbTree) nodeAt(index int) (node *seqNode, ok bool, err error) {
	if (0 > index) || (index >= t.Len()) {
		return
	}
	_, value, ok, err := t.tree.GetByIndex(index)
	if (nil != err) || !ok {
		return
	}
	node, ok = value.(*seqNode)
	if !ok {
		err = blunder.NewError(blunder.StructuralViolation, "llrb: index %d holds %v", index, value)
	}
	return
}

// firstAtOrAfter returns the index of the first entry with key >= key.
// Sequence numbers start at 1, so seq 0 never matches.
func (t *llrbTree) firstAtOrAfter(key int64) (index int, err error) {
	index, _, err = t.tree.BisectRight(seqKey{key: key, seq: 0})
	return
}

func (t *llrbTree) ExactQuery(key int64) (node Node, ok bool, err error) {
	index, err := t.firstAtOrAfter(key)
	if nil != err {
		return
	}
	sn, ok, err := t.nodeAt(index)
	if (nil != err) || !ok || (sn.key != key) {
		ok = false
		return
	}
	node = sn
	return
}

func (t *llrbTree) indexOf(node Node) (index int, err error) {
	sn, err := asSeqNode("llrb", node)
	if nil != err {
		return
	}
	index, found, err := t.tree.BisectLeft(sn.seqKey)
	if (nil == err) && !found {
		err = blunder.NewError(blunder.PreconditionViolation, "llrb: node %v is not in the tree", sn.seqKey)
	}
	return
}

func (t *llrbTree) Delete(node Node) (err error) {
	sn, err := asSeqNode("llrb", node)
	if nil != err {
		return
	}
	ok, err := t.tree.DeleteByKey(sn.seqKey)
	if (nil == err) && !ok {
		err = blunder.NewError(blunder.PreconditionViolation, "llrb: node %v is not in the tree", sn.seqKey)
	}
	return
}

func (t *llrbTree) Predecessor(node Node) (predecessor Node, ok bool, err error) {
	index, err := t.indexOf(node)
	if (nil != err) || (0 == index) {
		return
	}
	sn, ok, err := t.nodeAt(index - 1)
	if ok {
		predecessor = sn
	}
	return
}

func (t *llrbTree) Successor(node Node) (successor Node, ok bool, err error) {
	index, err := t.indexOf(node)
	if nil != err {
		return
	}
	sn, ok, err := t.nodeAt(index + 1)
	if ok {
		successor = sn
	}
	return
}

func (t *llrbTree) Enumerate(low int64, high int64) (nodes []Node, err error) {
	nodes = make([]Node, 0)
	if low > high {
		return
	}
	index, err := t.firstAtOrAfter(low)
	if nil != err {
		return
	}
	for {
		sn, ok, nodeErr := t.nodeAt(index)
		if nil != nodeErr {
			err = nodeErr
			return
		}
		if !ok || (sn.key > high) {
			return
		}
		nodes = append(nodes, sn)
		index++
	}
}

func (t *llrbTree) CheckRep() (err error) {
	err = t.tree.Validate()
	if nil != err {
		err = blunder.AddKind(err, blunder.StructuralViolation)
	}
	return
}

func (t *llrbTree) Walk(visit func(node Node) error) (err error) {
	for index := 0; ; index++ {
		sn, ok, nodeErr := t.nodeAt(index)
		if nil != nodeErr {
			return nodeErr
		}
		if !ok {
			return
		}
		err = visit(sn)
		if nil != err {
			return
		}
	}
}

func (t *llrbTree) Len() int {
	numberOfItems, _ := t.tree.Len()
	return numberOfItems
}

func (t *llrbTree) Dump() string {
	var sb strings.Builder
	_ = t.Walk(func(node Node) error {
		sn := node.(*seqNode)
		keyAsString, _ := t.DumpKey(sn.seqKey)
		fmt.Fprintf(&sb, "key=%s info=%s\n", keyAsString, infoString(sn.info))
		return nil
	})
	return sb.String()
}

func (t *llrbTree) Destroy() {
	t.tree.Reset()
}
