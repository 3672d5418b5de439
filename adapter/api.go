// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package adapter is the boundary between a run and the ordered tree it
// checks.  Every tree implementation is reached only through Tree, with int64
// keys and oracle.Token infos, and "no such node" is reported as ok == false
// rather than as an in-band sentinel.
package adapter

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/oracle"
)

// Node is a live entry of a Tree.  A Node is only valid on the Tree that
// returned it, until that Tree deletes it.
type Node interface {
	Key() int64
	Info() oracle.Token
}

// Tree is the operation contract a tree under test exposes.
type Tree interface {
	// Name returns the implementation name passed to New.
	Name() string
	// Insert adds (key, info).  Duplicate keys are kept, after any equal keys.
	Insert(key int64, info oracle.Token) (err error)
	// ExactQuery returns some node with key, if any.
	ExactQuery(key int64) (node Node, ok bool, err error)
	// Delete removes a node returned by a query on this tree.
	Delete(node Node) (err error)
	// Predecessor returns the node immediately before node in order, if any.
	Predecessor(node Node) (predecessor Node, ok bool, err error)
	// Successor returns the node immediately after node in order, if any.
	Successor(node Node) (successor Node, ok bool, err error)
	// Enumerate returns every node with low <= key <= high, ascending.
	Enumerate(low int64, high int64) (nodes []Node, err error)
	// CheckRep validates the tree's internal invariants.
	CheckRep() (err error)
	// Walk visits every node in order, stopping at the first error.
	Walk(visit func(node Node) error) (err error)
	Len() int
	// Dump renders the tree's structure for diagnostics.
	Dump() string
	// Destroy releases every node; the tree is empty afterwards.
	Destroy()
}

// Constructor builds an empty Tree.  h may be nil; implementations without
// fault-injection sites ignore it.
type Constructor func(h *halter.Halter) Tree

var constructors = map[string]Constructor{
	"rbtree": NewRBTree,
	"llrb":   NewLLRB,
	"btree":  NewBTree,
}

// Names returns the sorted names New accepts.
func Names() (names []string) {
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// New returns an empty Tree of the named implementation.
func New(name string, h *halter.Halter) (tree Tree, err error) {
	constructor, ok := constructors[name]
	if !ok {
		err = blunder.NewError(blunder.ConfigError, "unknown tree implementation '%s' (want one of %v)", name, Names())
		return
	}
	tree = constructor(h)
	return
}

func compareInt64(keyA int64, keyB int64) int {
	switch {
	case keyA < keyB:
		return -1
	case keyA > keyB:
		return 1
	}
	return 0
}

func keyString(key int64) string {
	return strconv.FormatInt(key, 10)
}

func infoString(info oracle.Token) string {
	return fmt.Sprintf("%#x", uint64(info))
}

// seqKey orders duplicate keys by insertion sequence for implementations that
// require unique keys.
type seqKey struct {
	key int64
	seq uint64
}

func (k seqKey) less(other seqKey) bool {
	if k.key != other.key {
		return k.key < other.key
	}
	return k.seq < other.seq
}

func compareSeqKey(keyA seqKey, keyB seqKey) int {
	if c := compareInt64(keyA.key, keyB.key); 0 != c {
		return c
	}
	switch {
	case keyA.seq < keyB.seq:
		return -1
	case keyA.seq > keyB.seq:
		return 1
	}
	return 0
}

// seqNode is the Node of the seqKey-based implementations.
type seqNode struct {
	seqKey
	info oracle.Token
}

func (node *seqNode) Key() int64 {
	return node.key
}

func (node *seqNode) Info() oracle.Token {
	return node.info
}

func asSeqNode(treeName string, node Node) (sn *seqNode, err error) {
	sn, ok := node.(*seqNode)
	if !ok || (nil == sn) {
		err = blunder.NewError(blunder.PreconditionViolation, "%s: node %v did not come from this tree", treeName, node)
	}
	return
}
