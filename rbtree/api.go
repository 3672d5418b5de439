// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package rbtree provides a red-black tree holding (key, info) pairs ordered by
// a caller-supplied comparator.
//
// The tree uses a single black sentinel node in place of nil children.  The
// sentinel never escapes the package: queries that find nothing return nil.
// Duplicate keys are allowed; a new node is placed after every node with an
// equal key, so in-order traversal lists equal keys in insertion order.
package rbtree

import (
	"github.com/NVIDIA/rbfuzz/halter"
)

// CompareFunc returns a negative value, zero, or a positive value as keyA is
// less than, equal to, or greater than keyB.
type CompareFunc func(keyA interface{}, keyB interface{}) int

// DestroyFunc releases a key or info when its node leaves the tree.
type DestroyFunc func(item interface{})

// PrintFunc renders a key or info for Dump().
type PrintFunc func(item interface{}) string

// Node is a real (non-sentinel) node of a Tree.
type Node struct {
	key    interface{}
	info   interface{}
	left   *Node
	right  *Node
	parent *Node
	red    bool
}

func (node *Node) Key() interface{} {
	return node.key
}

func (node *Node) Info() interface{} {
	return node.info
}

// Tree is not safe for concurrent use.
type Tree struct {
	compare     CompareFunc
	keyDestroy  DestroyFunc
	infoDestroy DestroyFunc
	keyPrint    PrintFunc
	infoPrint   PrintFunc
	root        *Node
	sentinel    *Node
	count       int
	halter      *halter.Halter
}

// New returns an empty Tree.  Any of the destroy and print funcs may be nil.
func New(compare CompareFunc, keyDestroy DestroyFunc, infoDestroy DestroyFunc, keyPrint PrintFunc, infoPrint PrintFunc) (tree *Tree) {
	sentinel := &Node{}
	sentinel.left = sentinel
	sentinel.right = sentinel
	sentinel.parent = sentinel

	tree = &Tree{
		compare:     compare,
		keyDestroy:  keyDestroy,
		infoDestroy: infoDestroy,
		keyPrint:    keyPrint,
		infoPrint:   infoPrint,
		root:        sentinel,
		sentinel:    sentinel,
	}
	return
}

// SetHalter attaches fault-injection triggers consulted by Insert, Delete and
// Predecessor.  A nil halter disables fault injection.
func (tree *Tree) SetHalter(halter *halter.Halter) {
	tree.halter = halter
}

// Len returns the number of nodes in the tree.
func (tree *Tree) Len() int {
	return tree.count
}

// Insert adds a new node and returns it.
func (tree *Tree) Insert(key interface{}, info interface{}) (node *Node) {
	return tree.insert(key, info)
}

// ExactQuery returns a node whose key compares equal to key, or nil.  Which
// node is returned when several share the key is unspecified.
func (tree *Tree) ExactQuery(key interface{}) (node *Node) {
	x := tree.root
	for x != tree.sentinel {
		c := tree.compare(key, x.key)
		if 0 == c {
			return x
		}
		if 0 > c {
			x = x.left
		} else {
			x = x.right
		}
	}
	return nil
}

// Delete removes node, which must have been returned by a query on this tree
// and not deleted since.  The key and info destroy funcs are called on it.
func (tree *Tree) Delete(node *Node) {
	tree.delete(node)
}

// Predecessor returns the node immediately before node in order, or nil.
func (tree *Tree) Predecessor(node *Node) *Node {
	if tree.halter.Trigger(halter.RBTreeWrongPredecessor) {
		return node
	}
	return tree.external(tree.predecessor(node))
}

// Successor returns the node immediately after node in order, or nil.
func (tree *Tree) Successor(node *Node) *Node {
	return tree.external(tree.successor(node))
}

// Enumerate returns a Stack of every node with low <= key <= high.  Nodes are
// pushed in descending order, so popping yields them in ascending order.
func (tree *Tree) Enumerate(low interface{}, high interface{}) (stack *Stack) {
	stack = &Stack{}

	lastBest := tree.sentinel
	x := tree.root
	for x != tree.sentinel {
		if 0 < tree.compare(x.key, high) {
			x = x.left
		} else {
			lastBest = x
			x = x.right
		}
	}

	for (lastBest != tree.sentinel) && (0 >= tree.compare(low, lastBest.key)) {
		stack.Push(lastBest)
		lastBest = tree.predecessor(lastBest)
	}

	return
}

// Walk calls visit on every node in order, stopping at the first error.
func (tree *Tree) Walk(visit func(node *Node) error) (err error) {
	return tree.walk(tree.root, visit)
}

// Destroy calls the destroy funcs on every node and leaves the tree empty.
// Calling it again is harmless.
func (tree *Tree) Destroy() {
	tree.destroy(tree.root)
	tree.root = tree.sentinel
	tree.count = 0
}
