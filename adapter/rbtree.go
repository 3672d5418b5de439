// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/oracle"
	"github.com/NVIDIA/rbfuzz/rbtree"
)

type rbNode struct {
	node *rbtree.Node
}

func (n rbNode) Key() int64 {
	return n.node.Key().(int64)
}

func (n rbNode) Info() oracle.Token {
	return n.node.Info().(oracle.Token)
}

type rbTree struct {
	tree     *rbtree.Tree
	released int
}

// NewRBTree wraps the sentinel-based red-black tree of package rbtree.
func NewRBTree(h *halter.Halter) Tree {
	t := &rbTree{}
	t.tree = rbtree.New(
		func(keyA interface{}, keyB interface{}) int { return compareInt64(keyA.(int64), keyB.(int64)) },
		func(interface{}) { t.released++ },
		nil,
		func(key interface{}) string { return keyString(key.(int64)) },
		func(info interface{}) string { return infoString(info.(oracle.Token)) })
	t.tree.SetHalter(h)
	return t
}

func (t *rbTree) Name() string {
	return "rbtree"
}

func (t *rbTree) Insert(key int64, info oracle.Token) (err error) {
	t.tree.Insert(key, info)
	return
}

func (t *rbTree) ExactQuery(key int64) (node Node, ok bool, err error) {
	n := t.tree.ExactQuery(key)
	if nil == n {
		return
	}
	return rbNode{n}, true, nil
}

func (t *rbTree) unwrap(node Node) (n *rbtree.Node, err error) {
	wrapped, ok := node.(rbNode)
	if !ok || (nil == wrapped.node) {
		err = blunder.NewError(blunder.PreconditionViolation, "rbtree: node %v did not come from this tree", node)
		return
	}
	n = wrapped.node
	return
}

func (t *rbTree) Delete(node Node) (err error) {
	n, err := t.unwrap(node)
	if nil != err {
		return
	}
	t.tree.Delete(n)
	return
}

func (t *rbTree) Predecessor(node Node) (predecessor Node, ok bool, err error) {
	n, err := t.unwrap(node)
	if nil != err {
		return
	}
	if p := t.tree.Predecessor(n); nil != p {
		predecessor, ok = rbNode{p}, true
	}
	return
}

func (t *rbTree) Successor(node Node) (successor Node, ok bool, err error) {
	n, err := t.unwrap(node)
	if nil != err {
		return
	}
	if s := t.tree.Successor(n); nil != s {
		successor, ok = rbNode{s}, true
	}
	return
}

func (t *rbTree) Enumerate(low int64, high int64) (nodes []Node, err error) {
	stack := t.tree.Enumerate(low, high)
	nodes = make([]Node, 0, stack.Len())
	for {
		n, ok := stack.Pop()
		if !ok {
			return
		}
		nodes = append(nodes, rbNode{n})
	}
}

func (t *rbTree) CheckRep() (err error) {
	return t.tree.CheckRep()
}

func (t *rbTree) Walk(visit func(node Node) error) (err error) {
	return t.tree.Walk(func(n *rbtree.Node) error { return visit(rbNode{n}) })
}

func (t *rbTree) Len() int {
	return t.tree.Len()
}

func (t *rbTree) Dump() string {
	return t.tree.Dump()
}

func (t *rbTree) Destroy() {
	t.tree.Destroy()
}
