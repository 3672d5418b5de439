// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package rbtree

import (
	"fmt"
	"strings"

	"github.com/NVIDIA/rbfuzz/blunder"
)

type checkState struct {
	visited int
	prev    *Node
}

// CheckRep validates the red-black invariants: black root and sentinel, no
// red node with a red child, equal black height on every path, consistent
// parent links, non-decreasing in-order keys, and a node count matching Len().
//
// A violation is returned as a blunder.StructuralViolation.
func (tree *Tree) CheckRep() (err error) {
	if tree.sentinel.red {
		err = blunder.NewError(blunder.StructuralViolation, "sentinel is red")
		return
	}
	if tree.root.red {
		err = blunder.NewError(blunder.StructuralViolation, "root %s is red", tree.keyString(tree.root))
		return
	}
	if (tree.root != tree.sentinel) && (tree.root.parent != tree.sentinel) {
		err = blunder.NewError(blunder.StructuralViolation, "root %s has a parent", tree.keyString(tree.root))
		return
	}

	state := &checkState{}

	_, err = tree.checkSubtree(tree.root, state)
	if nil != err {
		return
	}

	if state.visited != tree.count {
		err = blunder.NewError(blunder.StructuralViolation, "found %d nodes but Len() is %d", state.visited, tree.count)
	}

	return
}

// checkSubtree returns the black height of the subtree rooted at x.
func (tree *Tree) checkSubtree(x *Node, state *checkState) (blackHeight int, err error) {
	if x == tree.sentinel {
		blackHeight = 1
		return
	}

	state.visited++
	if state.visited > tree.count {
		err = blunder.NewError(blunder.StructuralViolation, "more than Len()==%d nodes reachable", tree.count)
		return
	}

	if x.red && (x.left.red || x.right.red) {
		err = blunder.NewError(blunder.StructuralViolation, "red node %s has a red child", tree.keyString(x))
		return
	}
	if (x.left != tree.sentinel) && (x.left.parent != x) {
		err = blunder.NewError(blunder.StructuralViolation, "left child of %s has a wrong parent link", tree.keyString(x))
		return
	}
	if (x.right != tree.sentinel) && (x.right.parent != x) {
		err = blunder.NewError(blunder.StructuralViolation, "right child of %s has a wrong parent link", tree.keyString(x))
		return
	}

	leftBlackHeight, err := tree.checkSubtree(x.left, state)
	if nil != err {
		return
	}

	if (nil != state.prev) && (0 < tree.compare(state.prev.key, x.key)) {
		err = blunder.NewError(blunder.StructuralViolation, "key %s follows larger key %s in order",
			tree.keyString(x), tree.keyString(state.prev))
		return
	}
	state.prev = x

	rightBlackHeight, err := tree.checkSubtree(x.right, state)
	if nil != err {
		return
	}

	if leftBlackHeight != rightBlackHeight {
		err = blunder.NewError(blunder.StructuralViolation, "node %s has black heights %d (left) and %d (right)",
			tree.keyString(x), leftBlackHeight, rightBlackHeight)
		return
	}

	blackHeight = leftBlackHeight
	if !x.red {
		blackHeight++
	}

	return
}

func (tree *Tree) keyString(node *Node) string {
	if nil == tree.keyPrint {
		return fmt.Sprintf("%v", node.key)
	}
	return tree.keyPrint(node.key)
}

func (tree *Tree) infoString(node *Node) string {
	if nil == tree.infoPrint {
		return fmt.Sprintf("%v", node.info)
	}
	return tree.infoPrint(node.info)
}

// Dump returns one line per node, in order, giving key, info, color and the
// keys of the parent and children ("nil" for the sentinel).
func (tree *Tree) Dump() string {
	var sb strings.Builder

	name := func(node *Node) string {
		if node == tree.sentinel {
			return "nil"
		}
		return tree.keyString(node)
	}

	_ = tree.Walk(func(node *Node) error {
		color := "black"
		if node.red {
			color = "red"
		}
		fmt.Fprintf(&sb, "key=%s info=%s %s l=%s r=%s p=%s\n",
			tree.keyString(node), tree.infoString(node), color, name(node.left), name(node.right), name(node.parent))
		return nil
	})

	return sb.String()
}
