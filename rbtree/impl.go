// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package rbtree

import (
	"github.com/NVIDIA/rbfuzz/halter"
)

func (tree *Tree) external(node *Node) *Node {
	if node == tree.sentinel {
		return nil
	}
	return node
}

func (tree *Tree) minimum(x *Node) *Node {
	for x.left != tree.sentinel {
		x = x.left
	}
	return x
}

func (tree *Tree) maximum(x *Node) *Node {
	for x.right != tree.sentinel {
		x = x.right
	}
	return x
}

func (tree *Tree) predecessor(x *Node) *Node {
	if x.left != tree.sentinel {
		return tree.maximum(x.left)
	}
	y := x.parent
	for (y != tree.sentinel) && (x == y.left) {
		x = y
		y = y.parent
	}
	return y
}

func (tree *Tree) successor(x *Node) *Node {
	if x.right != tree.sentinel {
		return tree.minimum(x.right)
	}
	y := x.parent
	for (y != tree.sentinel) && (x == y.right) {
		x = y
		y = y.parent
	}
	return y
}

func (tree *Tree) leftRotate(x *Node) {
	y := x.right
	x.right = y.left
	if y.left != tree.sentinel {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == tree.sentinel:
		tree.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (tree *Tree) rightRotate(y *Node) {
	x := y.left
	y.left = x.right
	if x.right != tree.sentinel {
		x.right.parent = y
	}
	x.parent = y.parent
	switch {
	case y.parent == tree.sentinel:
		tree.root = x
	case y == y.parent.left:
		y.parent.left = x
	default:
		y.parent.right = x
	}
	x.right = y
	y.parent = x
}

func (tree *Tree) insert(key interface{}, info interface{}) (z *Node) {
	z = &Node{
		key:   key,
		info:  info,
		left:  tree.sentinel,
		right: tree.sentinel,
		red:   true,
	}

	y := tree.sentinel
	x := tree.root
	goLeft := false
	misorder := (x != tree.sentinel) && tree.halter.Trigger(halter.RBTreeMisorderInsert)

	for x != tree.sentinel {
		y = x
		// Equal keys descend right so a duplicate lands after its peers
		goLeft = 0 > tree.compare(key, x.key)
		if misorder {
			goLeft = !goLeft
			misorder = false
		}
		if goLeft {
			x = x.left
		} else {
			x = x.right
		}
	}

	z.parent = y
	switch {
	case y == tree.sentinel:
		tree.root = z
	case goLeft:
		y.left = z
	default:
		y.right = z
	}
	tree.count++

	if tree.halter.Trigger(halter.RBTreeSkipInsertFixup) {
		return
	}
	tree.insertFixup(z)

	return
}

func (tree *Tree) insertFixup(z *Node) {
	for z.parent.red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.red {
				z.parent.red = false
				y.red = false
				z.parent.parent.red = true
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					tree.leftRotate(z)
				}
				z.parent.red = false
				z.parent.parent.red = true
				tree.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.red {
				z.parent.red = false
				y.red = false
				z.parent.parent.red = true
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					tree.rightRotate(z)
				}
				z.parent.red = false
				z.parent.parent.red = true
				tree.leftRotate(z.parent.parent)
			}
		}
	}
	tree.root.red = false
	tree.sentinel.red = false
}

// transplant replaces the subtree rooted at u with the one rooted at v.  The
// sentinel's parent is set when v is the sentinel; deleteFixup relies on it.
func (tree *Tree) transplant(u *Node, v *Node) {
	switch {
	case u.parent == tree.sentinel:
		tree.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	v.parent = u.parent
}

func (tree *Tree) delete(z *Node) {
	var x *Node

	if tree.halter.Trigger(halter.RBTreeLoseDelete) {
		return
	}

	y := z
	yOriginallyRed := y.red

	switch {
	case z.left == tree.sentinel:
		x = z.right
		tree.transplant(z, z.right)
	case z.right == tree.sentinel:
		x = z.left
		tree.transplant(z, z.left)
	default:
		y = tree.minimum(z.right)
		yOriginallyRed = y.red
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			tree.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		tree.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.red = z.red
	}
	tree.count--

	if !yOriginallyRed && !tree.halter.Trigger(halter.RBTreeSkipDeleteFixup) {
		tree.deleteFixup(x)
	}

	tree.release(z)
	z.left, z.right, z.parent = nil, nil, nil
}

func (tree *Tree) deleteFixup(x *Node) {
	for (x != tree.root) && !x.red {
		if x == x.parent.left {
			w := x.parent.right
			if w.red {
				w.red = false
				x.parent.red = true
				tree.leftRotate(x.parent)
				w = x.parent.right
			}
			if !w.left.red && !w.right.red {
				w.red = true
				x = x.parent
			} else {
				if !w.right.red {
					w.left.red = false
					w.red = true
					tree.rightRotate(w)
					w = x.parent.right
				}
				w.red = x.parent.red
				x.parent.red = false
				w.right.red = false
				tree.leftRotate(x.parent)
				x = tree.root
			}
		} else {
			w := x.parent.left
			if w.red {
				w.red = false
				x.parent.red = true
				tree.rightRotate(x.parent)
				w = x.parent.left
			}
			if !w.right.red && !w.left.red {
				w.red = true
				x = x.parent
			} else {
				if !w.left.red {
					w.right.red = false
					w.red = true
					tree.leftRotate(w)
					w = x.parent.left
				}
				w.red = x.parent.red
				x.parent.red = false
				w.left.red = false
				tree.rightRotate(x.parent)
				x = tree.root
			}
		}
	}
	x.red = false
	tree.sentinel.red = false
}

func (tree *Tree) release(node *Node) {
	if nil != tree.keyDestroy {
		tree.keyDestroy(node.key)
	}
	if nil != tree.infoDestroy {
		tree.infoDestroy(node.info)
	}
}

func (tree *Tree) walk(x *Node, visit func(node *Node) error) (err error) {
	if x == tree.sentinel {
		return
	}
	err = tree.walk(x.left, visit)
	if nil != err {
		return
	}
	err = visit(x)
	if nil != err {
		return
	}
	return tree.walk(x.right, visit)
}

func (tree *Tree) destroy(x *Node) {
	if x == tree.sentinel {
		return
	}
	tree.destroy(x.left)
	tree.destroy(x.right)
	tree.release(x)
	x.left, x.right, x.parent = nil, nil, nil
}
