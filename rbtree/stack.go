// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package rbtree

// Stack is the last-in first-out result of Enumerate.
type Stack struct {
	nodes []*Node
}

func (stack *Stack) Push(node *Node) {
	stack.nodes = append(stack.nodes, node)
}

// Pop returns false when the stack is empty.
func (stack *Stack) Pop() (node *Node, ok bool) {
	if 0 == len(stack.nodes) {
		return
	}
	node = stack.nodes[len(stack.nodes)-1]
	stack.nodes = stack.nodes[:len(stack.nodes)-1]
	ok = true
	return
}

func (stack *Stack) Len() int {
	return len(stack.nodes)
}

func (stack *Stack) Empty() bool {
	return 0 == len(stack.nodes)
}
