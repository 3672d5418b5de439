// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"fmt"
	"math"
	"sort"
)

// DefaultInts are the values Explorer.Int() ranges over.
var DefaultInts = []int64{math.MinInt64, -1, 0, 1, math.MaxInt64}

// DefaultMaxRangeValues bounds how many values of an IntRange are enumerated
// before Explorer falls back to the range's edges and midpoint.
const DefaultMaxRangeValues = 8

type choicePoint struct {
	index  int
	domain int
}

// Explorer enumerates every sequence of choices a run can make, depth first,
// so that each alternative of each choice is executed as a separate run.
// Ints come from a small representative set and wide ranges are reduced to
// their edges and midpoint, keeping the space finite.  Bytes are not explored:
// Byte() returns successive counter values along each path.
//
// Use:
//
//   explorer := source.NewExplorer()
//   for explorer.Next() {
//       ... one run driven by explorer ...
//   }
type Explorer struct {
	Ints           []int64
	MaxRangeValues int
	MaxRuns        int // 0 is unlimited

	path        []choicePoint
	pos         int
	runs        int
	byteCounter byte
	done        bool
	truncated   bool
	mismatch    error
}

func NewExplorer() (explorer *Explorer) {
	explorer = &Explorer{
		Ints:           DefaultInts,
		MaxRangeValues: DefaultMaxRangeValues,
	}
	return
}

// Next prepares the next unexplored path, returning false when every path
// (or MaxRuns paths) has been run.
func (explorer *Explorer) Next() bool {
	if explorer.done || (nil != explorer.mismatch) {
		return false
	}

	if 0 < explorer.runs {
		// choices beyond pos were never reached on the last run
		explorer.path = explorer.path[:explorer.pos]

		i := len(explorer.path) - 1
		for (0 <= i) && (explorer.path[i].index+1 >= explorer.path[i].domain) {
			i--
		}
		if 0 > i {
			explorer.done = true
			return false
		}
		explorer.path[i].index++
		explorer.path = explorer.path[:i+1]
	}

	if (0 < explorer.MaxRuns) && (explorer.runs >= explorer.MaxRuns) {
		explorer.done = true
		explorer.truncated = true
		return false
	}

	explorer.pos = 0
	explorer.byteCounter = 0
	explorer.runs++
	return true
}

// Runs returns how many paths have been started.
func (explorer *Explorer) Runs() int {
	return explorer.runs
}

// Exhausted reports whether every path was explored (rather than stopping at MaxRuns).
func (explorer *Explorer) Exhausted() bool {
	return explorer.done && !explorer.truncated && (nil == explorer.mismatch)
}

// Err reports a run that made different choices when replaying the same
// prefix, meaning the code under exploration is not deterministic.
func (explorer *Explorer) Err() error {
	return explorer.mismatch
}

// Path returns the choice indices of the current path.
func (explorer *Explorer) Path() (indices []int) {
	indices = make([]int, explorer.pos)
	for i := 0; i < explorer.pos; i++ {
		indices[i] = explorer.path[i].index
	}
	return
}

func (explorer *Explorer) choose(domain int) int {
	if explorer.pos < len(explorer.path) {
		point := explorer.path[explorer.pos]
		if (point.domain != domain) && (nil == explorer.mismatch) {
			explorer.mismatch = fmt.Errorf("choice %d had domain %d, now %d", explorer.pos, point.domain, domain)
		}
		explorer.pos++
		if point.index >= domain {
			return domain - 1
		}
		return point.index
	}
	explorer.path = append(explorer.path, choicePoint{index: 0, domain: domain})
	explorer.pos++
	return 0
}

func (explorer *Explorer) Bool() bool {
	return 1 == explorer.choose(2)
}

func (explorer *Explorer) Int() int64 {
	return explorer.Ints[explorer.choose(len(explorer.Ints))]
}

func (explorer *Explorer) IntRange(low int64, high int64) int64 {
	n := span(low, high)
	if (0 != n) && (n <= uint64(explorer.MaxRangeValues)) {
		return low + int64(explorer.choose(int(n)))
	}

	candidates := edgeValues(low, high)
	return candidates[explorer.choose(len(candidates))]
}

// edgeValues returns low, low+1, the midpoint, high-1 and high, deduplicated
// and sorted.
func edgeValues(low int64, high int64) (candidates []int64) {
	mid := low + int64((uint64(high)-uint64(low))/2)
	seen := make(map[int64]struct{})
	for _, v := range []int64{low, low + 1, mid, high - 1, high} {
		if (v < low) || (v > high) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		candidates = append(candidates, v)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	return
}

func (explorer *Explorer) Byte() (b byte) {
	b = explorer.byteCounter
	explorer.byteCounter++
	return
}

func (explorer *Explorer) OneOf(n int) int {
	return explorer.choose(n)
}
