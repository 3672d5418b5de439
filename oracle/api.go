// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package oracle is the reference ordered multimap that a tree under test is
// checked against.
//
// A Container is a slice of Entries kept sorted by key, with entries sharing a
// key kept in insertion order.  It is deliberately simple so that it is
// obviously correct.  A Container is not safe for concurrent use.
package oracle

import (
	"fmt"
	"sort"
)

// Token is an opaque pointer-sized value, compared only for equality.
type Token uint64

type Entry struct {
	Key  int64
	Info Token
}

func (entry Entry) String() string {
	return fmt.Sprintf("%d:%#x", entry.Key, uint64(entry.Info))
}

// Status is the outcome of a Predecessor or Successor query.
type Status int

const (
	Found Status = iota
	KeyNotFound
	NoPredOrSucc
)

func (status Status) String() string {
	switch status {
	case Found:
		return "FOUND"
	case KeyNotFound:
		return "KEY_NOT_FOUND"
	case NoPredOrSucc:
		return "NO_PRED_OR_SUCC"
	}
	return fmt.Sprintf("Status(%d)", int(status))
}

// End is the cursor value past the last entry.
const End = -1

// Picker chooses one of n alternatives, returning a value in [0, n).
type Picker interface {
	OneOf(n int) int
}

type Container struct {
	entries []Entry
}

func New() (container *Container) {
	container = &Container{entries: make([]Entry, 0)}
	return
}

// lowerBound returns the index of the first entry with Key >= key.
func (container *Container) lowerBound(key int64) int {
	return sort.Search(len(container.entries), func(i int) bool { return container.entries[i].Key >= key })
}

// upperBound returns the index of the first entry with Key > key.
func (container *Container) upperBound(key int64) int {
	return sort.Search(len(container.entries), func(i int) bool { return container.entries[i].Key > key })
}

func (container *Container) removeAt(i int) {
	copy(container.entries[i:], container.entries[i+1:])
	container.entries = container.entries[:len(container.entries)-1]
}

// Insert places (key, info) after every entry with an equal or smaller key.
//
// Under a no-duplicates policy the caller must first check Find(key); the
// container does not.
func (container *Container) Insert(key int64, info Token) {
	i := container.upperBound(key)
	container.entries = append(container.entries, Entry{})
	copy(container.entries[i+1:], container.entries[i:])
	container.entries[i] = Entry{Key: key, Info: info}
}

// Delete removes the earliest inserted entry with key, returning false if
// there is none.
func (container *Container) Delete(key int64) bool {
	i := container.lowerBound(key)
	if (i == len(container.entries)) || (container.entries[i].Key != key) {
		return false
	}
	container.removeAt(i)
	return true
}

// DeleteEntry removes the earliest inserted entry matching both key and info,
// returning false if there is none.
func (container *Container) DeleteEntry(key int64, info Token) bool {
	for i := container.lowerBound(key); (i < len(container.entries)) && (container.entries[i].Key == key); i++ {
		if container.entries[i].Info == info {
			container.removeAt(i)
			return true
		}
	}
	return false
}

func (container *Container) Find(key int64) bool {
	i := container.lowerBound(key)
	return (i < len(container.entries)) && (container.entries[i].Key == key)
}

// Predecessor returns KeyNotFound if key is absent, else the nearest strictly
// smaller key, or NoPredOrSucc if key is the smallest.
func (container *Container) Predecessor(key int64) (status Status, predecessorKey int64) {
	if !container.Find(key) {
		status = KeyNotFound
		return
	}
	i := container.lowerBound(key)
	if 0 == i {
		status = NoPredOrSucc
		return
	}
	status = Found
	predecessorKey = container.entries[i-1].Key
	return
}

// Successor returns KeyNotFound if key is absent, else the nearest strictly
// larger key, or NoPredOrSucc if key is the largest.
func (container *Container) Successor(key int64) (status Status, successorKey int64) {
	if !container.Find(key) {
		status = KeyNotFound
		return
	}
	i := container.upperBound(key)
	if len(container.entries) == i {
		status = NoPredOrSucc
		return
	}
	status = Found
	successorKey = container.entries[i].Key
	return
}

// Start returns a cursor at the first entry, or End if empty.
func (container *Container) Start() int {
	if 0 == len(container.entries) {
		return End
	}
	return 0
}

// Next advances cursor, returning End past the last entry.
func (container *Container) Next(cursor int) int {
	if (End == cursor) || (cursor+1 >= len(container.entries)) {
		return End
	}
	return cursor + 1
}

// Get dereferences a cursor that is not End.
func (container *Container) Get(cursor int) Entry {
	return container.entries[cursor]
}

// StartRange returns a cursor at the first entry with low <= Key <= high, or
// End if there is none (including when low > high).
func (container *Container) StartRange(low int64, high int64) int {
	if low > high {
		return End
	}
	i := container.lowerBound(low)
	if (i == len(container.entries)) || (container.entries[i].Key > high) {
		return End
	}
	return i
}

// NextRange advances a range cursor, returning End once past high.
func (container *Container) NextRange(high int64, cursor int) int {
	cursor = container.Next(cursor)
	if (End != cursor) && (container.entries[cursor].Key > high) {
		return End
	}
	return cursor
}

// RandomEntry returns the key of an entry chosen by picker, uniformly when the
// picker is uniform, or false if the container is empty.
func (container *Container) RandomEntry(picker Picker) (found bool, key int64) {
	if 0 == len(container.entries) {
		return
	}
	found = true
	key = container.entries[picker.OneOf(len(container.entries))].Key
	return
}

func (container *Container) Len() int {
	return len(container.entries)
}

// Keys returns every key in order.
func (container *Container) Keys() (keys []int64) {
	keys = make([]int64, len(container.entries))
	for i, entry := range container.entries {
		keys[i] = entry.Key
	}
	return
}

// Entries returns a copy of every entry in order.
func (container *Container) Entries() (entries []Entry) {
	entries = make([]Entry, len(container.entries))
	copy(entries, container.entries)
	return
}
