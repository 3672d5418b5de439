// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package halter provides armable fault-injection triggers.
//
// Code under test calls Trigger() at labelled sites; a test (or a run
// configured with a [FaultInjection] section) arms a label so that the
// haltAfterCount'd call to Trigger() for that label returns true, once.  The
// site then misbehaves on purpose so that the differential checker can be
// shown to catch it.
package halter

import (
	"fmt"
	"sort"
	"sync"
)

// Note: HaltLabelStrings should be kept in sync with the sites that call Trigger()

const (
	apiTestHaltLabel1 = "halter.testHaltLabel1"
	apiTestHaltLabel2 = "halter.testHaltLabel2"

	// RBTreeSkipInsertFixup makes an insert leave the new red node unbalanced.
	RBTreeSkipInsertFixup = "rbtree.skipInsertFixup"
	// RBTreeSkipDeleteFixup makes a delete skip recoloring after removing a black node.
	RBTreeSkipDeleteFixup = "rbtree.skipDeleteFixup"
	// RBTreeMisorderInsert makes an insert descend the wrong way once.
	RBTreeMisorderInsert = "rbtree.misorderInsert"
	// RBTreeWrongPredecessor makes a predecessor query answer with the node itself.
	RBTreeWrongPredecessor = "rbtree.wrongPredecessor"
	// RBTreeLoseDelete makes a delete report success without unlinking the node.
	RBTreeLoseDelete = "rbtree.loseDelete"
)

var (
	HaltLabelStrings = []string{
		apiTestHaltLabel1,
		apiTestHaltLabel2,
		RBTreeSkipInsertFixup,
		RBTreeSkipDeleteFixup,
		RBTreeMisorderInsert,
		RBTreeWrongPredecessor,
		RBTreeLoseDelete,
	}
)

// Halter tracks armed triggers.  A nil *Halter never triggers.
type Halter struct {
	sync.Mutex
	armedTriggers map[string]uint32 // key: haltLabel; value: haltAfterCount (remaining)
	fired         map[string]uint32 // key: haltLabel; value: times fired
}

func New() (halter *Halter) {
	halter = &Halter{
		armedTriggers: make(map[string]uint32),
		fired:         make(map[string]uint32),
	}
	return
}

func knownLabel(haltLabelString string) bool {
	for _, s := range HaltLabelStrings {
		if s == haltLabelString {
			return true
		}
	}
	return false
}

// Arm sets up a HALT on the haltAfterCount'd call to Trigger()
func (halter *Halter) Arm(haltLabelString string, haltAfterCount uint32) (err error) {
	if !knownLabel(haltLabelString) {
		err = fmt.Errorf("halter.Arm(haltLabelString='%v',) - label unknown", haltLabelString)
		return
	}
	if 0 == haltAfterCount {
		err = fmt.Errorf("halter.Arm(haltLabel==%v,) called with haltAfterCount==0", haltLabelString)
		return
	}
	halter.Lock()
	halter.armedTriggers[haltLabelString] = haltAfterCount
	halter.Unlock()
	return
}

// Disarm removes a previously armed trigger via a call to Arm()
func (halter *Halter) Disarm(haltLabelString string) (err error) {
	if !knownLabel(haltLabelString) {
		err = fmt.Errorf("halter.Disarm(haltLabelString='%v') - label unknown", haltLabelString)
		return
	}
	halter.Lock()
	delete(halter.armedTriggers, haltLabelString)
	halter.Unlock()
	return
}

// Trigger decrements the haltAfterCount if armed and, should it reach 0,
// disarms the label and returns true
func (halter *Halter) Trigger(haltLabelString string) (halt bool) {
	if nil == halter {
		return
	}
	halter.Lock()
	defer halter.Unlock()
	numTriggersRemaining, armed := halter.armedTriggers[haltLabelString]
	if !armed {
		return
	}
	numTriggersRemaining--
	if 0 == numTriggersRemaining {
		delete(halter.armedTriggers, haltLabelString)
		halter.fired[haltLabelString]++
		halt = true
		return
	}
	halter.armedTriggers[haltLabelString] = numTriggersRemaining
	return
}

// Fired returns how many times haltLabelString has triggered
func (halter *Halter) Fired(haltLabelString string) uint32 {
	if nil == halter {
		return 0
	}
	halter.Lock()
	defer halter.Unlock()
	return halter.fired[haltLabelString]
}

// Dump returns a map of currently armed triggers and their remaining trigger count
func (halter *Halter) Dump() (armedTriggers map[string]uint32) {
	armedTriggers = make(map[string]uint32)
	if nil == halter {
		return
	}
	halter.Lock()
	for k, v := range halter.armedTriggers {
		armedTriggers[k] = v
	}
	halter.Unlock()
	return
}

// List returns a sorted slice of available triggers
func List() (availableTriggers []string) {
	availableTriggers = make([]string, len(HaltLabelStrings))
	copy(availableTriggers, HaltLabelStrings)
	sort.Strings(availableTriggers)
	return
}
