// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"fmt"

	"github.com/NVIDIA/rbfuzz/oracle"
)

// Kind selects one of the operations a round may apply to both models.
type Kind int

const (
	Insert Kind = iota
	Delete
	Find
	Predecessor
	Successor
	RangeEnumerate
	StructuralCheck
	RandomTeardown

	numKinds
)

var kindStrings = []string{
	"INSERT",
	"DELETE",
	"FIND",
	"PRED",
	"SUCC",
	"RANGE",
	"CHECK",
	"TEARDOWN",
}

func (kind Kind) String() string {
	if (kind < 0) || (kind >= numKinds) {
		return fmt.Sprintf("Kind(%d)", int(kind))
	}
	return kindStrings[kind]
}

// ParseKind is the inverse of Kind.String().
func ParseKind(s string) (kind Kind, err error) {
	for i, kindString := range kindStrings {
		if s == kindString {
			kind = Kind(i)
			return
		}
	}
	err = fmt.Errorf("unknown action kind '%s'", s)
	return
}

// Kinds returns every Kind in menu order.
func Kinds() (kinds []Kind) {
	kinds = make([]Kind, numKinds)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return
}

// Menu lists the actions a round picks from.  RandomTeardown is only ever
// applied after the last round.
var Menu = []Kind{
	Insert,
	Delete,
	Find,
	Predecessor,
	Successor,
	RangeEnumerate,
	StructuralCheck,
}

// Action is one fully parameterized operation.  High is only used by
// RangeEnumerate and Info only by Insert.
type Action struct {
	Kind Kind
	Key  int64
	High int64
	Info oracle.Token
}

func (action Action) String() string {
	switch action.Kind {
	case Insert:
		return fmt.Sprintf("%v:%d %#x", action.Kind, action.Key, uint64(action.Info))
	case Delete, Find, Predecessor, Successor:
		return fmt.Sprintf("%v:%d", action.Kind, action.Key)
	case RangeEnumerate:
		return fmt.Sprintf("%v:%d..%d", action.Kind, action.Key, action.High)
	default:
		return action.Kind.String()
	}
}
