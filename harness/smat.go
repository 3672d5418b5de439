// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"sort"

	"github.com/mschoch/smat"

	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/logger"
	"github.com/NVIDIA/rbfuzz/oracle"
	"github.com/NVIDIA/rbfuzz/source"
)

// The smat driver holds action arguments in two registers that dedicated
// actions nudge, so a short byte string still reaches interesting keys.  Keys
// stay in [0, smatKeySpace) to make hits and duplicates common.

const smatKeySpace = 64

const (
	SmatSetup    = smat.ActionID('S')
	SmatTeardown = smat.ActionID('T')
)

// SmatContext is the smat.Context of one smat-driven run.  Its first
// violation is kept in Err; later actions are ignored.
type SmatContext struct {
	Config Config
	Halter *halter.Halter
	Err    error

	run      *Run
	key      int64
	high     int64
	nextInfo uint64
}

func NewSmatContext(config Config, h *halter.Halter) *SmatContext {
	config.ChooseSetup = false
	return &SmatContext{Config: config, Halter: h}
}

// OneOf picks teardown victims from the key register.
func (c *SmatContext) OneOf(n int) int {
	return int(c.key) % n
}

var smatActionMap = smat.ActionMap{
	smat.ActionID('K'): smatRegister(func(c *SmatContext) { c.key = (c.key + 1) % smatKeySpace }),
	smat.ActionID('k'): smatRegister(func(c *SmatContext) { c.key = (c.key + smatKeySpace - 1) % smatKeySpace }),
	smat.ActionID('D'): smatRegister(func(c *SmatContext) { c.key = (c.key * 2) % smatKeySpace }),
	smat.ActionID('H'): smatRegister(func(c *SmatContext) { c.high = (c.high + 1) % smatKeySpace }),
	smat.ActionID('h'): smatRegister(func(c *SmatContext) { c.high = (c.high + smatKeySpace - 1) % smatKeySpace }),
	smat.ActionID('x'): smatRegister(func(c *SmatContext) { c.key, c.high = c.high, c.key }),

	smat.ActionID('i'): smatApply(Insert),
	smat.ActionID('d'): smatApply(Delete),
	smat.ActionID('f'): smatApply(Find),
	smat.ActionID('p'): smatApply(Predecessor),
	smat.ActionID('s'): smatApply(Successor),
	smat.ActionID('r'): smatApply(RangeEnumerate),
	smat.ActionID('c'): smatApply(StructuralCheck),
	smat.ActionID('t'): smatApply(RandomTeardown),
}

var smatRunningPercentActions []smat.PercentAction

func init() {
	var ids []int
	for actionID := range smatActionMap {
		ids = append(ids, int(actionID))
	}
	sort.Ints(ids)

	pct := 100 / len(smatActionMap)
	for _, actionID := range ids {
		smatRunningPercentActions = append(smatRunningPercentActions,
			smat.PercentAction{Percent: pct, Action: smat.ActionID(actionID)})
	}

	smatActionMap[SmatSetup] = smatSetup
	smatActionMap[SmatTeardown] = smatTeardown
}

// SmatActionMap returns the action map smat.Fuzz and smat.Longevity need.
func SmatActionMap() smat.ActionMap {
	return smatActionMap
}

func smatRunning(next byte) smat.ActionID {
	return smat.PercentExecute(next, smatRunningPercentActions...)
}

func smatSetup(ctx smat.Context) (next smat.State, err error) {
	c := ctx.(*SmatContext)
	c.run, err = New(c.Config, source.NewBytes(nil), c.Halter)
	if nil != err {
		return
	}
	c.run.picker = c
	next = smatRunning
	return
}

func smatTeardown(ctx smat.Context) (next smat.State, err error) {
	c := ctx.(*SmatContext)
	if nil != c.run {
		if nil == c.Err {
			c.Err = c.run.Verify()
		}
		c.run.Close()
	}
	return
}

func smatRegister(cb func(c *SmatContext)) func(smat.Context) (smat.State, error) {
	return func(ctx smat.Context) (next smat.State, err error) {
		cb(ctx.(*SmatContext))
		next = smatRunning
		return
	}
}

func smatApply(kind Kind) func(smat.Context) (smat.State, error) {
	return func(ctx smat.Context) (next smat.State, err error) {
		c := ctx.(*SmatContext)
		next = smatRunning
		if nil != c.Err {
			return
		}

		action := Action{Kind: kind, Key: c.key, High: c.high}
		if Insert == kind {
			c.nextInfo++
			action.Info = oracle.Token(c.nextInfo)
		}

		_, c.Err = c.run.Apply(action)
		if nil == c.Err {
			c.Err = c.run.Verify()
		}
		if nil == c.Err {
			c.run.round++
		} else {
			logger.Tracef("smat run failed: %v", c.Err)
		}
		return
	}
}

// SmatFuzz replays data as an smat action sequence and returns the first
// violation, if any.
func SmatFuzz(data []byte, config Config, h *halter.Halter) (err error) {
	err = config.Validate()
	if nil != err {
		return
	}
	c := NewSmatContext(config, h)
	smat.Fuzz(c, SmatSetup, SmatTeardown, smatActionMap, data)
	err = c.Err
	return
}
