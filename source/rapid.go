// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"pgregory.net/rapid"
)

// Rapid draws every primitive from a rapid.T, so failures shrink to a minimal
// choice sequence.
type Rapid struct {
	t *rapid.T
}

func NewRapid(t *rapid.T) (r *Rapid) {
	r = &Rapid{t: t}
	return
}

func (r *Rapid) Bool() bool {
	return rapid.Bool().Draw(r.t, "bool")
}

func (r *Rapid) Int() int64 {
	return rapid.Int64().Draw(r.t, "int")
}

func (r *Rapid) IntRange(low int64, high int64) int64 {
	return rapid.Int64Range(low, high).Draw(r.t, "intRange")
}

func (r *Rapid) Byte() byte {
	return rapid.Byte().Draw(r.t, "byte")
}

func (r *Rapid) OneOf(n int) int {
	return rapid.IntRange(0, n-1).Draw(r.t, "oneOf")
}
