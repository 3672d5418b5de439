// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package source provides the value-generation and choice primitives that drive
// a run.  Whatever backend is plugged in (seeded random, a replayed byte string,
// rapid's shrinking generators, or exhaustive enumeration) the code consuming a
// Source only ever asks it to pick; it never draws randomness itself.
package source

// Source is the input-generation backend of a run.
type Source interface {
	// Bool returns a nondeterministic bool.
	Bool() bool
	// Int returns any int64.
	Int() int64
	// IntRange returns an int64 in [low, high]; low must not exceed high.
	IntRange(low int64, high int64) int64
	// Byte returns any byte.
	Byte() byte
	// OneOf picks one of n mutually exclusive alternatives, returning [0, n).
	OneOf(n int) int
}

// span returns high-low+1 as a uint64; zero means the full int64 range.
func span(low int64, high int64) uint64 {
	return uint64(high-low) + 1
}

// oneOfWidth is the number of bytes OneOf consumes from a byte stream.
func oneOfWidth(n int) int {
	if n <= 256 {
		return 1
	}
	return 4
}
