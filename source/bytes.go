// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"encoding/binary"
)

// Bytes consumes a byte string, one primitive at a time.  Once the string is
// exhausted every primitive reads zeros, so any input is a complete run.  This
// is the backend for native fuzzing and corpus replay.
//
// Encoding: Bool and Byte take one byte, Int and IntRange take eight (big
// endian, IntRange reduced modulo the range width), OneOf takes one byte for
// n <= 256 and four otherwise.
type Bytes struct {
	data     []byte
	consumed int
}

func NewBytes(data []byte) (bytes *Bytes) {
	bytes = &Bytes{data: data}
	return
}

func (bytes *Bytes) next(width int) (buf []byte) {
	buf = make([]byte, width)
	if bytes.consumed < len(bytes.data) {
		copy(buf, bytes.data[bytes.consumed:])
	}
	bytes.consumed += width
	return
}

// Consumed returns how many bytes have been read, counting zero fill.
func (bytes *Bytes) Consumed() int {
	return bytes.consumed
}

// Exhausted reports whether reads have run past the end of the input.
func (bytes *Bytes) Exhausted() bool {
	return bytes.consumed > len(bytes.data)
}

func (bytes *Bytes) Bool() bool {
	return 1 == (bytes.next(1)[0] & 1)
}

func (bytes *Bytes) Int() int64 {
	return int64(binary.BigEndian.Uint64(bytes.next(8)))
}

func (bytes *Bytes) IntRange(low int64, high int64) int64 {
	u := binary.BigEndian.Uint64(bytes.next(8))
	n := span(low, high)
	if 0 == n {
		return low + int64(u)
	}
	return low + int64(u%n)
}

func (bytes *Bytes) Byte() byte {
	return bytes.next(1)[0]
}

func (bytes *Bytes) OneOf(n int) int {
	if 1 == oneOfWidth(n) {
		return int(bytes.next(1)[0]) % n
	}
	return int(binary.BigEndian.Uint32(bytes.next(4)) % uint32(n))
}
