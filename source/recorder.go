// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package source

import (
	"encoding/binary"
)

// Recorder passes every primitive through to an inner Source and records the
// result in the Bytes encoding, so that NewBytes(recorder.Recorded()) replays
// the same run.  Campaigns use it to save failing random runs as corpus files.
type Recorder struct {
	inner    Source
	recorded []byte
}

func NewRecorder(inner Source) (recorder *Recorder) {
	recorder = &Recorder{inner: inner}
	return
}

// Recorded returns the bytes recorded so far.
func (recorder *Recorder) Recorded() []byte {
	return recorder.recorded
}

func (recorder *Recorder) appendUint64(u uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)
	recorder.recorded = append(recorder.recorded, buf[:]...)
}

func (recorder *Recorder) Bool() (b bool) {
	b = recorder.inner.Bool()
	if b {
		recorder.recorded = append(recorder.recorded, 1)
	} else {
		recorder.recorded = append(recorder.recorded, 0)
	}
	return
}

func (recorder *Recorder) Int() (i int64) {
	i = recorder.inner.Int()
	recorder.appendUint64(uint64(i))
	return
}

func (recorder *Recorder) IntRange(low int64, high int64) (i int64) {
	i = recorder.inner.IntRange(low, high)
	recorder.appendUint64(uint64(i - low))
	return
}

func (recorder *Recorder) Byte() (b byte) {
	b = recorder.inner.Byte()
	recorder.recorded = append(recorder.recorded, b)
	return
}

func (recorder *Recorder) OneOf(n int) (i int) {
	i = recorder.inner.OneOf(n)
	if 1 == oneOfWidth(n) {
		recorder.recorded = append(recorder.recorded, byte(i))
	} else {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(i))
		recorder.recorded = append(recorder.recorded, buf[:]...)
	}
	return
}
