// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testNestedCaller() string {
	return GetCallerFnName()
}

func TestFnNames(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("utils.TestFnNames", GetFnName())
	assert.Equal("utils.TestFnNames", testNestedCaller())

	fn, pkg, gid := GetFuncPackage(0)
	assert.Equal("TestFnNames", fn)
	assert.Equal("utils", pkg)
	assert.NotEqual(uint64(0), gid)
}

func TestHexStr(t *testing.T) {
	assert := assert.New(t)

	hexStr := Uint64ToHexStr(0xDEADBEEF)
	assert.Equal("00000000DEADBEEF", hexStr)

	value, err := HexStrToUint64(hexStr)
	assert.Nil(err)
	assert.Equal(uint64(0xDEADBEEF), value)

	_, err = HexStrToUint64("not hex")
	assert.NotNil(err)
}

func TestStopwatch(t *testing.T) {
	assert := assert.New(t)

	sw := NewStopwatch()
	assert.True(sw.IsRunning)
	time.Sleep(10 * time.Millisecond)

	elapsed := sw.Stop()
	assert.False(sw.IsRunning)
	assert.True(elapsed >= 10*time.Millisecond)

	// A second Stop() must not move the reading
	assert.Equal(elapsed, sw.Stop())
	assert.Equal(elapsed, sw.Elapsed())
	assert.True(sw.ElapsedUs() >= 10000)

	sw.Restart()
	assert.True(sw.IsRunning)
	assert.Equal(time.Duration(0), sw.ElapsedTime)
}

func TestMaxRSS(t *testing.T) {
	_ = make([]byte, 1<<20)
	assert.NotEqual(t, uint64(0), MaxRSS())
}
