// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package utils holds the small helpers shared by the rbfuzz packages: caller
// identification for logging, token formatting, and run timing.
package utils

import (
	"bytes"
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

var (
	extractFnNameRE  = regexp.MustCompile(`[^\/]*$`)
	extractPkgNameRE = regexp.MustCompile(`^[^.]*`)
	extractLastRE    = regexp.MustCompile(`[^.]*$`)
)

// GetGID returns the id of the calling goroutine.
//
// Campaign workers each own whole runs, so logging the goroutine makes it
// possible to pull a single run's trace out of an interleaved log.
func GetGID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}

// GetAFnName returns "package.function" for the caller level frames up.
func GetAFnName(level int) string {
	pcs := make([]uintptr, 8)

	// Skip runtime.Callers() and ourself; CallersFrames() undoes inlining
	n := runtime.Callers(level+2, pcs)
	if 0 == n {
		return "unknown.unknown"
	}
	frame, _ := runtime.CallersFrames(pcs[:n]).Next()
	if "" == frame.Function {
		return "unknown.unknown"
	}
	return extractFnNameRE.FindString(frame.Function)
}

// GetFuncPackage returns separate function and package names of the caller
// level frames up, along with the current goroutine id.
func GetFuncPackage(level int) (fn string, pkg string, gid uint64) {
	funcPkg := GetAFnName(level + 1)

	pkg = extractPkgNameRE.FindString(funcPkg)
	fn = extractLastRE.FindString(funcPkg)
	gid = GetGID()

	return fn, pkg, gid
}

// GetFnName returns the name of the running function and its package.
func GetFnName() string {
	return GetAFnName(1)
}

// GetCallerFnName returns the name of the calling function.
func GetCallerFnName() string {
	return GetAFnName(2)
}

// Uint64ToHexStr renders value as 16 upper case hex digits, the form used
// when logging opaque info tokens.
func Uint64ToHexStr(value uint64) string {
	return fmt.Sprintf("%016X", value)
}

func HexStrToUint64(value string) (uint64, error) {
	return strconv.ParseUint(value, 16, 64)
}

type Stopwatch struct {
	StartTime   time.Time
	StopTime    time.Time
	ElapsedTime time.Duration
	IsRunning   bool
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{StartTime: time.Now(), IsRunning: true}
}

func (sw *Stopwatch) Stop() time.Duration {
	sw.StopTime = time.Now()

	// Stopping a stopped Stopwatch keeps the first reading.
	if sw.IsRunning {
		sw.ElapsedTime = sw.StopTime.Sub(sw.StartTime)
		sw.IsRunning = false
	}
	return sw.ElapsedTime
}

func (sw *Stopwatch) Restart() {
	if !sw.IsRunning {
		sw.ElapsedTime = 0
		sw.StartTime = time.Now()
		sw.StopTime = time.Time{}
		sw.IsRunning = true
	}
}

func (sw *Stopwatch) Elapsed() time.Duration {
	if !sw.IsRunning {
		return sw.ElapsedTime
	}
	return time.Since(sw.StartTime)
}

func (sw *Stopwatch) ElapsedUs() uint64 {
	return uint64(sw.Elapsed() / time.Microsecond)
}

func (sw *Stopwatch) ElapsedString() string {
	return sw.Elapsed().String()
}

// MaxRSS returns the peak resident set size of this process in KiB (as
// reported by getrusage(2) on Linux), or 0 if it cannot be determined.
func MaxRSS() uint64 {
	var rusage unix.Rusage

	err := unix.Getrusage(unix.RUSAGE_SELF, &rusage)
	if nil != err {
		return 0
	}
	if rusage.Maxrss < 0 {
		return 0
	}
	return uint64(rusage.Maxrss)
}
