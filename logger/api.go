// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package logger wraps sirupsen/logrus so every entry carries the package,
// function and goroutine that emitted it.
//
// Trace logging is switched on per package through Logging.TraceLevelLogging;
// the remaining levels are always on.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/NVIDIA/rbfuzz/utils"
)

type level int

const (
	errorLevel level = iota
	warnLevel
	infoLevel

	// traceLevel carries the per-action trail of a run (the "n: INSERT:k v"
	// lines). It is gated per package and written at logrus.InfoLevel.
	traceLevel
)

var traceLevelEnabled = false

// packageTraceSettings names the packages whose tracing can be switched on.
// A package missing here is never traced.
var packageTraceSettings = map[string]bool{
	"adapter":  false,
	"campaign": false,
	"harness":  false,
	"oracle":   false,
	"rbtree":   false,
	"source":   false,
}

func setTraceLoggingLevel(confStrSlice []string) {
	traceLevelEnabled = false
	for pkg := range packageTraceSettings {
		packageTraceSettings[pkg] = false
	}

HandlePkgs:
	for _, pkg := range confStrSlice {
		switch pkg {
		case "none":
			traceLevelEnabled = false
			break HandlePkgs
		default:
			if _, ok := packageTraceSettings[pkg]; ok {
				packageTraceSettings[pkg] = true
				traceLevelEnabled = true
			}
		}
	}

	if traceLevelEnabled {
		for pkg, isEnabled := range packageTraceSettings {
			if isEnabled {
				Infof("Package %v trace logging is enabled.", pkg)
			}
		}
	}
}

func traceEnabled(pkg string) bool {
	isEnabled, ok := packageTraceSettings[pkg]
	return ok && isEnabled
}

// TraceEnabled lets a caller skip building expensive trace arguments.
func TraceEnabled(pkg string) bool {
	return traceLevelEnabled && traceEnabled(pkg)
}

const packageKey string = "package"
const functionKey string = "function"
const errorKey string = "error"
const gidKey string = "goroutine"

type funcCtx struct {
	entry *log.Entry
}

// newFuncCtx tags an entry with the caller found depth frames up the stack,
// plus any extra fields.
func newFuncCtx(depth int, extra log.Fields) funcCtx {
	fn, pkg, gid := utils.GetFuncPackage(depth + 1)

	fields := log.Fields{
		functionKey: fn,
		packageKey:  pkg,
		gidKey:      gid,
	}
	for key, value := range extra {
		fields[key] = value
	}
	return funcCtx{entry: log.WithFields(fields)}
}

// Frames between the exported wrapper's caller and newFuncCtx.
var backtraceOneLevel int = 1

// log is not declared on a pointer receiver; logrus does the same to stay
// safe across goroutines.
func (ctx funcCtx) log(lvl level, msg string) {
	switch lvl {
	case errorLevel:
		ctx.entry.Error(msg)
	case warnLevel:
		ctx.entry.Warn(msg)
	case infoLevel, traceLevel:
		ctx.entry.Info(msg)
	}
}

func Infof(format string, args ...interface{}) {
	newFuncCtx(backtraceOneLevel, nil).log(infoLevel, fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...interface{}) {
	newFuncCtx(backtraceOneLevel, nil).log(warnLevel, fmt.Sprintf(format, args...))
}

// ErrorfWithError logs at error level with err attached as the "error" field.
func ErrorfWithError(err error, format string, args ...interface{}) {
	newFuncCtx(backtraceOneLevel, log.Fields{errorKey: err}).log(errorLevel, fmt.Sprintf(format, args...))
}

// Tracef is dropped unless tracing is on for the calling package.
func Tracef(format string, args ...interface{}) {
	if !traceLevelEnabled {
		return
	}
	ctx := newFuncCtx(backtraceOneLevel, nil)
	pkg, _ := ctx.entry.Data[packageKey].(string)
	if !traceEnabled(pkg) {
		return
	}
	ctx.log(traceLevel, fmt.Sprintf(format, args...))
}

// AddLogTarget adds another target for log messages to be written to. writer
// is called once for each log message.
//
// Logger.Up() must be called before this function is used.
func AddLogTarget(writer io.Writer) {
	addLogTarget(writer)
}

// LogBuffer holds the most recent log entries captured by a LogTarget.
type LogBuffer struct {
	sync.Mutex
	LogEntries   []string // most recent log entry is [0]
	TotalEntries int      // count of all entries seen
}

// LogTarget captures the most recent n lines of log into an array. Useful
// for writing test cases that assert a run logged what it did.
type LogTarget struct {
	LogBuf *LogBuffer
}

// Init sets up a LogTarget to hold up to nEntry log entries.
func (target *LogTarget) Init(nEntry int) {
	target.LogBuf = &LogBuffer{TotalEntries: 0}
	target.LogBuf.LogEntries = make([]string, nEntry)
}

// Write is called by logger for each log entry.
func (target LogTarget) Write(p []byte) (n int, err error) {
	target.LogBuf.Lock()
	defer target.LogBuf.Unlock()

	entry := strings.TrimRight(string(p), "\n")
	copy(target.LogBuf.LogEntries[1:], target.LogBuf.LogEntries[:len(target.LogBuf.LogEntries)-1])
	target.LogBuf.LogEntries[0] = entry
	target.LogBuf.TotalEntries++

	return len(p), nil
}

// Contains reports whether any captured entry contains substr.
func (target LogTarget) Contains(substr string) bool {
	target.LogBuf.Lock()
	defer target.LogBuf.Unlock()

	for _, entry := range target.LogBuf.LogEntries {
		if strings.Contains(entry, substr) {
			return true
		}
	}
	return false
}
