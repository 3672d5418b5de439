// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/rbfuzz/conf"
)

func TestAPI(t *testing.T) {
	var (
		target LogTarget
	)

	testDir, err := ioutil.TempDir(os.TempDir(), "rbfuzz_test_logger_")
	require.Nil(t, err)
	defer os.RemoveAll(testDir)

	confStrings := []string{
		"Logging.LogFilePath=" + filepath.Join(testDir, "rbfuzz.log"),
		"Logging.LogToConsole=false",
		"Logging.TraceLevelLogging=logger",
	}

	confMap, err := conf.MakeConfMapFromStrings(confStrings)
	require.Nil(t, err)

	err = Up(confMap)
	require.Nil(t, err)

	target.Init(10)
	AddLogTarget(target)

	// "logger" is not a traced package, so this is dropped
	Tracef("hello there!")
	assert.False(t, target.Contains("hello there!"))

	Infof("insert %d", 5)
	assert.True(t, target.Contains("insert 5"))
	assert.True(t, target.Contains("package=logger"))
	assert.True(t, target.Contains("function=TestAPI"))

	Warnf("%v: %v", "IAmTheCaller", "this is the warning")
	assert.True(t, target.Contains("this is the warning"))

	ErrorfWithError(fmt.Errorf("this is the error"), "we had an error!")
	assert.True(t, target.Contains("error=\"this is the error\""))
	assert.Equal(t, 3, target.LogBuf.TotalEntries)

	err = Down()
	assert.Nil(t, err)

	logBytes, err := ioutil.ReadFile(filepath.Join(testDir, "rbfuzz.log"))
	assert.Nil(t, err)
	assert.Contains(t, string(logBytes), "insert 5")
}

func TestTraceSettings(t *testing.T) {
	setTraceLoggingLevel([]string{"harness", "not-a-package"})
	assert.True(t, TraceEnabled("harness"))
	assert.False(t, TraceEnabled("rbtree"))
	assert.False(t, TraceEnabled("not-a-package"))

	setTraceLoggingLevel([]string{"none", "harness"})
	assert.False(t, TraceEnabled("harness"))
}
