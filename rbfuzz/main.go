// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Program rbfuzz runs differential test campaigns against the tree
// implementations in package adapter.
//
//   rbfuzz run [-c rbfuzz.conf] [--set Section.Option=value]... [flags]
//   rbfuzz replay [-c rbfuzz.conf] [--set Section.Option=value]... <file|dir>...
//   rbfuzz list
//
// The exit status is 0 when every run passed and 1 when a run failed. It is 3
// when Campaign.Timeout expired before every run was made and none had failed.
// Any other error, such as a bad conf or an unknown tree, exits 2.
package main

import (
	"os"

	"github.com/NVIDIA/rbfuzz/rbfuzz/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
