// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"

	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/halter"
	"github.com/NVIDIA/rbfuzz/oracle"
	"github.com/NVIDIA/rbfuzz/source"
)

func errorOutput(err error) string {
	message := err.Error()
	if i := strings.IndexByte(message, '\n'); 0 <= i {
		message = message[:i]
	}
	return fmt.Sprintf("error: %v: %s", blunder.Kind(err), message)
}

func scanInt64(t *testing.T, d *datadriven.TestData, key string) int64 {
	var s string
	d.ScanArgs(t, key, &s)
	value, err := strconv.ParseInt(s, 0, 64)
	if nil != err {
		d.Fatalf(t, "%s: %v", key, err)
	}
	return value
}

// TestScenarios runs the command scripts under testdata/.  Commands:
//
//   new [tree=NAME] [nodups] [track]
//   arm label=LABEL [count=N]
//   insert key=K info=I
//   delete|find|pred|succ key=K
//   range low=L high=H
//   check | verify | teardown | entries
func TestScenarios(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		var (
			h   *halter.Halter
			run *Run
		)

		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			if ("new" != d.Cmd) && (nil == run) {
				d.Fatalf(t, "%s before new", d.Cmd)
			}

			apply := func(action Action) string {
				observation, err := run.Apply(action)
				if nil != err {
					return errorOutput(err)
				}
				return observation
			}

			switch d.Cmd {
			case "new":
				config := DefaultConfig()
				if d.HasArg("tree") {
					d.ScanArgs(t, "tree", &config.Tree)
				}
				config.NoDuplicates = d.HasArg("nodups")
				config.TrackDuplicateInfo = d.HasArg("track")
				if nil != run {
					run.Close()
				}
				h = halter.New()
				var err error
				run, err = New(config, source.NewBytes(nil), h)
				if nil != err {
					return errorOutput(err)
				}
				return run.Config().String()

			case "arm":
				var label string
				count := uint32(1)
				d.ScanArgs(t, "label", &label)
				if d.HasArg("count") {
					count = uint32(scanInt64(t, d, "count"))
				}
				if err := h.Arm(label, count); nil != err {
					return fmt.Sprintf("error: %v", err)
				}
				return "ok"

			case "insert":
				return apply(Action{Kind: Insert, Key: scanInt64(t, d, "key"), Info: oracle.Token(scanInt64(t, d, "info"))})
			case "delete":
				return apply(Action{Kind: Delete, Key: scanInt64(t, d, "key")})
			case "find":
				return apply(Action{Kind: Find, Key: scanInt64(t, d, "key")})
			case "pred":
				return apply(Action{Kind: Predecessor, Key: scanInt64(t, d, "key")})
			case "succ":
				return apply(Action{Kind: Successor, Key: scanInt64(t, d, "key")})
			case "range":
				return apply(Action{Kind: RangeEnumerate, Key: scanInt64(t, d, "low"), High: scanInt64(t, d, "high")})
			case "check":
				return apply(Action{Kind: StructuralCheck})
			case "teardown":
				return apply(Action{Kind: RandomTeardown})

			case "verify":
				if err := run.Verify(); nil != err {
					return errorOutput(err)
				}
				return "ok"

			case "entries":
				var sb strings.Builder
				for _, entry := range run.Oracle().Entries() {
					fmt.Fprintf(&sb, "%v\n", entry)
				}
				return sb.String()

			default:
				d.Fatalf(t, "unknown command %s", d.Cmd)
				return ""
			}
		})

		if nil != run {
			run.Close()
		}
	})
}
