// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/NVIDIA/rbfuzz/campaign"
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay <file|dir>...",
	Short: "Replay saved inputs, one run per file",
	Long: `Replay runs each file's bytes through the same [Run] configuration that
recorded it.  A directory stands for every regular file in it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: replayRunE,
}

var replayFlagToOption = map[string]string{
	"workers":   "Campaign.Workers",
	"pairs":     "Campaign.Pairs",
	"fail-fast": "Campaign.FailFast",
	"tree":      "Run.Tree",
}

func replayRunE(cmd *cobra.Command, args []string) (err error) {
	err = overrideConf(cmd, replayFlagToOption)
	if nil != err {
		return
	}

	config, err := campaign.ConfigFromConfMap(confMap)
	if nil != err {
		return
	}

	var paths []string
	for _, arg := range args {
		var info os.FileInfo
		info, err = os.Stat(arg)
		if nil != err {
			return
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		var dirPaths []string
		dirPaths, err = campaign.CorpusFiles(arg)
		if nil != err {
			return
		}
		paths = append(paths, dirPaths...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := campaign.Replay(ctx, config, paths)
	if nil != report {
		printReport(report)
	}
	return campaignOutcome(report, err)
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().Int("workers", 0, "number of concurrent runs (default: number of CPUs)")
	replayCmd.Flags().Bool("pairs", false, "replay as insert/delete pairs")
	replayCmd.Flags().Bool("fail-fast", false, "stop at the first failing run")
	replayCmd.Flags().String("tree", "rbtree", "tree implementation under test")
}
