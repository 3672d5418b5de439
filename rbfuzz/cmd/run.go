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

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a campaign of generated runs",
	Args:  cobra.NoArgs,
	RunE:  runRunE,
}

var runFlagToOption = map[string]string{
	"runs":        "Campaign.Runs",
	"workers":     "Campaign.Workers",
	"seed":        "Campaign.Seed",
	"backend":     "Campaign.Backend",
	"pairs":       "Campaign.Pairs",
	"timeout":     "Campaign.Timeout",
	"fail-fast":   "Campaign.FailFast",
	"failure-dir": "Campaign.FailureDir",
	"metrics":     "Campaign.MetricsFile",
	"tree":        "Run.Tree",
	"max-rounds":  "Run.MaxRounds",
}

func runRunE(cmd *cobra.Command, args []string) (err error) {
	err = overrideConf(cmd, runFlagToOption)
	if nil != err {
		return
	}

	config, err := campaign.ConfigFromConfMap(confMap)
	if nil != err {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := campaign.Run(ctx, config)
	if nil != report {
		printReport(report)
	}
	return campaignOutcome(report, err)
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("runs", campaign.DefaultRuns, "number of runs")
	runCmd.Flags().Int("workers", 0, "number of concurrent runs (default: number of CPUs)")
	runCmd.Flags().Int64("seed", 0, "seed of the first run")
	runCmd.Flags().String("backend", "random", "random or explore")
	runCmd.Flags().Bool("pairs", false, "run insert/delete pairs instead of the action menu")
	runCmd.Flags().Duration("timeout", 0, "bound on the whole campaign")
	runCmd.Flags().Bool("fail-fast", false, "stop at the first failing run")
	runCmd.Flags().String("failure-dir", "", "where to save the smallest input of each distinct failure")
	runCmd.Flags().String("metrics", "", "Prometheus textfile to write on completion")
	runCmd.Flags().String("tree", "rbtree", "tree implementation under test")
	runCmd.Flags().Int("max-rounds", 1000, "upper bound on rounds per run")
}
