// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/campaign"
	"github.com/NVIDIA/rbfuzz/conf"
	"github.com/NVIDIA/rbfuzz/logger"
)

var (
	confFilePath string
	confStrings  []string
	confMap      conf.ConfMap
)

// errRunsFailed is returned by a command whose campaign found failures.
var errRunsFailed = errors.New("runs failed")

// errCampaignTimedOut is returned by a command whose campaign hit
// Campaign.Timeout before finishing, without finding a failure.
var errCampaignTimedOut = errors.New("campaign timed out")

// campaignOutcome maps what campaign.Run or campaign.Replay returned onto the
// command's error. Failures outrank an expired deadline.
func campaignOutcome(report *campaign.Report, err error) error {
	timedOut := blunder.Is(err, blunder.TimeoutError)
	switch {
	case (nil != err) && !timedOut:
		return err
	case (nil != report) && !report.OK():
		return errRunsFailed
	case timedOut:
		return fmt.Errorf("%w: %v", errCampaignTimedOut, err)
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:               "rbfuzz",
	Short:             "Differential testing of balanced search trees against a sorted-sequence oracle",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: rootPersistentPreRunE,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Down()
	},
}

func rootPersistentPreRunE(cmd *cobra.Command, args []string) (err error) {
	if "" == confFilePath {
		confMap = conf.MakeConfMap()
	} else {
		confMap, err = conf.MakeConfMapFromFile(confFilePath)
		if nil != err {
			return fmt.Errorf("conf.MakeConfMapFromFile(\"%v\") failed: %v", confFilePath, err)
		}
	}

	err = confMap.UpdateFromStrings(confStrings)
	if nil != err {
		return fmt.Errorf("confMap.UpdateFromStrings(%#v) failed: %v", confStrings, err)
	}

	err = logger.Up(confMap)
	if nil != err {
		return fmt.Errorf("logger.Up() failed: %v", err)
	}

	return
}

// overrideConf folds explicitly set flags into confMap so that flags win over
// the conf file and --set, and campaign.ConfigFromConfMap sees one source.
func overrideConf(cmd *cobra.Command, flagToOption map[string]string) (err error) {
	for flagName, option := range flagToOption {
		flag := cmd.Flags().Lookup(flagName)
		if (nil == flag) || !flag.Changed {
			continue
		}
		err = confMap.UpdateFromString(option + "=" + flag.Value.String())
		if nil != err {
			return
		}
	}
	return
}

func printReport(report *campaign.Report) {
	fmt.Println(report)
	for _, failure := range report.Failures {
		fmt.Printf("  %dx %v\n", failure.Count, failure.Signature)
		fmt.Printf("      smallest: %s (step %d)\n", failure.Input, failure.Step)
		if "" != failure.File {
			fmt.Printf("      saved to: %s\n", failure.File)
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&confFilePath, "conf", "c", "", "conf file to load")
	rootCmd.PersistentFlags().StringArrayVarP(&confStrings, "set", "s", nil, "Section.Option=value applied over the conf file (repeatable)")
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	err := rootCmd.Execute()
	switch {
	case nil == err:
		return 0
	case errors.Is(err, errRunsFailed):
		return 1
	case errors.Is(err, errCampaignTimedOut):
		fmt.Fprintf(os.Stderr, "rbfuzz: %v\n", err)
		return 3
	default:
		fmt.Fprintf(os.Stderr, "rbfuzz: %v\n", err)
		return 2
	}
}
