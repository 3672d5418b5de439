// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NVIDIA/rbfuzz/adapter"
	"github.com/NVIDIA/rbfuzz/halter"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the trees under test and the fault-injection labels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		fmt.Println("trees:")
		for _, name := range adapter.Names() {
			fmt.Printf("  %s\n", name)
		}
		fmt.Println("fault-injection labels ([FaultInjection]Arm : <label>:<count>):")
		for _, label := range halter.List() {
			if strings.HasPrefix(label, "halter.") {
				continue
			}
			fmt.Printf("  %s\n", label)
		}
		return
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
