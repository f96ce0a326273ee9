package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "premerge",
	Short: "Detect duplicate tickets and tag validated groups for merging",
	Long: `premerge scans a trailing window of Zendesk tickets, groups likely duplicates
by vehicle id, requester email and requester phone, validates each group and
tags the validated tickets so a later merge step can act on them.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
