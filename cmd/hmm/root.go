package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hmm",
	Short: "Hierarchical memory manager for LLM agents",
	Long: "hmm runs a MemGPT-style agent with tiered memory: an in-context " +
		"working set, a bounded FIFO queue with recursive summarization, a " +
		"recall store of full conversation history, and an archival vector " +
		"store for long-term facts.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ./hmm.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "accepted but has no effect; the CLI wires no logger")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(ingestCmd)
}

// Execute runs the root command, exiting the process with status 1 on
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
