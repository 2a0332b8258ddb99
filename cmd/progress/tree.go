package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sarchlab/progress/progress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var treeViper = viper.New()

// treeCmd is the `progress tree` command.
var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Run a sample workload and print its context tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printWorkloadTree(
			treeViper.GetDuration("unit"),
			treeViper.GetString("trace"),
		)
	},
}

func init() {
	treeCmd.Flags().Duration("unit", 10*time.Millisecond, "Time unit of the workload")
	treeCmd.Flags().String("trace", "", "Write trace events to this file")

	bindCommandFlags(treeViper, treeCmd)
	rootCmd.AddCommand(treeCmd)
}

func printWorkloadTree(unit time.Duration, tracePath string) error {
	registry := progress.MakeBuilder().Build()
	thread := registry.Main()

	if err := runWorkload(thread, unit); err != nil {
		return err
	}

	if err := progress.PrintTree(os.Stdout, thread); err != nil {
		return err
	}

	if tracePath == "" {
		return nil
	}

	f, err := os.Create(tracePath)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer f.Close()

	if err := progress.WriteTraceEvents(f, registry); err != nil {
		return fmt.Errorf("writing trace events: %w", err)
	}

	return f.Close()
}
