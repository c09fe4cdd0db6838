package main

import (
	"fmt"
	"strconv"

	"finetune-console/internal/split"

	"github.com/spf13/cobra"
)

func newSplitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Work with train/validation/benchmark splits",
	}
	cmd.AddCommand(newSplitAdjustCommand())
	return cmd
}

func newSplitAdjustCommand() *cobra.Command {
	current := split.Default()

	cmd := &cobra.Command{
		Use:   "adjust <field> <value>",
		Short: "Set one split field and rebalance the others",
		Long: `Adjust sets field (train, validation or benchmark) to value, clamped to
0..100. If the total goes over 100 the overflow is taken from the other two
fields in proportion to their current values.

The starting split defaults to 80/10/10 and can be changed with the flags.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := split.ParseField(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}

			adjusted := current.Adjust(field, value)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "train=%d validation=%d benchmark=%d\n", adjusted.Train, adjusted.Validation, adjusted.Benchmark)
			if err := adjusted.Validate(); err != nil {
				fmt.Fprintf(out, "not submittable: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&current.Train, "train", current.Train, "current train percentage")
	cmd.Flags().IntVar(&current.Validation, "validation", current.Validation, "current validation percentage")
	cmd.Flags().IntVar(&current.Benchmark, "benchmark", current.Benchmark, "current benchmark percentage")
	return cmd
}
