package main

import (
	"fmt"

	"finetune-console/internal/tasks"

	"github.com/spf13/cobra"
)

type costOptions struct {
	pricingFile string
	modelId     int64
	modelName   string
	epochs      int
	balance     float64
}

func newCostCommand() *cobra.Command {
	opts := &costOptions{}

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Estimate what a fine-tuning task will cost",
		Long: `Cost multiplies the epoch count by the per-epoch price of the base model.

Prices come from the built-in table, merged with the YAML file given by
--pricing. When --balance is set the command also reports whether a task
with that cost could be started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pricing, err := tasks.LoadPricing(opts.pricingFile)
			if err != nil {
				return err
			}
			admission := tasks.NewAdmissionController(pricing)

			task := tasks.Task{
				BaseModelId:   opts.modelId,
				BaseModelName: opts.modelName,
				Epochs:        opts.epochs,
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "expected cost: %s\n", tasks.FormatDollars(admission.ExpectedCost(task)))

			if cmd.Flags().Changed("balance") {
				if err := admission.Admit(task, &opts.balance); err != nil {
					fmt.Fprintf(out, "cannot start: %v\n", err)
				} else {
					fmt.Fprintln(out, "can start")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.pricingFile, "pricing", "", "YAML pricing overrides")
	cmd.Flags().Int64Var(&opts.modelId, "model-id", 0, "base model id")
	cmd.Flags().StringVar(&opts.modelName, "model-name", "", "base model name")
	cmd.Flags().IntVar(&opts.epochs, "epochs", tasks.DefaultHyperparameters().Epochs, "training epochs")
	cmd.Flags().Float64Var(&opts.balance, "balance", 0, "account balance in dollars")
	return cmd
}
