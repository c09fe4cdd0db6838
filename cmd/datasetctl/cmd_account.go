package main

import (
	"fmt"
	"os"
	"path/filepath"

	"finetune-console/internal/client"
	"finetune-console/internal/console"

	"github.com/spf13/cobra"
)

func newBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.console.RefreshBalance(cmd.Context()).Label)
			return nil
		},
	}
}

func newTransactionsCommand() *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List ledger transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect()
			if err != nil {
				return err
			}

			txns, err := r.console.Transactions(cmd.Context(), page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(txns) == 0 {
				fmt.Fprintln(out, "No transactions.")
				return nil
			}
			for _, t := range txns {
				when := t.CreatedAt
				if when == "" {
					when = t.Timestamp
				}
				fmt.Fprintf(out, "%-25s %-20s %16s  %s\n", when, console.PrettifyType(t.Type), console.FormatAmount(t.AmountCents, t.Currency), t.Description)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page to show, starting at 0")
	return cmd
}

func newBaseModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "base-models",
		Short: "List the base models tasks can be created from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect()
			if err != nil {
				return err
			}

			models, err := r.console.BaseModels(cmd.Context())
			if err != nil {
				return err
			}

			pricing := r.console.Admission().Pricing()
			out := cmd.OutOrStdout()
			for _, m := range models {
				fmt.Fprintf(out, "%-6d %-40s $%.2f/epoch\n", m.Id, m.Name(), pricing.CostPerEpoch(m.Id, m.Name()))
			}
			return nil
		},
	}
}

func newDownloadCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download-gguf <file-id>",
		Short: "Download a trained gguf artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileId, err := parseId(args[0])
			if err != nil {
				return err
			}

			r, err := connect()
			if err != nil {
				return err
			}

			tmp, err := os.CreateTemp(dir, ".download-*")
			if err != nil {
				return fmt.Errorf("error creating download file: %w", err)
			}
			defer os.Remove(tmp.Name())

			name, err := r.client.DownloadGGUF(cmd.Context(), fileId, tmp)
			if closeErr := tmp.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}

			dest := filepath.Join(dir, client.ZipName(name, fileId))
			if err := os.Rename(tmp.Name(), dest); err != nil {
				return fmt.Errorf("error saving download: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to save into")
	return cmd
}
