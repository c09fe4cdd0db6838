package main

import (
	"fmt"
	"log/slog"

	"finetune-console/internal/client"
	"finetune-console/internal/config"
	"finetune-console/internal/console"
	"finetune-console/internal/dataset"
	"finetune-console/internal/tasks"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	envFile  string
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "datasetctl",
		Short: "Validate datasets and manage fine-tuning tasks",
		Long: `datasetctl validates chat fine-tuning datasets locally and drives the
remote fine-tuning API: files, tasks, logs and the account balance.

Remote commands read FINETUNE_API_URL and FINETUNE_API_TOKEN from the
environment, optionally loaded from the file given with --env.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env", "", "path to load env from")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug | info | warn | error")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if opts.envFile != "" {
			if err := godotenv.Load(opts.envFile); err != nil {
				return fmt.Errorf("error loading env file '%s': %w", opts.envFile, err)
			}
		}
		level, err := config.ParseLevel(opts.logLevel)
		if err != nil {
			return err
		}
		slog.SetLogLoggerLevel(level)
		return nil
	}

	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newSplitCommand())
	cmd.AddCommand(newCostCommand())
	cmd.AddCommand(newFilesCommand())
	cmd.AddCommand(newTasksCommand())
	cmd.AddCommand(newBalanceCommand())
	cmd.AddCommand(newTransactionsCommand())
	cmd.AddCommand(newBaseModelsCommand())
	cmd.AddCommand(newDownloadCommand())

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

type remote struct {
	client  *client.Client
	console *console.Console
}

func connect() (*remote, error) {
	cfg, err := config.Parse[config.RemoteConfig]()
	if err != nil {
		return nil, err
	}

	pricing, err := tasks.LoadPricing(cfg.PricingFile)
	if err != nil {
		return nil, err
	}

	c := client.New(cfg.APIBaseURL, cfg.APIToken, cfg.Timeout)
	return &remote{
		client:  c,
		console: console.New(c, dataset.DefaultPipeline(), tasks.NewAdmissionController(pricing)),
	}, nil
}
