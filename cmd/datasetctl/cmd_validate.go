package main

import (
	"fmt"
	"os"
	"path/filepath"

	"finetune-console/internal/dataset"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type validateOptions struct {
	window     int64
	noProgress bool
}

func newValidateCommand() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a .jsonl dataset before uploading it",
		Long: `Validate streams a dataset file window by window and checks every line.

Each non-blank line must be a JSON object with a "messages" array whose turns
alternate user and assistant, starting with user. The first problem found is
reported with its line number and the command exits with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args[0])
		},
	}
	cmd.Flags().Int64Var(&opts.window, "window", dataset.DefaultWindowSize, "bytes read per window")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "never draw a progress bar")
	return cmd
}

func showProgress(opts *validateOptions) bool {
	return !opts.noProgress && term.IsTerminal(int(os.Stderr.Fd()))
}

func runValidate(cmd *cobra.Command, opts *validateOptions, path string) error {
	blob, err := dataset.OpenFileBlob(path)
	if err != nil {
		return err
	}
	defer blob.Close()

	name := filepath.Base(path)
	pipelineOpts := dataset.Options{WindowSize: opts.window}

	if showProgress(opts) {
		bar := progressbar.NewOptions64(blob.Len(),
			progressbar.OptionSetDescription("validating "+name),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		pipelineOpts.Progress = func(read, total int64) {
			_ = bar.Set64(read)
		}
	}

	res, err := dataset.NewPipeline(pipelineOpts).Validate(cmd.Context(), name, blob)
	if err != nil {
		if _, ok := dataset.KindOf(err); ok {
			return &RejectedError{Err: err}
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d lines, %d records)\n", name, res.Lines, res.Records)
	return nil
}
