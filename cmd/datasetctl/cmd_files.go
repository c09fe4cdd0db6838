package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"finetune-console/internal/client"
	"finetune-console/internal/console"
	"finetune-console/internal/dataset"

	"github.com/spf13/cobra"
)

const fileNameWidth = 40

func newFilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List, upload, replace and delete dataset files",
	}
	cmd.AddCommand(newFilesListCommand())
	cmd.AddCommand(newFilesUploadCommand())
	cmd.AddCommand(newFilesReplaceCommand())
	cmd.AddCommand(newFilesDeleteCommand())
	return cmd
}

func newFilesListCommand() *cobra.Command {
	var page int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect()
			if err != nil {
				return err
			}

			files, err := r.console.ListFiles(cmd.Context(), page)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No files.")
				return nil
			}
			for _, f := range files {
				fmt.Fprintf(out, "%-8d %-12s %-42s %10s  %s\n",
					f.ID(), f.FileType, console.TruncateName(f.DisplayName(), fileNameWidth),
					console.FormatSizeMB(f.SizeBytes), f.CreatedAt)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page to show, starting at 0")
	return cmd
}

func uploadRoleFlag(cmd *cobra.Command, role *string) {
	cmd.Flags().StringVar(role, "role", client.RoleTrain, "file role: train | validation | benchmark")
}

func newFilesUploadCommand() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Validate a dataset and upload it if it passes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect()
			if err != nil {
				return err
			}

			blob, err := dataset.OpenFileBlob(args[0])
			if err != nil {
				return err
			}
			defer blob.Close()

			file, err := r.console.ValidateAndUpload(cmd.Context(), role, filepath.Base(args[0]), blob)
			if err != nil {
				return rejectedOr(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s as file %d\n", file.DisplayName(), file.ID())
			return nil
		},
	}
	uploadRoleFlag(cmd, &role)
	return cmd
}

func newFilesReplaceCommand() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "replace <file-id> <file>",
		Short: "Upload a new version of a file and delete the old one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldId, err := parseId(args[0])
			if err != nil {
				return err
			}

			r, err := connect()
			if err != nil {
				return err
			}

			blob, err := dataset.OpenFileBlob(args[1])
			if err != nil {
				return err
			}
			defer blob.Close()

			file, err := r.console.ReplaceFile(cmd.Context(), oldId, role, filepath.Base(args[1]), blob)
			if err != nil {
				return rejectedOr(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "replaced file %d with file %d\n", oldId, file.ID())
			return nil
		},
	}
	uploadRoleFlag(cmd, &role)
	return cmd
}

func newFilesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file-id>",
		Short: "Delete an uploaded file",
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

			if err := r.console.DeleteFile(cmd.Context(), fileId); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted file %d\n", fileId)
			return nil
		},
	}
}

func parseId(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func rejectedOr(err error) error {
	if _, ok := dataset.KindOf(err); ok {
		return &RejectedError{Err: err}
	}
	return err
}
