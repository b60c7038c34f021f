package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"redub/internal/api"
	"redub/internal/config"
	"redub/internal/gateway"
	"redub/internal/taskstore"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "download <task-id>",
		Short: "Download the translated result of a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := strings.TrimSpace(args[0])

			var task *taskstore.Task
			err := ctx.withStore(func(store *taskstore.Store) error {
				var getErr error
				task, getErr = store.Get(cmd.Context(), taskID)
				return getErr
			})
			if err != nil {
				return err
			}
			if task == nil {
				return fmt.Errorf("task %s is not tracked locally; check `redub tasks list`", taskID)
			}
			if task.Status != api.StatusCompleted {
				return fmt.Errorf("task %s is %s; only completed tasks have results", taskID, task.Status)
			}

			fileName := gateway.ResultFileName(task.TaskID, task.ResultURL)
			destDir := strings.TrimSpace(outputDir)
			if destDir == "" {
				destDir = "."
			}
			destDir, err = config.ExpandPath(destDir)
			if err != nil {
				return err
			}
			destPath := filepath.Join(destDir, fileName)

			client, err := ctx.gatewayClient()
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()
			downloadCtx, cancel := context.WithTimeout(cmd.Context(), cfg.UploadTimeout())
			defer cancel()

			written, err := client.Download(downloadCtx, task.TaskID, fileName, destPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", destPath, formatFileSize(written))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the downloaded file (default: current directory)")
	return cmd
}
