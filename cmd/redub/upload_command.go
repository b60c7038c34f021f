package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"redub/internal/api"
	"redub/internal/config"
	"redub/internal/gateway"
	"redub/internal/taskstore"
	"redub/internal/tracker"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "upload <video-file>",
		Short: "Upload a video for translation",
		Long: "Upload a video to the translation gateway and register the\n" +
			"resulting task for local tracking. Pass --watch to follow the\n" +
			"task until it finishes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			size, err := validateUploadTarget(cfg, path)
			if err != nil {
				return err
			}

			service, err := ctx.settingsService()
			if err != nil {
				return err
			}
			if !service.Configured(cmd.Context()) {
				return errors.New("the translation pipeline is not configured; run `redub settings set` to add provider credentials")
			}

			client, err := ctx.gatewayClient()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploading %s (%s)\n", filepath.Base(path), formatFileSize(size))

			uploadCtx, cancel := context.WithTimeout(cmd.Context(), cfg.UploadTimeout())
			defer cancel()
			resp, err := client.Upload(uploadCtx, path, uploadProgress(cmd))
			if err != nil {
				return err
			}

			if !watch {
				return ctx.withStore(func(store *taskstore.Store) error {
					if err := store.Upsert(cmd.Context(), taskstore.Task{
						TaskID: resp.TaskID,
						Status: api.StatusPending,
					}); err != nil {
						return err
					}
					fmt.Fprintf(out, "Task %s accepted\n", resp.TaskID)
					fmt.Fprintf(out, "Follow it with `redub watch %s`\n", resp.TaskID)
					return nil
				})
			}

			return ctx.withCoordinator(func(coordinator *tracker.Coordinator, _ *taskstore.Store) error {
				fmt.Fprintf(out, "Task %s accepted\n", resp.TaskID)
				return watchTask(cmd, coordinator, resp.TaskID)
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the task until it completes or fails")
	return cmd
}

// validateUploadTarget checks the file before any bytes hit the wire
// and returns its size.
func validateUploadTarget(cfg *config.Config, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("inspect upload %q: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("upload %q is a directory, expected a video file", path)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("upload %q is empty", path)
	}
	if maxBytes := cfg.MaxUploadBytes(); info.Size() > maxBytes {
		return 0, fmt.Errorf("upload %q is %s, the configured limit is %s",
			path, formatFileSize(info.Size()), formatFileSize(maxBytes))
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range cfg.Upload.Extensions {
		if ext == allowed {
			return info.Size(), nil
		}
	}
	return 0, fmt.Errorf("upload %q has unsupported extension %q (allowed: %s)",
		path, ext, strings.Join(cfg.Upload.Extensions, ", "))
}

// uploadProgress renders an in-place progress line on interactive
// terminals and stays silent otherwise.
func uploadProgress(cmd *cobra.Command) gateway.ProgressFunc {
	out := cmd.OutOrStdout()
	if !isTerminalWriter(out) {
		return nil
	}
	var lastPercent int64 = -1
	return func(sent, total int64) {
		if total <= 0 {
			return
		}
		percent := sent * 100 / total
		if percent == lastPercent {
			return
		}
		lastPercent = percent
		fmt.Fprintf(out, "\r  %s / %s (%d%%)", formatFileSize(sent), formatFileSize(total), percent)
		if sent >= total {
			fmt.Fprintln(out)
		}
	}
}
