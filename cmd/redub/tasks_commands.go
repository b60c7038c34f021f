package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"redub/internal/taskstore"
	"redub/internal/tracker"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and maintain tracked tasks",
	}

	tasksCmd.AddCommand(newTasksListCommand(ctx))
	tasksCmd.AddCommand(newTasksRemoveCommand(ctx))
	tasksCmd.AddCommand(newTasksPruneCommand(ctx))

	return tasksCmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			run := func(tasks []taskstore.Task) error {
				if asJSON {
					return writeTasksJSON(cmd, tasks)
				}
				printTasksTable(cmd, tasks)
				return nil
			}

			if refresh {
				return ctx.withCoordinator(func(coordinator *tracker.Coordinator, _ *taskstore.Store) error {
					if refreshed := coordinator.Refresh(cmd.Context()); refreshed > 0 {
						fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d in-flight task(s)\n", refreshed)
					}
					return run(coordinator.Tasks(cmd.Context()))
				})
			}
			return ctx.withStore(func(store *taskstore.Store) error {
				return run(store.List(cmd.Context()))
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Query the gateway once for each in-flight task before listing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newTasksRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <task-id>...",
		Short: "Stop tracking tasks and delete their records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCoordinator(func(coordinator *tracker.Coordinator, store *taskstore.Store) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					taskID := strings.TrimSpace(arg)
					if taskID == "" {
						continue
					}
					existing, err := store.Get(cmd.Context(), taskID)
					if err != nil {
						return err
					}
					if existing == nil {
						fmt.Fprintf(out, "Task %s not found\n", taskID)
						continue
					}
					if err := coordinator.Remove(cmd.Context(), taskID); err != nil {
						return err
					}
					fmt.Fprintf(out, "Task %s removed\n", taskID)
				}
				return nil
			})
		},
	}
}

func newTasksPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete finished tasks past the retention horizon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *taskstore.Store) error {
				removed, err := store.Prune(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d task(s)\n", removed)
				return nil
			})
		},
	}
}

func printTasksTable(cmd *cobra.Command, tasks []taskstore.Task) {
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tracked tasks")
		return
	}

	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		detail := ""
		switch {
		case task.ResultURL != "":
			detail = formatTaskResult(task)
		case task.ErrorMessage != "":
			detail = truncateCell(task.ErrorMessage, 48)
		}
		rows = append(rows, []string{
			task.TaskID,
			string(task.Status),
			detail,
			formatRelativeTime(task.CreatedAt),
			formatRelativeTime(task.UpdatedAt),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"TASK", "STATUS", "RESULT / ERROR", "CREATED", "UPDATED"},
		rows,
	))
}

func formatTaskResult(task taskstore.Task) string {
	return truncateCell(task.ResultURL, 48)
}

func writeTasksJSON(cmd *cobra.Command, tasks []taskstore.Task) error {
	type jsonTask struct {
		TaskID       string `json:"task_id"`
		Status       string `json:"status"`
		ResultURL    string `json:"result_url,omitempty"`
		ErrorMessage string `json:"error_message,omitempty"`
		CreatedAt    string `json:"created_at"`
		UpdatedAt    string `json:"updated_at"`
	}
	items := make([]jsonTask, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, jsonTask{
			TaskID:       task.TaskID,
			Status:       string(task.Status),
			ResultURL:    task.ResultURL,
			ErrorMessage: task.ErrorMessage,
			CreatedAt:    task.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:    task.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return writeJSON(cmd, map[string]any{"tasks": items})
}
