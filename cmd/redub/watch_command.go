package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"redub/internal/api"
	"redub/internal/taskstore"
	"redub/internal/tracker"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <task-id>",
		Short: "Follow a task until it completes or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := strings.TrimSpace(args[0])
			if taskID == "" {
				return fmt.Errorf("task id is required")
			}
			return ctx.withCoordinator(func(coordinator *tracker.Coordinator, _ *taskstore.Store) error {
				return watchTask(cmd, coordinator, taskID)
			})
		},
	}
}

// watchTask subscribes to the task's tracking events and renders them
// until a terminal state, lost tracking, or an interrupt.
func watchTask(cmd *cobra.Command, coordinator *tracker.Coordinator, taskID string) error {
	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub := coordinator.Subscribe(sigCtx, taskID)
	defer coordinator.Unsubscribe(sub)
	if _, err := coordinator.Register(sigCtx, taskID); err != nil {
		return err
	}
	// Other stored in-flight tasks keep polling in the background
	// while this one is watched.
	coordinator.Resume(sigCtx)

	out := cmd.OutOrStdout()
	var lastStatus api.Status
	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintf(out, "Stopped watching %s; tracking resumes on the next command\n", taskID)
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			switch event.Type {
			case tracker.EventStatus:
				if event.Task.Status != lastStatus {
					lastStatus = event.Task.Status
					fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05"), event.Task.Status)
				}
			case tracker.EventTerminal:
				return printTerminal(out, event.Task)
			case tracker.EventTrackingLost:
				fmt.Fprintf(out, "Lost track of task %s: %v\n", taskID, event.Err)
				fmt.Fprintln(out, "The task may still be running; retry with `redub tasks list --refresh`")
				return fmt.Errorf("tracking lost for task %s", taskID)
			}
		}
	}
}

func printTerminal(out io.Writer, task taskstore.Task) error {
	switch task.Status {
	case api.StatusCompleted:
		fmt.Fprintf(out, "Task %s completed\n", task.TaskID)
		if task.ResultURL != "" {
			fmt.Fprintf(out, "Download the result with `redub download %s`\n", task.TaskID)
		}
		return nil
	case api.StatusFailed:
		message := strings.TrimSpace(task.ErrorMessage)
		if message == "" {
			message = "no error detail reported"
		}
		fmt.Fprintf(out, "Task %s failed: %s\n", task.TaskID, message)
		return fmt.Errorf("task %s failed", task.TaskID)
	default:
		return fmt.Errorf("task %s ended in unexpected status %s", task.TaskID, task.Status)
	}
}
