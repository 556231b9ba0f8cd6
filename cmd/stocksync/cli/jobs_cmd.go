package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
)

func newJobsCommand(opts *RootOptions, deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage queued sync jobs",
	}
	cmd.AddCommand(newEnqueueCommand(opts, deps))
	cmd.AddCommand(newQueueStatsCommand(opts, deps))
	cmd.AddCommand(newScheduledCommand(opts, deps))
	return cmd
}

func withQueue(deps Deps, fn func(JobQueue) error) error {
	if deps.OpenQueue == nil {
		return errors.New("job queue not configured")
	}
	queue, err := deps.OpenQueue()
	if err != nil {
		return err
	}
	defer func() { _ = queue.Close() }()
	return fn(queue)
}

func newEnqueueCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:       "enqueue <delta|reconcile|import|export> [item-id]",
		Short:     "Queue a sync workflow for the worker",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"delta", "reconcile", "import", "export"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if (args[0] == "export") != (len(args) == 2) {
				return errors.New("an item id is required for export and only for export")
			}
			return withQueue(deps, func(queue JobQueue) error {
				var (
					info *asynq.TaskInfo
					err  error
				)
				if args[0] == "export" {
					info, err = queue.TriggerExport(cmd.Context(), args[1])
				} else {
					info, err = queue.Trigger(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				view := map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue}
				return render(cmd, opts, view, fmt.Sprintf("queued %s as %s on %s", info.Type, info.ID, info.Queue))
			})
		},
	}
}

func newQueueStatsCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(deps, func(queue JobQueue) error {
				stats, err := queue.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				text := fmt.Sprintf("%s: pending %d, active %d, scheduled %d, retry %d",
					stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
				return render(cmd, opts, stats, text)
			})
		},
	}
}

func newScheduledCommand(opts *RootOptions, deps Deps) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled sync tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(deps, func(queue JobQueue) error {
				infos, err := queue.ListScheduled(cmd.Context(), size)
				if err != nil {
					return err
				}
				type row struct {
					ID   string `json:"id"`
					Type string `json:"type"`
					At   string `json:"next_process_at"`
				}
				rows := make([]row, 0, len(infos))
				var b strings.Builder
				for _, info := range infos {
					r := row{ID: info.ID, Type: info.Type, At: info.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z")}
					rows = append(rows, r)
					fmt.Fprintf(&b, "%s  %s  %s\n", r.At, r.Type, r.ID)
				}
				return render(cmd, opts, rows, strings.TrimRight(b.String(), "\n"))
			})
		},
	}
	cmd.Flags().IntVar(&size, "size", 10, "page size")
	return cmd
}
