package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	synchttp "github.com/odyssey-erp/stocksync/internal/syncer/http"
)

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
}

// JobQueue is the queue surface used by the jobs commands.
type JobQueue interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	TriggerExport(ctx context.Context, itemID string) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error)
	Close() error
}

// Deps supplies the runtime behind each command. Commands open what they
// need lazily so --help never touches Redis or Postgres.
type Deps struct {
	OpenService func(ctx context.Context) (synchttp.SyncService, func(), error)
	OpenQueue   func() (JobQueue, error)
	Serve       func(ctx context.Context) error
}

// NewRootCommand creates the stocksync command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stocksync",
		Short: "Inventory sync engine",
		Long:  "Keeps local stock in step with the remote inventory service: catalogue import and export, reconciliation and delivery-driven stock deltas.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newServeCommand(deps))
	cmd.AddCommand(newImportCommand(opts, deps))
	cmd.AddCommand(newExportCommand(opts, deps))
	cmd.AddCommand(newReconcileCommand(opts, deps))
	cmd.AddCommand(newDeltaCommand(opts, deps))
	cmd.AddCommand(newStatusCommand(opts, deps))
	cmd.AddCommand(newLogsCommand(opts, deps))
	cmd.AddCommand(newJobsCommand(opts, deps))

	return cmd
}

func newServeCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.Serve == nil {
				return errors.New("serve: not configured")
			}
			return deps.Serve(cmd.Context())
		},
	}
}

// withService opens the sync service for the duration of fn.
func withService(cmd *cobra.Command, deps Deps, fn func(synchttp.SyncService) error) error {
	if deps.OpenService == nil {
		return errors.New("sync service not configured")
	}
	svc, closeFn, err := deps.OpenService(cmd.Context())
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(svc)
}
