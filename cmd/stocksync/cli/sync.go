package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	synchttp "github.com/odyssey-erp/stocksync/internal/syncer/http"
)

func newImportCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import the remote catalogue into local stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, deps, func(svc synchttp.SyncService) error {
				res, err := svc.ImportFromRemote(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd, opts, res, res.String())
			})
		},
	}
}

func newExportCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "export <item-id>",
		Short: "Create or update one local item on the remote service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, deps, func(svc synchttp.SyncService) error {
				res, err := svc.ExportToRemote(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				verb := "updated"
				if res.Created {
					verb = "created"
				}
				return render(cmd, opts, res, fmt.Sprintf("%s remote record %s for item %s", verb, res.RemoteID, res.ItemID))
			})
		},
	}
}

func newReconcileCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Import new remote records and drop items the remote no longer lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, deps, func(svc synchttp.SyncService) error {
				res, err := svc.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd, opts, res, fmt.Sprintf("added %d, removed %d", res.Added, res.Removed))
			})
		},
	}
}

func newDeltaCommand(opts *RootOptions, deps Deps) *cobra.Command {
	var (
		from, to string
		replay   bool
	)
	cmd := &cobra.Command{
		Use:   "delta",
		Short: "Apply outbound delivery events since the sync cursor",
		Long: `Apply outbound delivery events to local stock.

The window starts at the later of --from and the stored cursor and ends at
--to, or now when omitted. Dates accept RFC3339 or YYYY-MM-DD.

Events whose item was not yet known when the cursor passed them are not
retried by later runs. Use --replay with --from to apply such a window
again; events already applied are skipped as duplicates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseWhen(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := parseWhen(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if replay && start.IsZero() {
				return errors.New("--replay needs --from")
			}
			return withService(cmd, deps, func(svc synchttp.SyncService) error {
				run := svc.SyncDeltaEvents
				if replay {
					run = svc.ReplayDeltaEvents
				}
				res, err := run(cmd.Context(), start, end)
				if err != nil {
					return err
				}
				return render(cmd, opts, res, res.String())
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "window start")
	cmd.Flags().StringVar(&to, "to", "", "window end")
	cmd.Flags().BoolVar(&replay, "replay", false, "ignore the cursor and apply the --from window again")
	return cmd
}

type statusView struct {
	Total    int        `json:"total"`
	Linked   int        `json:"linked"`
	Unlinked int        `json:"unlinked"`
	Cursor   *time.Time `json:"cursor,omitempty"`
}

func newStatusCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show link state of local items and the delta cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, deps, func(svc synchttp.SyncService) error {
				status, err := svc.CheckCorrespondenceStatus(cmd.Context())
				if err != nil {
					return err
				}
				view := statusView{Total: status.Total, Linked: status.Linked, Unlinked: status.Unlinked}
				cursor, err := svc.Cursor(cmd.Context())
				if err != nil {
					return err
				}
				cursorText := "none"
				if !cursor.IsZero() {
					view.Cursor = &cursor
					cursorText = cursor.UTC().Format(time.RFC3339)
				}
				text := fmt.Sprintf("items %d (linked %d, unlinked %d), cursor %s", view.Total, view.Linked, view.Unlinked, cursorText)
				return render(cmd, opts, view, text)
			})
		},
	}
}

func newLogsCommand(opts *RootOptions, deps Deps) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent sync log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 || n > 100 {
				return fmt.Errorf("-n must be between 1 and 100")
			}
			return withService(cmd, deps, func(svc synchttp.SyncService) error {
				entries, err := svc.RecentLogs(cmd.Context(), n)
				if err != nil {
					return err
				}
				var b strings.Builder
				for _, e := range entries {
					fmt.Fprintf(&b, "%s  %-9s %-7s %s\n", e.At.UTC().Format(time.RFC3339), e.Action, e.Status, e.Details)
				}
				return render(cmd, opts, entries, strings.TrimRight(b.String(), "\n"))
			})
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 20, "number of entries")
	return cmd
}

// parseWhen accepts RFC3339 or a bare UTC date. Empty means zero time.
func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.UTC)
}
