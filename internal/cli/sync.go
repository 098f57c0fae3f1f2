package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultrev/internal/config"
	"github.com/roach88/vaultrev/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	RemoteDB   string
	RemoteDSN  string
	Author     int64
	MaxElapsed time.Duration
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local database with the remote replica",
		Long: `Run one upload pass over every item of the local and remote replicas.

Items present on one side only are created on the other. Local edits are
recorded on the remote with the last synced remote head as base, so
divergent edits go through conflict detection there. Remote edits are
downloaded. Items with open conflicts on the remote wait for an admin.

Exit codes:
  0 - Every item synced or is waiting on an admin
  1 - One or more items failed
  2 - Command error

Examples:
  vaultrev sync --db local.db --remote-db remote.db --author 7
  vaultrev sync --db local.db --remote-dsn 'user:pw@tcp(host:3306)/vault'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RemoteDB, "remote-db", "", "remote SQLite database path (overrides remote.path)")
	cmd.Flags().StringVar(&opts.RemoteDSN, "remote-dsn", "", "remote MySQL DSN (overrides remote.dsn)")
	cmd.Flags().Int64Var(&opts.Author, "author", 0, "user id recorded on sync revisions (overrides sync.author)")
	cmd.Flags().DurationVar(&opts.MaxElapsed, "max-elapsed", 0, "retry budget per item (overrides sync.max_elapsed)")
	cmd.MarkFlagsMutuallyExclusive("remote-db", "remote-dsn")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	ctx := cmd.Context()
	cfg := opts.Config

	remoteDB := cfg.Remote
	switch {
	case opts.RemoteDB != "":
		remoteDB = config.Database{Driver: config.DriverSQLite, Path: opts.RemoteDB}
	case opts.RemoteDSN != "":
		remoteDB = config.Database{Driver: config.DriverMySQL, DSN: opts.RemoteDSN}
	}
	author := cfg.Sync.Author
	if cmd.Flags().Changed("author") {
		author = opts.Author
	}
	maxElapsed := cfg.Sync.MaxElapsed
	if cmd.Flags().Changed("max-elapsed") {
		maxElapsed = opts.MaxElapsed
	}

	local, closeLocal, err := opts.openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeLocal()

	remoteStore, err := openStore(ctx, remoteDB, "remote")
	if err != nil {
		return err
	}
	defer remoteStore.Close()
	remote := opts.newEngine(remoteStore)

	s := syncer.New(local, remote,
		syncer.WithAuthor(author),
		syncer.WithMaxElapsed(maxElapsed),
		syncer.WithLogger(opts.Logger),
	)
	report, err := s.Upload(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "sync failed", err)
	}

	out := opts.formatter(cmd)
	if err := out.Success(report, func(w io.Writer) { writeSyncReport(w, report) }); err != nil {
		return err
	}
	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d item(s) failed to sync", len(report.Failed)))
	}
	return nil
}

func writeSyncReport(w io.Writer, r syncer.Report) {
	line := func(label string, ids []string) {
		if len(ids) > 0 {
			fmt.Fprintf(w, "%-11s %d  %s\n", label+":", len(ids), strings.Join(ids, ", "))
		}
	}
	line("Created", r.Created)
	line("Uploaded", r.Uploaded)
	line("Downloaded", r.Downloaded)
	line("Merged", r.Merged)
	line("Conflicted", r.Conflicted)
	if len(r.ConflictIDs) > 0 {
		fmt.Fprintf(w, "Open conflicts on remote: %s\n", strings.Join(r.ConflictIDs, ", "))
	}
	if len(r.Failed) > 0 {
		ids := make([]string, 0, len(r.Failed))
		for id := range r.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintf(w, "Failed:     %d\n", len(ids))
		for _, id := range ids {
			fmt.Fprintf(w, "  %s: %s\n", id, r.Failed[id])
		}
	}
	if r.OK() && len(r.Created)+len(r.Uploaded)+len(r.Downloaded)+len(r.Merged)+len(r.Conflicted) == 0 {
		fmt.Fprintln(w, "Already in sync.")
	}
}
