package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/roach88/vaultrev/internal/engine"
	"github.com/roach88/vaultrev/internal/ir"
)

// ConflictDetail is the output of conflicts show: the queue row plus the
// three values an admin chooses between.
type ConflictDetail struct {
	Conflict    ir.Conflict `json:"conflict"`
	BaseValue   string      `json:"base_value"`
	LocalValue  string      `json:"local_value"`
	RemoteValue string      `json:"remote_value"`
}

// ResolveOptions holds flags for conflicts resolve.
type ResolveOptions struct {
	*RootOptions
	Admin       int64
	Set         []string // Field=value
	Summary     string
	NoRevision  bool
	Interactive bool
}

// ResolveResult is the output of conflicts resolve.
type ResolveResult struct {
	ConflictID string `json:"conflict_id"`
	Resolved   bool   `json:"resolved"`
	ItemID     string `json:"item_id"`
	Head       string `json:"head"`
	VersionSeq int64  `json:"version_seq"`
}

// promptResolution collects merged values interactively. Replaced in tests.
var promptResolution = runResolutionForm

// NewConflictsCommand creates the conflicts command group.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Inspect and resolve queued merge conflicts",
	}
	cmd.AddCommand(newConflictsListCommand(rootOpts))
	cmd.AddCommand(newConflictsShowCommand(rootOpts))
	cmd.AddCommand(newConflictsResolveCommand(rootOpts))
	return cmd
}

func newConflictsListCommand(rootOpts *RootOptions) *cobra.Command {
	var originator int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open conflicts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := rootOpts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var filter engine.ConflictFilter
			if cmd.Flags().Changed("originator") {
				filter.OriginatorUserID = &originator
			}
			conflicts, err := eng.ListOpenConflicts(cmd.Context(), filter)
			if err != nil {
				return engineExitError("list conflicts", err)
			}

			return rootOpts.formatter(cmd).Success(conflicts, func(w io.Writer) {
				if len(conflicts) == 0 {
					fmt.Fprintln(w, "No open conflicts.")
					return
				}
				for _, c := range conflicts {
					fmt.Fprintf(w, "%s  item=%s  field=%s  originator=%d\n", c.ID, c.ItemID, c.FieldName, c.OriginatorUserID)
				}
			})
		},
	}

	cmd.Flags().Int64Var(&originator, "originator", 0, "only conflicts raised by this user id")
	return cmd
}

func newConflictsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conflict-id>",
		Short: "Show a conflict with its base, local and remote values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := rootOpts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			detail, err := loadConflictDetail(cmd.Context(), eng, args[0])
			if err != nil {
				return engineExitError("show conflict", err)
			}
			c := detail.Conflict
			return rootOpts.formatter(cmd).Success(detail, func(w io.Writer) {
				fmt.Fprintf(w, "Conflict: %s (%s)\n", c.ID, c.Status)
				fmt.Fprintf(w, "Item:     %s\n", c.ItemID)
				fmt.Fprintf(w, "Field:    %s\n", c.FieldName)
				fmt.Fprintf(w, "Base:     %s  %q\n", c.BaseRevisionID, detail.BaseValue)
				fmt.Fprintf(w, "Local:    %s  %q\n", c.LocalRevisionID, detail.LocalValue)
				fmt.Fprintf(w, "Remote:   %s  %q\n", c.RemoteRevisionID, detail.RemoteValue)
				if !c.IsOpen() && c.ResolvedByAdminUserID != nil {
					fmt.Fprintf(w, "Resolved by admin %d: %s\n", *c.ResolvedByAdminUserID, c.ResolutionPayload)
				}
			})
		},
	}
}

func loadConflictDetail(ctx context.Context, eng *engine.Engine, conflictID string) (ConflictDetail, error) {
	c, err := eng.GetConflictDetail(ctx, conflictID)
	if err != nil {
		return ConflictDetail{}, err
	}
	detail := ConflictDetail{Conflict: c}
	for _, v := range []struct {
		rev string
		out *string
	}{
		{c.BaseRevisionID, &detail.BaseValue},
		{c.LocalRevisionID, &detail.LocalValue},
		{c.RemoteRevisionID, &detail.RemoteValue},
	} {
		if *v.out, err = eng.GetFieldValue(ctx, v.rev, c.ItemID, c.FieldName); err != nil {
			return ConflictDetail{}, err
		}
	}
	return detail, nil
}

func newConflictsResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Apply an admin resolution to a conflict",
		Long: `Write the merged values and mark the conflict resolved.

By default a merge revision is recorded with the conflict's remote and
local revisions as parents, and the head moves to it. With --no-revision
only the live values are overwritten.

Examples:
  vaultrev conflicts resolve <id> --admin 1 --set Name=final --summary "kept both"
  vaultrev conflicts resolve <id> --admin 1 --interactive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts, args[0])
		},
	}

	cmd.Flags().Int64Var(&opts.Admin, "admin", 0, "resolving admin user id")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "Field=value to write (repeatable)")
	cmd.Flags().StringVar(&opts.Summary, "summary", "", "resolution summary stored with the conflict")
	cmd.Flags().BoolVar(&opts.NoRevision, "no-revision", false, "overwrite live values without recording a merge revision")
	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "choose the merged value in a form")
	_ = cmd.MarkFlagRequired("admin")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, conflictID string) error {
	values, err := parseAssignments(opts.Set)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	eng, closeFn, err := opts.openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	detail, err := loadConflictDetail(ctx, eng, conflictID)
	if err != nil {
		return engineExitError("resolve", err)
	}

	if opts.Interactive {
		value, summary, err := promptResolution(detail)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return NewExitError(ExitCommandError, "resolution cancelled")
			}
			return WrapExitError(ExitCommandError, "form error", err)
		}
		values[detail.Conflict.FieldName] = value
		if opts.Summary == "" {
			opts.Summary = summary
		}
	}
	if len(values) == 0 {
		return NewExitError(ExitCommandError, "nothing to resolve with: pass --set Field=value or --interactive")
	}

	opts.Logger.Debug("resolving conflict",
		"conflict_id", conflictID,
		"fields", slices.Sorted(maps.Keys(values)),
	)
	ok, err := eng.AdminResolveConflict(ctx, engine.ResolveRequest{
		ConflictID:          conflictID,
		AdminUserID:         opts.Admin,
		MergedValues:        values,
		Summary:             opts.Summary,
		CreateMergeRevision: !opts.NoRevision,
	})
	if err != nil {
		return engineExitError("resolve", err)
	}

	item, err := eng.GetItem(ctx, detail.Conflict.ItemID)
	if err != nil {
		return engineExitError("resolve", err)
	}
	res := ResolveResult{
		ConflictID: conflictID,
		Resolved:   ok,
		ItemID:     item.ID,
		Head:       item.HeadRevisionID,
		VersionSeq: item.VersionSeq,
	}
	return opts.formatter(cmd).Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Resolved conflict %s; item %s head is %s (version %d)\n", res.ConflictID, res.ItemID, res.Head, res.VersionSeq)
	})
}

// runResolutionForm asks the admin which value to start from, then for the
// final merged value and a summary.
func runResolutionForm(detail ConflictDetail) (value, summary string, err error) {
	c := detail.Conflict
	choice := "remote"

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title(fmt.Sprintf("Conflict %s on %s", c.ID, c.FieldName)).
				Description(fmt.Sprintf("base:   %q\nlocal:  %q\nremote: %q", detail.BaseValue, detail.LocalValue, detail.RemoteValue)),
			huh.NewSelect[string]().
				Title("Start from").
				Options(
					huh.NewOption("Remote value", "remote"),
					huh.NewOption("Local value", "local"),
					huh.NewOption("Base value", "base"),
				).
				Value(&choice),
		),
	).Run()
	if err != nil {
		return "", "", err
	}

	switch choice {
	case "local":
		value = detail.LocalValue
	case "base":
		value = detail.BaseValue
	default:
		value = detail.RemoteValue
	}

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Merged " + c.FieldName).
				Value(&value),
			huh.NewInput().
				Title("Summary").
				Placeholder("what was kept and why").
				Value(&summary),
		),
	).Run()
	if err != nil {
		return "", "", err
	}
	return value, summary, nil
}
