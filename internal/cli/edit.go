package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultrev/internal/engine"
	"github.com/roach88/vaultrev/internal/ir"
)

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Fields []string // Field=value
	Base   string   // base revision id, "head", or empty
	Author int64
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <item-id>",
		Short: "Record a revision of an item",
		Long: `Record a revision that sets the given fields.

The old value of each field is the current live value. With --base equal
to the current head (or "head"), the edit fast-forwards. With an older
base, the edit is merged against the head field by field; any field that
cannot be merged opens a conflict and leaves the head untouched.

Examples:
  vaultrev edit <item> --field Name=new-name --base head --author 7
  vaultrev edit <item> --field 'Content=line one\nline two' --base <rev>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Fields, "field", nil, "Field=value to set (repeatable)")
	cmd.Flags().StringVar(&opts.Base, "base", "", `base revision id, or "head"`)
	cmd.Flags().Int64Var(&opts.Author, "author", 0, "author user id")
	_ = cmd.MarkFlagRequired("field")

	return cmd
}

func runEdit(cmd *cobra.Command, opts *EditOptions, itemID string) error {
	values, err := parseAssignments(opts.Fields)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	eng, closeFn, err := opts.openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	item, err := eng.GetItem(ctx, itemID)
	if err != nil {
		return engineExitError("edit", err)
	}
	base := opts.Base
	if base == "head" {
		base = item.HeadRevisionID
	}

	changes := make(map[string]ir.FieldChange, len(values))
	for name, v := range values {
		old, _ := item.Field(name)
		changes[name] = ir.Change(old, v)
	}

	res, err := eng.RecordRevision(ctx, engine.RecordRequest{
		ItemID:         itemID,
		AuthorUserID:   opts.Author,
		Changes:        changes,
		BaseRevisionID: base,
	})
	if err != nil {
		return engineExitError("edit", err)
	}

	return opts.formatter(cmd).Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Recorded revision %s (version %d)\n", res.RevisionID, res.VersionSeq)
		switch {
		case res.FastForward:
			fmt.Fprintln(w, "Head fast-forwarded.")
		case res.MergeRevisionID != "":
			fmt.Fprintf(w, "Merged into head as %s.\n", res.MergeRevisionID)
		case len(res.ConflictIDs) > 0:
			fmt.Fprintf(w, "Head unchanged; %d conflict(s) queued: %s\n", len(res.ConflictIDs), strings.Join(res.ConflictIDs, ", "))
		}
	})
}
