package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultrev/internal/engine"
	"github.com/roach88/vaultrev/internal/ir"
)

// ItemCreateOptions holds flags for item create.
type ItemCreateOptions struct {
	*RootOptions
	ID      string
	Name    string
	Content string
	Tags    []string
	Parent  string
	Author  int64
}

// ItemDetail is the output of item show.
type ItemDetail struct {
	Item          ir.Item       `json:"item"`
	OpenConflicts []ir.Conflict `json:"open_conflicts"`
}

// NewItemCommand creates the item command group.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Create and inspect items",
	}
	cmd.AddCommand(newItemCreateCommand(rootOpts))
	cmd.AddCommand(newItemShowCommand(rootOpts))
	cmd.AddCommand(newItemListCommand(rootOpts))
	return cmd
}

func newItemCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an item and record its first revision",
		Long: `Create an item. Only the fields given on the command line are recorded
in the first revision; the others start empty.

Examples:
  vaultrev item create --name "db password" --content "hunter2" --author 7
  vaultrev item create --name notes --tag infra --tag prod --parent <folder-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := map[string]string{}
			if cmd.Flags().Changed("name") {
				values[ir.FieldName] = opts.Name
			}
			if cmd.Flags().Changed("content") {
				values[ir.FieldContent] = unescapeValue(opts.Content)
			}
			if cmd.Flags().Changed("tag") {
				values[ir.FieldTags] = ir.JoinTags(opts.Tags)
			}
			return runItemCreate(cmd, opts, values)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "item id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "item name")
	cmd.Flags().StringVar(&opts.Content, "content", "", `item content (\n for newlines)`)
	cmd.Flags().StringArrayVar(&opts.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&opts.Parent, "parent", "", "parent folder item id")
	cmd.Flags().Int64Var(&opts.Author, "author", 0, "author user id")

	return cmd
}

func runItemCreate(cmd *cobra.Command, opts *ItemCreateOptions, values map[string]string) error {
	eng, closeFn, err := opts.openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := eng.CreateItem(cmd.Context(), engine.CreateItemRequest{
		ItemID:       opts.ID,
		ParentItemID: opts.Parent,
		AuthorUserID: opts.Author,
		Values:       values,
	})
	if err != nil {
		return engineExitError("create item", err)
	}

	return opts.formatter(cmd).Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Created item %s (revision %s, version %d)\n", res.ItemID, res.RevisionID, res.VersionSeq)
	})
}

func newItemShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show an item's live values, head and open conflicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := rootOpts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			item, err := eng.GetItem(cmd.Context(), args[0])
			if err != nil {
				return engineExitError("show item", err)
			}
			conflicts, err := eng.ListItemConflicts(cmd.Context(), args[0])
			if err != nil {
				return engineExitError("show item", err)
			}
			open := []ir.Conflict{}
			for _, c := range conflicts {
				if c.IsOpen() {
					open = append(open, c)
				}
			}

			detail := ItemDetail{Item: item, OpenConflicts: open}
			return rootOpts.formatter(cmd).Success(detail, func(w io.Writer) {
				writeItem(w, item)
				fmt.Fprintf(w, "Open conflicts: %d\n", len(open))
				for _, c := range open {
					fmt.Fprintf(w, "  %s  %s\n", c.ID, c.FieldName)
				}
			})
		},
	}
}

func newItemListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := rootOpts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			items, err := eng.ListItems(cmd.Context())
			if err != nil {
				return engineExitError("list items", err)
			}
			return rootOpts.formatter(cmd).Success(items, func(w io.Writer) {
				if len(items) == 0 {
					fmt.Fprintln(w, "No items.")
					return
				}
				for _, item := range items {
					fmt.Fprintf(w, "%-36s  v%-4d  %s\n", item.ID, item.VersionSeq, oneLine(item.Name))
				}
			})
		},
	}
}

func writeItem(w io.Writer, item ir.Item) {
	fmt.Fprintf(w, "Item:    %s\n", item.ID)
	if item.ParentItemID != "" {
		fmt.Fprintf(w, "Parent:  %s\n", item.ParentItemID)
	}
	fmt.Fprintf(w, "Head:    %s (version %d)\n", item.HeadRevisionID, item.VersionSeq)
	fmt.Fprintf(w, "Name:    %s\n", oneLine(item.Name))
	fmt.Fprintf(w, "Content: %s\n", oneLine(item.Content))
	fmt.Fprintf(w, "Tags:    %v\n", ir.SplitTags(item.Tags))
}
