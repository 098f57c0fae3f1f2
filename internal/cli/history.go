package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <item-id>",
		Short: "Show an item's version log",
		Long: `Show every revision of an item in version order, with the fields it
changed and its parents. The current head is marked with *.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := rootOpts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := eng.History(cmd.Context(), args[0])
			if err != nil {
				return engineExitError("history", err)
			}

			return rootOpts.formatter(cmd).Success(entries, func(w io.Writer) {
				for _, e := range entries {
					mark := " "
					if e.Head {
						mark = "*"
					}
					fmt.Fprintf(w, "%s %4d  %s  %-5s  author=%d", mark, e.Version.VersionSeq, e.Revision.ID, e.Revision.Type, e.Revision.AuthorUserID)
					if len(e.Parents) > 0 {
						fmt.Fprintf(w, "  parents=%s", strings.Join(e.Parents, ","))
					}
					fmt.Fprintln(w)
					for _, f := range e.Fields {
						fmt.Fprintf(w, "         %s: %q -> %q\n", f.FieldName, f.OldValue.String, f.NewValue.String)
					}
				}
			})
		},
	}
}
