package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// FieldValue is the output of the field command.
type FieldValue struct {
	ItemID     string `json:"item_id"`
	RevisionID string `json:"revision_id,omitempty"`
	Field      string `json:"field"`
	Value      string `json:"value"`
}

// NewFieldCommand creates the field command.
func NewFieldCommand(rootOpts *RootOptions) *cobra.Command {
	var rev string

	cmd := &cobra.Command{
		Use:   "field <item-id> <field>",
		Short: "Read a field value, optionally at a revision",
		Long: `Print the value a revision recorded for a field. If the revision did not
touch the field, or no revision is given, the live value is printed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := rootOpts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			value, err := eng.GetFieldValue(cmd.Context(), rev, args[0], args[1])
			if err != nil {
				return engineExitError("field", err)
			}
			out := FieldValue{ItemID: args[0], RevisionID: rev, Field: args[1], Value: value}
			return rootOpts.formatter(cmd).Success(out, func(w io.Writer) {
				fmt.Fprintln(w, value)
			})
		},
	}

	cmd.Flags().StringVar(&rev, "rev", "", "revision id to read at")
	return cmd
}
