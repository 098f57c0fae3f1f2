package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultrev/internal/store"
)

// VerifyResult is the output of the verify command.
type VerifyResult struct {
	Items  []store.ItemReport `json:"items"`
	Passed int                `json:"passed"`
	Failed int                `json:"failed"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [item-id]",
		Short: "Check version logs and head state",
		Long: `Check that version sequences start at 1 and have no gaps, that every
revision has exactly one version row, that each head points at the last
version, and that parent edges are well formed.

Exit codes:
  0 - No violations
  1 - One or more items have violations
  2 - Command error`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, closeFn, err := rootOpts.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var reports []store.ItemReport
			if len(args) == 1 {
				r, err := eng.Verify(cmd.Context(), args[0])
				if err != nil {
					return engineExitError("verify", err)
				}
				reports = []store.ItemReport{r}
			} else {
				reports, err = eng.VerifyAll(cmd.Context())
				if err != nil {
					return engineExitError("verify", err)
				}
			}

			result := VerifyResult{Items: reports}
			for _, r := range reports {
				if r.OK() {
					result.Passed++
				} else {
					result.Failed++
				}
			}

			err = rootOpts.formatter(cmd).Success(result, func(w io.Writer) {
				for _, r := range reports {
					if r.OK() {
						fmt.Fprintf(w, "ok    %s (%d versions)\n", r.ItemID, r.Versions)
						continue
					}
					fmt.Fprintf(w, "FAIL  %s\n", r.ItemID)
					for _, v := range r.Violations {
						fmt.Fprintf(w, "      %s\n", v)
					}
				}
				fmt.Fprintf(w, "\n%d passed, %d failed\n", result.Passed, result.Failed)
			})
			if err != nil {
				return err
			}
			if result.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d item(s) failed verification", result.Failed))
			}
			return nil
		},
	}
}
