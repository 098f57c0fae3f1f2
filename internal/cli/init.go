package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// InitResult is the output of the init command.
type InitResult struct {
	Driver  string `json:"driver"`
	Path    string `json:"path,omitempty"`
	Dialect string `json:"dialect"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the database",
		Long: `Create the configured database if needed and apply the schema.

Examples:
  vaultrev init --db vault.db
  vaultrev init --config vaultrev.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, rootOpts)
		},
	}
}

func runInit(cmd *cobra.Command, opts *RootOptions) error {
	db := opts.Config.Database
	st, err := openStore(cmd.Context(), db, "database")
	if err != nil {
		return err
	}
	defer st.Close()

	result := InitResult{Driver: db.Driver, Path: db.Path, Dialect: string(st.Dialect())}
	opts.Logger.Info("database ready", "driver", result.Driver, "path", result.Path)

	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		if result.Path != "" {
			fmt.Fprintf(w, "Initialized %s database at %s\n", result.Dialect, result.Path)
			return
		}
		fmt.Fprintf(w, "Initialized %s database\n", result.Dialect)
	})
}
