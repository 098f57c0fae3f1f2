package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/vaultrev/internal/config"
	"github.com/roach88/vaultrev/internal/ir"
	"github.com/roach88/vaultrev/internal/telemetry"
)

// Version is stamped into telemetry resources. Release builds may
// override it with -ldflags.
var Version = ir.EngineVersion

// RootOptions holds global flags for all commands, plus the configuration
// and logger resolved from them before a subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DB         string

	Config *config.Config
	Logger *slog.Logger

	shutdown telemetry.ShutdownFunc
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vaultrev CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vaultrev",
		Short: "vaultrev - revisions and merge conflicts for vault items",
		Long: `vaultrev records field-level revisions of vault items, merges divergent
edits three ways, and queues the conflicts it cannot merge for an admin.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.shutdown == nil {
				return nil
			}
			return opts.shutdown(cmd.Context())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./vaultrev.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database path (overrides database.path)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewItemCommand(opts))
	cmd.AddCommand(NewEditCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewFieldCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup validates global flags, loads configuration and installs the
// logger and telemetry providers.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DB != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = o.DB
		cfg.Database.DSN = ""
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if o.Format == "json" {
		cfg.Log.Format = "json"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.Config = cfg

	o.Logger, err = newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}

	o.shutdown, err = telemetry.Init(cmd.Context(), cfg.Telemetry, Version, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start telemetry", err)
	}
	return nil
}

// formatter returns an OutputFormatter bound to the command's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
