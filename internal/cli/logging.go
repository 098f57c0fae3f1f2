package cli

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"

	"github.com/roach88/vaultrev/internal/config"
)

// newLogger builds the process logger. Text output goes through the
// charmbracelet handler; JSON output uses slog's JSON handler so that log
// lines stay machine-readable next to --format json.
func newLogger(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	if cfg.Format == "json" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "vaultrev",
	})
	return slog.New(handler), nil
}
