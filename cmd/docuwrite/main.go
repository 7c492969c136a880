// Command docuwrite assembles Markdown, text, CSV, HTML, PDF and DOCX sources
// into one annotated document and renders it.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docuwrite/internal/config"
	"github.com/dgallion1/docuwrite/internal/report"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docuwrite",
		Short:         "Assemble and render multi-file documentation",
		Long:          "docuwrite merges a directory of sources, rasterizes mermaid diagrams, captions tables, indexes TODOs and renders the result with pandoc or headless Chrome.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "", "YAML or TOML config file")
	root.PersistentFlags().String("log-format", "", "log format (text|json)")
	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	root.AddCommand(newBuildCmd(), newTodosCmd(), newServeCmd(), newVersionCmd())
	return root
}

// loadConfig layers the environment, the --config file and the persistent
// flags. Command specific flags are applied by each command.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Load()
	flags := cmd.Flags()

	if path, _ := flags.GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	mode, _ := flags.GetString("color")
	if err := report.SetColor(mode); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the configured format and level.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
