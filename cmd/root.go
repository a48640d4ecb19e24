package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aia-cli/aia/internal/config"
)

var (
	debug     bool
	configDir string
)

var rootCmd = &cobra.Command{
	Use:   "aia [goal...]",
	Short: "aia — AI terminal assistant",
	Long: `aia: an interactive terminal assistant.

Describe what you want to do; aia looks at the current directory, asks a
language model and proposes a shell command, asks a question or answers
directly. Every command is shown before it runs and needs your approval.

Quick Start:
  aia init                          # write ~/.config/aia/config.toml
  aia                               # start a session
  aia find the largest files here   # start with a goal

A goal that starts with a subcommand name (init, config, help, completion)
must follow "--", which ends the flags and keeps every word as the goal.

Examples:
  git diff | aia write a commit message
  aia --debug why does make fail
  aia -- init a git repo here`,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	RunE:              runSession,
}

func init() {
	rootCmd.Flags().SetInterspersed(false)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs to <config dir>/"+config.LogFile)
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default: $AIA_CONFIG_DIR or the user config dir)")
}

// exitCode ends the process with the given status without printing anything.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger returns a discarding logger unless debug logging is enabled.
func newLogger(dir string) (*slog.Logger, func()) {
	if !debug && os.Getenv("AIA_DEBUG") != "1" {
		return slog.New(slog.DiscardHandler), func() {}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, "debug log:", err)
		return slog.New(slog.DiscardHandler), func() {}
	}
	f, err := os.OpenFile(filepath.Join(dir, config.LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintln(os.Stderr, "debug log:", err)
		return slog.New(slog.DiscardHandler), func() {}
	}
	return newTextLogger(f), func() { f.Close() }
}

func newTextLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
