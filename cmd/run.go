package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aia-cli/aia/internal/agent"
	"github.com/aia-cli/aia/internal/config"
	"github.com/aia-cli/aia/internal/engine"
	"github.com/aia-cli/aia/internal/gather"
	"github.com/aia-cli/aia/internal/provider"
	"github.com/aia-cli/aia/internal/session"
	"github.com/aia-cli/aia/internal/shell"
	"github.com/aia-cli/aia/internal/ui"
)

func runSession(cmd *cobra.Command, args []string) error {
	dir := config.Dir(configDir)
	logger, closeLog := newLogger(dir)
	defer closeLog()

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", config.Path(dir), "provider", cfg.Provider, "model", cfg.Model, "shell", cfg.Shell)

	a, err := agent.Build(cfg.SystemPromptFile, cfg.Shell)
	if err != nil {
		return err
	}
	p, err := provider.New(provider.Config{
		Type:    cfg.Provider,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.RequestTimeout(),
		Retries: cfg.Retries,
		Debug:   debugFunc(logger),
	})
	if err != nil {
		return err
	}

	piped := gather.StdinPiped()
	sctx := gather.Build(gather.Options{
		IsPiped: func() bool { return piped },
		Logger:  logger,
	})
	sess := session.New(sctx)

	term := ui.New(ui.Options{
		HistoryFile: filepath.Join(dir, config.HistFile),
		StdinPiped:  piped,
	})
	defer term.Close()
	term.Intro(cfg.Model, sctx.Cwd)

	eng := engine.New(a.System(sctx.Render()), cfg.Model, p,
		shell.New(cfg.Shell, sctx.Cwd, cfg.ExecTimeout()), term, sess)
	eng.Limits = session.Limits{MaxTurns: cfg.MaxHistoryTurns, MaxTokens: cfg.MaxHistoryTokens}
	eng.Counter = session.NewTokenizer(cfg.Model)
	eng.Logger = logger

	code := eng.Run(cmd.Context(), strings.Join(args, " "))
	term.Outro("Bye!")
	if code != 0 {
		return exitCode(code)
	}
	return nil
}

// loadConfig loads and validates the config, printing setup
// hints for a fresh install or a missing key.
func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.Load(dir)
	if errors.Is(err, config.ErrCreated) {
		fmt.Fprintf(os.Stderr, "Created %s\nPlease set your OpenAI API key in it and run aia again.\n", config.Path(dir))
		return nil, exitCode(1)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprintf(os.Stderr, "Please set your OpenAI API key in %s\n", config.Path(dir))
			return nil, exitCode(1)
		}
		return nil, fmt.Errorf("invalid config %s: %w", config.Path(dir), err)
	}
	return cfg, nil
}

func debugFunc(logger *slog.Logger) provider.DebugFunc {
	return func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...), "component", "provider")
	}
}
