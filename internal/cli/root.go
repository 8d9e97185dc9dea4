// Package cli implements the cobra command tree of fieldwatch.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/fieldwatch"
	"github.com/aretw0/fieldwatch/internal/config"
	"github.com/aretw0/fieldwatch/internal/logging"
	"github.com/aretw0/fieldwatch/pkg/adapters/fs"
	"github.com/aretw0/fieldwatch/pkg/settings"
)

// systemDir holds the settings file inside a vault.
const systemDir = ".fieldwatch"

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		return 1
	}
	return 0
}

// NewRootCommand constructs the top-level command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "fieldwatch",
		Short: "React to front-matter changes in a Markdown vault",
		Long: `fieldwatch watches the YAML front-matter of Markdown documents.

Header rules keep a body line in sync with a field; action rules run a
command when a field changes. Rules live in .fieldwatch/settings.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			logger := logging.SetupWithWriter(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.EffectiveLogLevel()),
				slog.String("configFile", cfg.ConfigFile),
			)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .fieldwatch.yaml)")
	pf.String("vault", "", "vault directory (default: nearest vault root or the working directory)")
	pf.String("pattern", fs.DefaultPattern, "doublestar pattern selecting documents")
	pf.String("seed-mode", string(fieldwatch.SeedOverwrite), "baseline seeding on open: overwrite, fill")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.BoolP("verbose", "v", false, "enable debug logging")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	cmd.AddCommand(
		newRunCommand(),
		newRulesCommand(),
		newActionsCommand(),
		newRewriteCommand(),
		newStatusCommand(),
		newVersionCommand(),
	)

	return cmd
}

// resolveVault returns the configured vault, the nearest vault root, or the
// working directory, in that order.
func resolveVault(cfg *config.Config) (string, error) {
	if cfg.Vault != "" {
		return cfg.Vault, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if root, err := fieldwatch.FindVaultRoot(wd); err == nil {
		return root, nil
	}
	return wd, nil
}

// newEngine builds an engine for an existing vault from the command context.
func newEngine(cmd *cobra.Command, opts ...fieldwatch.Option) (*fieldwatch.Engine, error) {
	cfg := config.FromContext(cmd.Context())
	vault, err := resolveVault(cfg)
	if err != nil {
		return nil, err
	}

	base := []fieldwatch.Option{
		fieldwatch.WithLogger(logging.FromContext(cmd.Context())),
		fieldwatch.WithMustExist(true),
		fieldwatch.WithSystemDir(systemDir),
		fieldwatch.WithPattern(cfg.Pattern),
		fieldwatch.WithSeedMode(cfg.SeedModeValue()),
		fieldwatch.WithDebounce(cfg.Debounce),
		fieldwatch.WithVersioning(cfg.Versioning),
	}
	return fieldwatch.New(vault, append(base, opts...)...)
}

// settingsStore opens the settings file of the configured vault.
func settingsStore(cmd *cobra.Command) (*settings.Store, error) {
	cfg := config.FromContext(cmd.Context())
	vault, err := resolveVault(cfg)
	if err != nil {
		return nil, err
	}
	return settings.NewStore(settings.DefaultPath(vault, systemDir), logging.FromContext(cmd.Context())), nil
}
