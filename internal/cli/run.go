package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/fieldwatch"
	"github.com/aretw0/fieldwatch/internal/config"
	"github.com/aretw0/fieldwatch/internal/logging"
)

func newRunCommand() *cobra.Command {
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the vault and apply rules until interrupted",
		Long: `Watch the vault and apply the rules of .fieldwatch/settings.yaml.

Every existing document is opened first to seed the baseline of its watched
fields. Afterwards every change notification is compared against the
baseline: header rules rewrite their line, action rules run their action.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.FromContext(ctx)
			engine, err := newEngine(cmd, fieldwatch.WithReadOnly(readOnly))
			if err != nil {
				return err
			}

			logger.Info("starting", "vault", engine.Path)
			if err := engine.Run(ctx); err != nil {
				return err
			}
			logger.Info("stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&readOnly, "read-only", false, "never write documents; header rules report failures")
	f.Duration("debounce", config.DefaultDebounce, "quiet period before a change is dispatched")
	f.Bool("versioning", false, "commit every header rewrite with git")
	return cmd
}
