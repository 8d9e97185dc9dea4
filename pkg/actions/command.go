package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/aretw0/fieldwatch/pkg/core"
)

// Environment variables passed to command actions.
const (
	EnvAction   = "FIELDWATCH_ACTION"
	EnvDocument = "FIELDWATCH_DOCUMENT"
	EnvField    = "FIELDWATCH_FIELD"
	EnvPrevious = "FIELDWATCH_PREVIOUS"
	EnvValue    = "FIELDWATCH_VALUE"
)

// Definition declares an external command action.
type Definition struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name,omitempty" json:"name,omitempty"`
	Command []string `yaml:"command" json:"command"`
	// Dir is the working directory. Empty means the current directory.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
	// Timeout bounds a single run. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Validate checks that the definition can be run.
func (d Definition) Validate() error {
	if d.ID == "" {
		return errors.New("action id cannot be empty")
	}
	if len(d.Command) == 0 || d.Command[0] == "" {
		return fmt.Errorf("action %s has no command", d.ID)
	}
	if d.Timeout < 0 {
		return fmt.Errorf("action %s has a negative timeout", d.ID)
	}
	return nil
}

// CommandFunc returns a Func that runs the definition's command with the
// trigger exposed through FIELDWATCH_* environment variables.
func CommandFunc(def Definition, logger *slog.Logger) Func {
	return func(ctx context.Context, trigger core.Trigger) error {
		if def.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, def.Timeout)
			defer cancel()
		}

		if logger != nil {
			logger.Debug("executing action command", "action", def.ID, "args", def.Command, "dir", def.Dir)
		}

		cmd := exec.CommandContext(ctx, def.Command[0], def.Command[1:]...) //nolint:gosec
		cmd.Dir = def.Dir
		cmd.Env = append(os.Environ(),
			EnvAction+"="+def.ID,
			EnvDocument+"="+trigger.DocumentID,
			EnvField+"="+trigger.Field,
			EnvPrevious+"="+core.FormatValue(trigger.Previous),
			EnvValue+"="+core.FormatValue(trigger.Current),
		)

		out, err := cmd.CombinedOutput()
		output := strings.TrimSpace(string(out))
		if err != nil {
			return fmt.Errorf("command %s failed: %w\nOutput: %s", def.Command[0], err, output)
		}

		if logger != nil && output != "" {
			logger.Debug("action output", "action", def.ID, "output", output)
		}
		return nil
	}
}
