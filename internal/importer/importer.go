// Package importer hands downloaded tracks to a beets library.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"trackbot/internal/logger"
)

// Importer runs "beet import" on finished downloads.
type Importer struct {
	command string
	out     io.Writer
	logger  *logger.Logger
}

// New creates an Importer. An empty command uses "beet" from PATH.
func New(command string, out io.Writer, log *logger.Logger) *Importer {
	if command == "" {
		command = "beet"
	}
	return &Importer{
		command: command,
		out:     out,
		logger:  log.Component("importer"),
	}
}

// Import moves path into the library. Quiet mode applies confident matches
// and skips the rest instead of prompting.
func (i *Importer) Import(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("import path cannot be empty")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("import path does not exist: %s", path)
	}
	if _, err := exec.LookPath(i.command); err != nil {
		return fmt.Errorf("beets command %q not found in PATH: %w", i.command, err)
	}

	args := []string{"import", "--move", "--quiet", "--singletons", path}
	i.logger.Debug("Running %s %v", i.command, args)

	cmd := exec.CommandContext(ctx, i.command, args...)
	cmd.Stdout = i.out
	cmd.Stderr = i.out

	err := cmd.Run()
	if ctx.Err() != nil {
		return fmt.Errorf("import cancelled: %w", ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("beets import failed: %w", err)
	}

	i.logger.Info("Imported %s", path)
	return nil
}
