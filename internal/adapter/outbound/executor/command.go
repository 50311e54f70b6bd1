// Package executor runs the privileged local action that follows an
// authorized dangerous control method.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rabits/control-interceptor/internal/port/outbound"
)

// DefaultCommand is the trigger script installed alongside the media center.
const DefaultCommand = "/home/user/local/kodi_control/kodi_callback_trigger.sh"

// waitDelay bounds how long output pipes may stay open after the command is
// killed on context expiry.
const waitDelay = 2 * time.Second

var tracer = otel.Tracer("control-interceptor/executor")

// CommandExecutor runs an external command without a shell.
// It implements outbound.PrivilegedExecutor.
type CommandExecutor struct {
	path   string
	args   []string
	logger *slog.Logger
}

// Option configures a CommandExecutor.
type Option func(*CommandExecutor)

// WithLogger sets the logger receiving the command output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *CommandExecutor) {
		e.logger = logger
	}
}

// NewCommandExecutor creates an executor for path with args.
func NewCommandExecutor(path string, args []string, opts ...Option) *CommandExecutor {
	if path == "" {
		path = DefaultCommand
	}
	e := &CommandExecutor{
		path:   path,
		args:   append([]string(nil), args...),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the command to completion. The command is killed when ctx
// expires.
func (e *CommandExecutor) Execute(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "executor.execute")
	defer span.End()
	span.SetAttributes(attribute.String("executor.command", e.path))

	cmd := exec.CommandContext(ctx, e.path, e.args...)
	cmd.WaitDelay = waitDelay

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	e.logger.Debug("executor finished",
		"command", e.path,
		"duration", duration,
		"output", output.String(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "command failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("run %s: %w", e.path, errors.Join(ctxErr, err))
		}
		return fmt.Errorf("run %s: %w", e.path, err)
	}
	return nil
}

var _ outbound.PrivilegedExecutor = (*CommandExecutor)(nil)
