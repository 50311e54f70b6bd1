//go:build !windows

package executor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCommandExecutor_Success(t *testing.T) {
	e := NewCommandExecutor("true", nil)
	if err := e.Execute(context.Background()); err != nil {
		t.Errorf("Execute() error = %v", err)
	}
}

func TestCommandExecutor_Failure(t *testing.T) {
	e := NewCommandExecutor("false", nil)
	err := e.Execute(context.Background())
	if err == nil {
		t.Fatal("Execute() should fail for a non-zero exit")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Errorf("Execute() error = %v, want *exec.ExitError", err)
	}
}

func TestCommandExecutor_MissingCommand(t *testing.T) {
	e := NewCommandExecutor(filepath.Join(t.TempDir(), "missing.sh"), nil)
	if err := e.Execute(context.Background()); err == nil {
		t.Error("Execute() should fail for a missing command")
	}
}

func TestCommandExecutor_OutputLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := NewCommandExecutor("echo", []string{"suspending", "now"}, WithLogger(logger))
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), "suspending now") {
		t.Errorf("log = %q, want command output", buf.String())
	}
}

func TestCommandExecutor_ArgsNotShellExpanded(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := NewCommandExecutor("echo", []string{"$HOME;", "ls"}, WithLogger(logger))
	if err := e.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), "$HOME; ls") {
		t.Errorf("log = %q, want literal arguments", buf.String())
	}
}

func TestCommandExecutor_Timeout(t *testing.T) {
	e := NewCommandExecutor("sleep", []string{"10"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := e.Execute(ctx)
	if err == nil {
		t.Fatal("Execute() should fail when the context expires")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Execute() took %v, want the command killed", elapsed)
	}
}

func TestNewCommandExecutor_DefaultCommand(t *testing.T) {
	e := NewCommandExecutor("", nil)
	if e.path != DefaultCommand {
		t.Errorf("path = %q, want %q", e.path, DefaultCommand)
	}
}
