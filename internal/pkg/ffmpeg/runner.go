package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// CommandRunner runs external commands.
// This allows faking ffmpeg/ffprobe in tests.
type CommandRunner interface {
	// Output runs a command to completion and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Stream starts a command and returns its stdout. Closing the stream stops the command.
	Stream(ctx context.Context, name string, args ...string) (io.ReadCloser, error)
}

// ExecCommandRunner is the production implementation using os/exec
type ExecCommandRunner struct{}

// Output executes a command and returns its output
func (r *ExecCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}

// Stream starts a command with its stdout piped back to the caller
func (r *ExecCommandRunner) Stream(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	return &processStream{cmd: cmd, stdout: stdout}, nil
}

// processStream is the stdout of a running process.
type processStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func (s *processStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Close stops the process if it is still running and reaps it.
// The exit status is ignored: an early close always kills the process.
func (s *processStream) Close() error {
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	return nil
}
