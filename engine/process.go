package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

// Process is a running engine child as seen by a Link.
type Process interface {
	// Stdin receives command lines.
	Stdin() io.Writer
	// Stdout yields response lines.
	Stdout() io.Reader
	// Kill terminates the process. It must not block.
	Kill() error
	// Wait blocks until the process has exited.
	Wait() (*ExitResult, error)
}

// ExitResult represents the result of an engine process exit.
type ExitResult struct {
	// ExitCode is the process exit code, -1 when killed by a signal.
	ExitCode int
	// Stderr is the tail of the captured stderr output.
	Stderr string
}

// ExecConfig configures an engine binary launch.
type ExecConfig struct {
	// Path is the engine binary.
	Path string
	// Args are extra command-line arguments.
	Args []string
	// Dir is the working directory; empty inherits ours.
	Dir string
	// Env holds extra KEY=VALUE entries layered over the inherited environment.
	Env []string
}

// stderrTailSize bounds the captured stderr kept for diagnostics.
const stderrTailSize = 8 * 1024

// ExecProcess manages an engine process launched from a binary.
type ExecProcess struct {
	config ExecConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	stderr     tailBuffer
	stderrDone chan struct{}

	waitOnce sync.Once
	result   *ExitResult
	waitErr  error
}

// NewExecProcess creates a process manager for the given binary.
func NewExecProcess(config ExecConfig) *ExecProcess {
	return &ExecProcess{config: config}
}

// Start launches the engine. Canceling ctx kills the process.
func (p *ExecProcess) Start(ctx context.Context) error {
	if p.config.Path == "" {
		return errors.New("engine path is required")
	}

	p.cmd = exec.CommandContext(ctx, p.config.Path, p.config.Args...)
	p.cmd.Dir = p.config.Dir
	if len(p.config.Env) > 0 {
		p.cmd.Env = deduplicateEnv(append(os.Environ(), p.config.Env...))
	}

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	p.stdin = stdin

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	p.stdout = stdout

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start engine %s: %w", p.config.Path, err)
	}

	// Drain stderr so a chatty engine never blocks on a full pipe.
	p.stderrDone = make(chan struct{})
	go func() {
		defer close(p.stderrDone)
		_, _ = io.Copy(&p.stderr, stderr)
	}()

	return nil
}

// Stdin returns the command pipe.
func (p *ExecProcess) Stdin() io.Writer {
	return p.stdin
}

// Stdout returns the response pipe.
func (p *ExecProcess) Stdout() io.Reader {
	return p.stdout
}

// Kill terminates the engine process.
func (p *ExecProcess) Kill() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if p.stdin != nil {
		_ = p.stdin.Close()
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Wait waits for the engine to exit and returns the result.
// Safe to call more than once; later calls return the first result.
func (p *ExecProcess) Wait() (*ExitResult, error) {
	if p.cmd == nil || p.stderrDone == nil {
		return nil, errors.New("engine not started")
	}
	p.waitOnce.Do(func() {
		<-p.stderrDone
		err := p.cmd.Wait()

		result := &ExitResult{Stderr: p.stderr.String()}
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				p.waitErr = fmt.Errorf("engine wait failed: %w", err)
				return
			}
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				result.ExitCode = status.ExitStatus()
			} else {
				result.ExitCode = -1
			}
		}
		p.result = result
	})
	return p.result, p.waitErr
}

// StderrTail returns the most recent stderr output.
func (p *ExecProcess) StderrTail() string {
	return p.stderr.String()
}

// Verify ExecProcess implements Process.
var _ Process = (*ExecProcess)(nil)

// tailBuffer keeps the last stderrTailSize bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - stderrTailSize; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// deduplicateEnv keeps the last occurrence of each env var key,
// so configured values win over inherited duplicates from os.Environ().
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}
