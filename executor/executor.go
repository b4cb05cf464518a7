// Package executor runs external commands on behalf of pipeline stages, with
// output capture, environment variable injection, and context support for
// cancellation and timeouts. Stage steps are its only consumer: one step maps
// to one command invocation, and the first non-zero exit aborts the stage.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Result holds the output and error from a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
	Err      error
}

// Executor defines the interface for command execution.
type Executor interface {
	// Execute runs a command with the given options
	Execute(ctx context.Context, opts ...Option) (*Result, error)
}

// CommandExecutor implements the Executor interface for a single command.
type CommandExecutor struct {
	program string
	args    []string
	options *Options
}

// Options configures command execution behavior.
type Options struct {
	// Output handling
	CaptureStdout   bool
	CaptureStderr   bool
	CaptureCombined bool

	// Retry configuration. The pipeline runner never sets these: a failed
	// step is terminal for its stage. They exist for callers outside the
	// run loop (e.g. registry health probes).
	MaxRetries int
	RetryDelay time.Duration

	// Working directory
	WorkingDir string

	// Environment variables (appended to current env)
	Env map[string]string

	// Custom stdout/stderr writers (for streaming logs)
	StdoutWriter io.Writer
	StderrWriter io.Writer
}

// Option is a function that modifies Options.
type Option func(*Options)

// DefaultOptions returns default execution options.
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout: true,
		CaptureStderr: true,
		MaxRetries:    0,
		RetryDelay:    time.Second,
		Env:           make(map[string]string),
	}
}

// New creates a new CommandExecutor.
func New(program string, args ...string) *CommandExecutor {
	return &CommandExecutor{
		program: program,
		args:    args,
		options: DefaultOptions(),
	}
}

// Shell creates a CommandExecutor that runs script through "sh -c".
// Pipeline step commands are declared as shell strings.
func Shell(script string) *CommandExecutor {
	return New("sh", "-c", script)
}

// Execute implements the Executor interface.
func (c *CommandExecutor) Execute(ctx context.Context, opts ...Option) (*Result, error) {
	options := c.mergeOptions(opts...)

	maxAttempts := options.MaxRetries + 1
	var lastResult *Result

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := c.executeOnce(ctx, options)
		lastResult = result

		if err == nil || attempt == maxAttempts {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(options.RetryDelay):
		}
	}

	return lastResult, lastResult.Err
}

func (c *CommandExecutor) executeOnce(ctx context.Context, options *Options) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.program, c.args...)

	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}
	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	stdoutBuf, stderrBuf, combinedBuf := c.setupOutputCapture(cmd, options)

	err := cmd.Run()

	result := c.createResult(stdoutBuf, stderrBuf, combinedBuf, err)
	if err != nil {
		return result, fmt.Errorf("command execution failed: %w", err)
	}
	return result, nil
}

// setupOutputCapture configures stdout and stderr writers for the command.
func (c *CommandExecutor) setupOutputCapture(
	cmd *exec.Cmd,
	options *Options,
) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	var stdoutBuf, stderrBuf, combinedBuf bytes.Buffer

	stdoutWriters := []io.Writer{}
	if options.CaptureCombined {
		stdoutWriters = append(stdoutWriters, &combinedBuf)
	} else if options.CaptureStdout {
		stdoutWriters = append(stdoutWriters, &stdoutBuf)
	}
	if options.StdoutWriter != nil {
		stdoutWriters = append(stdoutWriters, options.StdoutWriter)
	}
	if len(stdoutWriters) > 0 {
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
	}

	stderrWriters := []io.Writer{}
	if options.CaptureCombined {
		stderrWriters = append(stderrWriters, &combinedBuf)
	} else if options.CaptureStderr {
		stderrWriters = append(stderrWriters, &stderrBuf)
	}
	if options.StderrWriter != nil {
		stderrWriters = append(stderrWriters, options.StderrWriter)
	}
	if len(stderrWriters) > 0 {
		cmd.Stderr = io.MultiWriter(stderrWriters...)
	}

	return &stdoutBuf, &stderrBuf, &combinedBuf
}

// createResult creates a Result from command execution and error.
func (c *CommandExecutor) createResult(
	stdoutBuf, stderrBuf, combinedBuf *bytes.Buffer,
	err error,
) *Result {
	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Combined: combinedBuf.String(),
		Err:      err,
	}

	var exitErr *exec.ExitError
	switch {
	case err != nil && errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err == nil:
		result.ExitCode = 0
	default:
		result.ExitCode = -1
	}

	return result
}

func (c *CommandExecutor) mergeOptions(opts ...Option) *Options {
	merged := *c.options
	for _, opt := range opts {
		opt(&merged)
	}
	return &merged
}

// Option functions for fluent configuration

// WithCapture configures output capture.
func WithCapture(stdout, stderr, combined bool) Option {
	return func(o *Options) {
		o.CaptureStdout = stdout
		o.CaptureStderr = stderr
		o.CaptureCombined = combined
	}
}

// WithCombinedOutput captures stdout and stderr interleaved, the way a CI log
// presents them.
func WithCombinedOutput() Option {
	return WithCapture(false, false, true)
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithEnvVar adds a single environment variable.
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithStdoutWriter sets a custom stdout writer.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter sets a custom stderr writer.
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StderrWriter = w
	}
}
