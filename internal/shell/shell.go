// Package shell runs user-approved commands and annotates their risk.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Builtin selects the in-process POSIX interpreter instead of an external shell.
const Builtin = "builtin"

const DefaultTimeout = 5 * time.Minute

// ErrExecution is returned when a command could not be run to completion
// (shell missing, timeout, cancellation). A non-zero exit is not an error.
var ErrExecution = errors.New("command execution failed")

// Result is the captured outcome of one command.
type Result struct {
	Command  string
	Output   string // stdout and stderr interleaved
	ExitCode int
	Duration time.Duration
}

func (r Result) OK() bool { return r.ExitCode == 0 }

// Executor runs commands with a fixed shell.
type Executor struct {
	Shell   string // bash, sh, zsh, ... or Builtin
	Dir     string // empty means the process cwd
	Timeout time.Duration
}

func New(shellName, dir string, timeout time.Duration) *Executor {
	if shellName == "" {
		shellName = "bash"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{Shell: shellName, Dir: dir, Timeout: timeout}
}

// Run executes command and waits for it to finish.
func (e *Executor) Run(ctx context.Context, command string) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{}, fmt.Errorf("%w: empty command", ErrExecution)
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var res Result
	var err error
	if e.Shell == Builtin {
		res, err = e.runBuiltin(ctx, command)
	} else {
		res, err = e.runExternal(ctx, command)
	}
	res.Command = command
	res.Duration = time.Since(start)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return res, fmt.Errorf("%w: timed out after %s", ErrExecution, timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return res, fmt.Errorf("%w: cancelled", ErrExecution)
	}
	return res, err
}

func (e *Executor) runExternal(ctx context.Context, command string) (Result, error) {
	cmd := exec.CommandContext(ctx, e.Shell, "-c", command)
	cmd.Dir = e.Dir
	cmd.WaitDelay = time.Second
	out, err := cmd.CombinedOutput()
	res := Result{Output: string(out)}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return res, nil
}

func (e *Executor) runBuiltin(ctx context.Context, command string) (Result, error) {
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil {
		return Result{ExitCode: 2, Output: err.Error() + "\n"}, nil
	}
	var buf bytes.Buffer
	opts := []interp.RunnerOption{interp.StdIO(nil, &buf, &buf)}
	if e.Dir != "" {
		opts = append(opts, interp.Dir(e.Dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	err = runner.Run(ctx, file)
	res := Result{Output: buf.String()}
	if err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			res.ExitCode = int(status)
			return res, nil
		}
		if ctx.Err() != nil {
			return res, nil
		}
		return res, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return res, nil
}
