package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/aia-cli/aia/internal/engine"
)

type lineInput interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

type basicLineInput struct {
	reader *bufio.Reader
	out    io.Writer
}

func newBasicLineInput(in io.Reader, out io.Writer) *basicLineInput {
	return &basicLineInput{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (b *basicLineInput) ReadLine(prompt string) (string, error) {
	if b.out != nil {
		fmt.Fprint(b.out, prompt)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicLineInput) Close() error { return nil }

// eofInput is used when no terminal is available for interactive input.
type eofInput struct{}

func (eofInput) ReadLine(string) (string, error) { return "", io.EOF }
func (eofInput) Close() error { return nil }

type readlineInput struct {
	instance *readline.Instance
}

// newReadlineInput reads from tty when it is set, otherwise from the process stdin.
func newReadlineInput(historyPath string, tty *os.File, out io.Writer) (*readlineInput, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	cfg := &readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
		Stdout:            out,
	}
	if tty != nil {
		fd := int(tty.Fd())
		var state *term.State
		cfg.Stdin = tty
		cfg.FuncIsTerminal = func() bool { return term.IsTerminal(fd) }
		cfg.FuncMakeRaw = func() error {
			st, err := term.MakeRaw(fd)
			if err != nil {
				return err
			}
			state = st
			return nil
		}
		cfg.FuncExitRaw = func() error {
			if state == nil {
				return nil
			}
			return term.Restore(fd, state)
		}
		cfg.FuncGetWidth = func() int {
			w, _, err := term.GetSize(fd)
			if err != nil {
				return 80
			}
			return w
		}
	}
	instance, err := readline.NewEx(cfg)
	if err != nil {
		return nil, err
	}
	return &readlineInput{instance: instance}, nil
}

func (r *readlineInput) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	line, err := r.instance.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", engine.ErrInterrupt
	}
	return line, err
}

func (r *readlineInput) Close() error {
	if r == nil || r.instance == nil {
		return nil
	}
	return r.instance.Close()
}
