// Package engine drives a session: read a goal, ask the model, interpret the
// reply and act on it until the user quits.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aia-cli/aia/internal/provider"
	"github.com/aia-cli/aia/internal/reply"
	"github.com/aia-cli/aia/internal/session"
	"github.com/aia-cli/aia/internal/shell"
)

var (
	// ErrModelRequest marks a turn that ended because the backend call failed.
	ErrModelRequest = errors.New("model request failed")
	// ErrInterrupt is returned by a UI when the user pressed Ctrl-C at a prompt.
	ErrInterrupt = errors.New("interrupted")

	errQuit = errors.New("quit")
)

const (
	inputPrompt     = "Input:"
	followUpPrompt  = "Follow-up:"
	waitingLabel    = "Generating response..."
	maxNoteBytes    = 4 << 10
	truncatedMarker = "...(truncated)\n"
)

// UI is the terminal surface the session talks to.
type UI interface {
	// ReadLine returns one line of input. io.EOF and ErrInterrupt end the session.
	ReadLine(ctx context.Context, prompt string) (string, error)
	// Choose asks the user to pick one of options and returns what was entered.
	Choose(ctx context.Context, title string, options []Option) (string, error)
	// Wait runs fn while showing label; the ctx passed to fn is cancelled if the user interrupts.
	Wait(ctx context.Context, label string, fn func(ctx context.Context) error) error

	Thought(text string)
	Question(text string)
	Answer(text string)
	Command(command string, risk shell.Risk)
	Output(res shell.Result)
	Error(err error)
}

// Executor runs an approved command.
type Executor interface {
	Run(ctx context.Context, command string) (shell.Result, error)
}

type Engine struct {
	System   string // instructions plus rendered context, sent on every request
	Model    string
	Provider provider.Provider
	Executor Executor
	UI       UI
	Session  *session.Session
	Limits   session.Limits
	Counter  session.TokenCounter
	Logger   *slog.Logger

	note string // outcome of the last executed command, prefixed to the next message
}

func New(system, model string, p provider.Provider, x Executor, ui UI, s *session.Session) *Engine {
	return &Engine{
		System:   system,
		Model:    model,
		Provider: p,
		Executor: x,
		UI:       ui,
		Session:  s,
		Logger:   slog.New(slog.DiscardHandler),
	}
}

// Run loops until the user quits and returns the process exit code.
// first, when non-empty, is used as the initial goal instead of prompting.
func (e *Engine) Run(ctx context.Context, first string) int {
	if e.Logger == nil {
		e.Logger = slog.New(slog.DiscardHandler)
	}
	e.Logger = e.Logger.With("session", e.Session.ID)
	e.Logger.Info("session started", "cwd", e.Session.Context.Cwd, "entries", len(e.Session.Context.Entries), "piped", e.Session.Context.HasPipedInput())

	if err := e.loop(ctx, first); err != nil {
		e.Logger.Error("session aborted", "error", err, "turns", e.Session.Len())
		e.UI.Error(err)
		return 1
	}
	e.Logger.Info("session ended", "turns", e.Session.Len())
	return 0
}

func (e *Engine) loop(ctx context.Context, first string) error {
	input := strings.TrimSpace(first)
	followUp := false
	for {
		if input == "" {
			line, err := e.UI.ReadLine(ctx, inputPrompt)
			if endOfInput(err) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			input = strings.TrimSpace(line)
			if input == "" {
				continue
			}
		}
		if !followUp && isQuit(input) {
			return nil
		}

		next, err := e.turn(ctx, input)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		input, followUp = next, next != ""
	}
}

// turn sends one user message and handles the reply. It returns the text of a
// follow-up to send next, or "" to go back to the input prompt.
func (e *Engine) turn(ctx context.Context, text string) (string, error) {
	prompt := text
	if e.note != "" {
		prompt = e.note + "\n\n" + text
	}
	req := provider.Request{
		Model:   e.Model,
		System:  e.System,
		History: e.history(),
		Prompt:  prompt,
	}
	e.Logger.Debug("sending request", "history", len(req.History), "prompt_bytes", len(prompt))

	var raw string
	err := e.UI.Wait(ctx, waitingLabel, func(ctx context.Context) error {
		var err error
		raw, err = e.Provider.Complete(ctx, req)
		return err
	})
	if err != nil {
		e.Logger.Warn("model request failed", "error", err)
		e.UI.Error(fmt.Errorf("%w: %w", ErrModelRequest, err))
		return "", nil
	}

	rep, err := reply.Parse(raw)
	if err != nil {
		e.Logger.Warn("unparseable reply", "error", err, "raw_bytes", len(raw))
		e.UI.Error(err)
		return "", nil
	}
	e.Session.Append(session.Turn{User: prompt, Raw: raw, Reply: rep})
	e.note = ""
	e.Logger.Debug("reply", "kind", rep.Kind(), "turns", e.Session.Len())

	e.UI.Thought(rep.Thought)
	switch in := rep.Intent.(type) {
	case reply.Question:
		e.UI.Question(in.Question)
	case reply.Answer:
		e.UI.Answer(in.Answer)
	case reply.Command:
		return e.dispatch(ctx, in)
	default:
		return "", fmt.Errorf("unhandled reply kind %T", in)
	}
	return "", nil
}

// history replays the windowed turns as alternating user/assistant messages.
func (e *Engine) history() []provider.Message {
	turns := e.Session.Window(e.Limits, e.Counter)
	msgs := make([]provider.Message, 0, 2*len(turns))
	for _, t := range turns {
		msgs = append(msgs,
			provider.Message{Role: "user", Content: t.User},
			provider.Message{Role: "assistant", Content: t.Raw},
		)
	}
	return msgs
}

func isQuit(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "exit" || s == "quit"
}

func endOfInput(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrInterrupt)
}
