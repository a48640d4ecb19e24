package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aia-cli/aia/internal/reply"
	"github.com/aia-cli/aia/internal/shell"
)

type DecisionKind int

const (
	Execute DecisionKind = iota
	FollowUp
	Quit
)

func (k DecisionKind) String() string {
	switch k {
	case Execute:
		return "execute"
	case FollowUp:
		return "follow-up"
	case Quit:
		return "quit"
	}
	return fmt.Sprintf("DecisionKind(%d)", int(k))
}

// Decision is the user's response to a suggested command.
// Text is set only for FollowUp.
type Decision struct {
	Kind DecisionKind
	Text string
}

// PendingCommand is a suggested command awaiting a decision.
type PendingCommand struct {
	Command string
	Risk    shell.Risk
}

// Option is one entry of a choice prompt.
type Option struct {
	Key   string
	Label string
}

var decisionOptions = []Option{
	{Key: "e", Label: "Execute"},
	{Key: "f", Label: "Follow-up"},
	{Key: "q", Label: "Quit"},
}

const decisionTitle = "What do you want to do?"

// ParseDecision maps an entered choice to a decision kind.
func ParseDecision(s string) (DecisionKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "e", "execute", "y", "yes":
		return Execute, true
	case "f", "follow", "follow-up", "followup":
		return FollowUp, true
	case "q", "quit":
		return Quit, true
	}
	return 0, false
}

// Decide shows the pending command and asks until a valid decision is made.
// End of input at the choice prompt counts as Quit.
func (e *Engine) Decide(ctx context.Context, p PendingCommand) (Decision, error) {
	e.UI.Command(p.Command, p.Risk)
	for {
		answer, err := e.UI.Choose(ctx, decisionTitle, decisionOptions)
		if endOfInput(err) {
			return Decision{Kind: Quit}, nil
		}
		if err != nil {
			return Decision{}, fmt.Errorf("read decision: %w", err)
		}
		kind, ok := ParseDecision(answer)
		if !ok {
			e.UI.Error(fmt.Errorf("unrecognized choice %q, enter e, f or q", answer))
			continue
		}
		if kind != FollowUp {
			return Decision{Kind: kind}, nil
		}

		text, err := e.UI.ReadLine(ctx, followUpPrompt)
		if endOfInput(err) {
			continue
		}
		if err != nil {
			return Decision{}, fmt.Errorf("read follow-up: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		return Decision{Kind: FollowUp, Text: text}, nil
	}
}

func (e *Engine) dispatch(ctx context.Context, c reply.Command) (string, error) {
	p := PendingCommand{Command: c.Command, Risk: shell.Analyze(c.Command)}
	if p.Risk.Risky() {
		e.Logger.Info("risky command suggested", "command", p.Command, "risk", p.Risk.String())
	}
	d, err := e.Decide(ctx, p)
	if err != nil {
		return "", err
	}
	e.Logger.Debug("decision", "kind", d.Kind.String())

	switch d.Kind {
	case Execute:
		e.execute(ctx, p.Command)
		return "", nil
	case FollowUp:
		return d.Text, nil
	default:
		return "", errQuit
	}
}

func (e *Engine) execute(ctx context.Context, command string) {
	var res shell.Result
	err := e.UI.Wait(ctx, "Running "+command, func(ctx context.Context) error {
		var err error
		res, err = e.Executor.Run(ctx, command)
		return err
	})
	if err != nil {
		e.Logger.Warn("command failed", "command", command, "error", err)
		e.UI.Error(err)
		e.note = fmt.Sprintf("Command `%s` could not be run: %v", command, err)
		return
	}
	e.Logger.Info("command finished", "command", command, "exit", res.ExitCode, "duration", res.Duration)
	e.UI.Output(res)
	e.note = outcomeNote(command, res)
}

// outcomeNote describes an executed command for the next user message,
// keeping the tail of long output.
func outcomeNote(command string, res shell.Result) string {
	out := strings.TrimRight(res.Output, "\n")
	if len(out) > maxNoteBytes {
		cut := len(out) - maxNoteBytes
		for cut < len(out) && !utf8.RuneStart(out[cut]) {
			cut++
		}
		out = truncatedMarker + out[cut:]
	}
	if out == "" {
		out = "(no output)"
	}
	return fmt.Sprintf("Output of `%s` (exit %d):\n%s", command, res.ExitCode, out)
}
