// Package ui is the terminal front end of a session.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/aia-cli/aia/internal/engine"
	"github.com/aia-cli/aia/internal/shell"
)

// ErrCancelled is returned by Wait when the user pressed Ctrl-C.
var ErrCancelled = errors.New("cancelled by user")

const (
	defaultWidth    = 80
	maxPreviewLines = 40
)

type Options struct {
	HistoryFile string
	StdinPiped  bool      // read interactive input from /dev/tty
	Out         io.Writer // default os.Stdout
	In          io.Reader // when set, plain line input is read from it and no TUI is used
}

// Terminal implements engine.UI.
type Terminal struct {
	out         io.Writer
	in          lineInput
	tty         *os.File
	interactive bool
	width       int
	renderer    *glamour.TermRenderer
}

var _ engine.UI = (*Terminal)(nil)

func New(opts Options) *Terminal {
	t := &Terminal{out: opts.Out, width: defaultWidth}
	if t.out == nil {
		t.out = os.Stdout
	}

	outFd := -1
	if f, ok := t.out.(*os.File); ok {
		outFd = int(f.Fd())
		if w, _, err := term.GetSize(outFd); err == nil && w > 0 {
			t.width = w
		}
	}

	wrap := t.width - 4
	if wrap < 20 {
		wrap = 20
	}
	// style detection may query the terminal, so it runs before line input owns it
	t.renderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrap))

	switch {
	case opts.In != nil:
		t.in = newBasicLineInput(opts.In, t.out)
	case opts.StdinPiped:
		tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			t.in = eofInput{}
			break
		}
		t.tty = tty
		t.interactive = outFd >= 0 && term.IsTerminal(outFd) && term.IsTerminal(int(tty.Fd()))
		t.in = t.newLineInput(opts.HistoryFile, tty)
	default:
		t.interactive = outFd >= 0 && term.IsTerminal(outFd) && term.IsTerminal(int(os.Stdin.Fd()))
		t.in = t.newLineInput(opts.HistoryFile, nil)
	}
	return t
}

func (t *Terminal) newLineInput(historyFile string, tty *os.File) lineInput {
	if t.interactive {
		if r, err := newReadlineInput(historyFile, tty, t.out); err == nil {
			return r
		}
	}
	var src io.Reader = os.Stdin
	if tty != nil {
		src = tty
	}
	return newBasicLineInput(src, t.out)
}

func (t *Terminal) Close() error {
	err := t.in.Close()
	if t.tty != nil {
		t.tty.Close()
	}
	return err
}

// Intro prints the session banner.
func (t *Terminal) Intro(model, cwd string) {
	fmt.Fprintln(t.out, banner(model, cwd))
	fmt.Fprintln(t.out)
}

// Outro prints the closing line.
func (t *Terminal) Outro(msg string) {
	fmt.Fprintln(t.out, sDim.Render(msg))
}

func (t *Terminal) ReadLine(_ context.Context, prompt string) (string, error) {
	return t.in.ReadLine(sPrompt.Render(prompt) + " ")
}

// Choose prompts for one of options on the input line and returns what was typed.
func (t *Terminal) Choose(_ context.Context, title string, options []engine.Option) (string, error) {
	keys := make([]string, len(options))
	for i, o := range options {
		keys[i] = optionHint(o)
	}
	return t.in.ReadLine(sPrompt.Render(title) + " " + sHint.Render(strings.Join(keys, " / ")) + " ")
}

// optionHint renders an option as "[e]xecute" when the label starts with the key.
func optionHint(o engine.Option) string {
	if strings.HasPrefix(strings.ToLower(o.Label), strings.ToLower(o.Key)) {
		return "[" + o.Key + "]" + strings.ToLower(o.Label[len(o.Key):])
	}
	return "[" + o.Key + "] " + strings.ToLower(o.Label)
}

// Wait runs fn while a spinner is shown. Ctrl-C cancels the context given to fn.
func (t *Terminal) Wait(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var err error
	if t.interactive {
		err = t.spin(sigCtx, label, fn)
	} else {
		err = fn(sigCtx)
	}
	if sigCtx.Err() != nil && ctx.Err() == nil {
		return ErrCancelled
	}
	return err
}

// spin renders the spinner without reading input, so the line editor keeps
// the terminal and Ctrl-C arrives as SIGINT.
func (t *Terminal) spin(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	p := tea.NewProgram(newWaitModel(label),
		tea.WithOutput(t.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
		tea.WithContext(ctx),
	)
	done := make(chan error, 1)
	go func() {
		err := fn(ctx)
		done <- err
		p.Send(waitDoneMsg{})
	}()
	if _, perr := p.Run(); perr != nil && ctx.Err() == nil {
		err := <-done
		if err == nil {
			err = fmt.Errorf("spinner: %w", perr)
		}
		return err
	}
	return <-done
}

func (t *Terminal) Thought(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	fmt.Fprintln(t.out, sFaint.Render("✻ "+text))
}

func (t *Terminal) Question(text string) {
	fmt.Fprintln(t.out, sInfo.Render("? ")+text)
}

func (t *Terminal) Answer(text string) {
	if t.renderer != nil {
		if out, err := t.renderer.Render(text); err == nil {
			fmt.Fprint(t.out, out)
			return
		}
	}
	fmt.Fprintln(t.out, text)
}

func (t *Terminal) Command(command string, risk shell.Risk) {
	fmt.Fprintln(t.out, sPrompt.Render("$ ")+sCommand.Render(command))
	if risk.Risky() {
		fmt.Fprintln(t.out, sWarn.Render("⚠ "+risk.String()))
	}
}

func (t *Terminal) Output(res shell.Result) {
	for _, line := range preview(res.Output, t.width-2, maxPreviewLines) {
		fmt.Fprintln(t.out, sDim.Render("│ ")+line)
	}
	status := fmt.Sprintf("exit %d (%s)", res.ExitCode, res.Duration.Round(time.Millisecond))
	if res.OK() {
		fmt.Fprintln(t.out, sOK.Render("✔ "+status))
	} else {
		fmt.Fprintln(t.out, sErr.Render("✘ "+status))
	}
}

func (t *Terminal) Error(err error) {
	fmt.Fprintln(t.out, sErr.Render("✘ "+err.Error()))
}

// preview returns the last maxLines lines of output, each cut to width display cells.
func preview(output string, width, maxLines int) []string {
	output = strings.TrimRight(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	if output == "" {
		return nil
	}
	lines := strings.Split(output, "\n")
	var skipped int
	if maxLines > 0 && len(lines) > maxLines {
		skipped = len(lines) - maxLines
		lines = lines[skipped:]
	}
	if width < 10 {
		width = 10
	}
	out := make([]string, 0, len(lines)+1)
	if skipped > 0 {
		out = append(out, sDim.Render(fmt.Sprintf("… %d earlier lines", skipped)))
	}
	for _, l := range lines {
		out = append(out, runewidth.Truncate(l, width, "…"))
	}
	return out
}
