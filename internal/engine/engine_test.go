package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aia-cli/aia/internal/provider"
	"github.com/aia-cli/aia/internal/reply"
	"github.com/aia-cli/aia/internal/session"
	"github.com/aia-cli/aia/internal/shell"
)

type fakeUI struct {
	lines   []string // returned by ReadLine in order; io.EOF when exhausted
	choices []string // returned by Choose in order; io.EOF when exhausted

	prompts   []string
	chooses   int
	thoughts  []string
	questions []string
	answers   []string
	commands  []string
	outputs   []shell.Result
	errs      []error
}

func (u *fakeUI) ReadLine(_ context.Context, prompt string) (string, error) {
	u.prompts = append(u.prompts, prompt)
	if len(u.lines) == 0 {
		return "", io.EOF
	}
	l := u.lines[0]
	u.lines = u.lines[1:]
	return l, nil
}

func (u *fakeUI) Choose(_ context.Context, _ string, _ []Option) (string, error) {
	u.chooses++
	if len(u.choices) == 0 {
		return "", io.EOF
	}
	c := u.choices[0]
	u.choices = u.choices[1:]
	return c, nil
}

func (u *fakeUI) Wait(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

func (u *fakeUI) Thought(t string) { u.thoughts = append(u.thoughts, t) }
func (u *fakeUI) Question(q string) { u.questions = append(u.questions, q) }
func (u *fakeUI) Answer(a string) { u.answers = append(u.answers, a) }
func (u *fakeUI) Command(c string, _ shell.Risk) { u.commands = append(u.commands, c) }
func (u *fakeUI) Output(r shell.Result) { u.outputs = append(u.outputs, r) }
func (u *fakeUI) Error(err error) { u.errs = append(u.errs, err) }

type result struct {
	raw string
	err error
}

type fakeProvider struct {
	results  []result
	requests []provider.Request
}

func (p *fakeProvider) Complete(_ context.Context, req provider.Request) (string, error) {
	p.requests = append(p.requests, req)
	if len(p.results) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r.raw, r.err
}

type fakeExecutor struct {
	ran    []string
	output string
	exit   int
	err    error
}

func (x *fakeExecutor) Run(_ context.Context, command string) (shell.Result, error) {
	x.ran = append(x.ran, command)
	return shell.Result{Command: command, Output: x.output, ExitCode: x.exit}, x.err
}

func ok(raw string) result { return result{raw: raw} }

func command(c string) result {
	return ok(fmt.Sprintf("[THOUGHT] run it [JSON] {\"type\":\"command\",\"command\":%q}", c))
}

func question(q string) result {
	return ok(fmt.Sprintf("[THOUGHT] unclear [JSON] {\"type\":\"question\",\"question\":%q}", q))
}

func answer(a string) result {
	return ok(fmt.Sprintf("[THOUGHT] known [JSON] {\"type\":\"answer\",\"answer\":%q}", a))
}

func newEngine(ui *fakeUI, p *fakeProvider, x *fakeExecutor) *Engine {
	s := session.New(session.Context{Cwd: "/work", Entries: []string{"go.mod", "main.go"}})
	return New("system", "test-model", p, x, ui, s)
}

func TestQuestionThenAnswerCarriesHistory(t *testing.T) {
	ui := &fakeUI{lines: []string{"the blue one"}}
	p := &fakeProvider{results: []result{question("Which file?"), answer("It is main.go")}}
	e := newEngine(ui, p, &fakeExecutor{})

	if code := e.Run(context.Background(), "find the file"); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if e.Session.Len() != 2 {
		t.Fatalf("history length = %d, want 2", e.Session.Len())
	}
	if len(p.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(p.requests))
	}
	second := p.requests[1]
	if len(second.History) != 2 {
		t.Fatalf("turn 2 history = %+v", second.History)
	}
	if second.History[0].Role != "user" || second.History[0].Content != "find the file" {
		t.Errorf("history[0] = %+v", second.History[0])
	}
	if second.History[1].Role != "assistant" || !strings.Contains(second.History[1].Content, "Which file?") {
		t.Errorf("history[1] = %+v", second.History[1])
	}
	if second.Prompt != "the blue one" || second.System != "system" || second.Model != "test-model" {
		t.Errorf("request = %+v", second)
	}
	if len(ui.questions) != 1 || len(ui.answers) != 1 || ui.answers[0] != "It is main.go" {
		t.Errorf("questions = %v answers = %v", ui.questions, ui.answers)
	}
	if len(ui.thoughts) != 2 {
		t.Errorf("thoughts = %v", ui.thoughts)
	}
}

func TestHistoryGrowsOnlyOnParseSuccess(t *testing.T) {
	ui := &fakeUI{lines: []string{"a", "b", "c", "d", "e"}}
	p := &fakeProvider{results: []result{
		answer("one"),
		ok("no markers at all"),
		{err: errors.New("connection reset")},
		ok(`[THOUGHT] x [JSON] {"type":"shrug"}`),
		answer("two"),
	}}
	e := newEngine(ui, p, &fakeExecutor{})

	if code := e.Run(context.Background(), ""); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if e.Session.Len() != 2 {
		t.Errorf("history length = %d, want 2", e.Session.Len())
	}
	if len(ui.errs) != 3 {
		t.Fatalf("errors surfaced = %v", ui.errs)
	}
	if !errors.Is(ui.errs[0], reply.ErrMissingThought) {
		t.Errorf("errs[0] = %v", ui.errs[0])
	}
	if !errors.Is(ui.errs[1], ErrModelRequest) {
		t.Errorf("errs[1] = %v", ui.errs[1])
	}
	if !errors.Is(ui.errs[2], reply.ErrUnknownType) {
		t.Errorf("errs[2] = %v", ui.errs[2])
	}
	if last := p.requests[4]; len(last.History) != 2 {
		t.Errorf("failed turns leaked into history: %+v", last.History)
	}
}

func TestQuitTokens(t *testing.T) {
	for _, in := range []string{"exit", "quit", "  QUIT  ", "Exit"} {
		ui := &fakeUI{lines: []string{in, "never read"}}
		p := &fakeProvider{}
		if code := newEngine(ui, p, &fakeExecutor{}).Run(context.Background(), ""); code != 0 {
			t.Errorf("%q: exit code = %d", in, code)
		}
		if len(p.requests) != 0 {
			t.Errorf("%q: model was called", in)
		}
		if len(ui.lines) != 1 {
			t.Errorf("%q: kept reading input after quit", in)
		}
	}
}

func TestEmptyInputReprompts(t *testing.T) {
	ui := &fakeUI{lines: []string{"", "   ", "hello"}}
	p := &fakeProvider{results: []result{answer("hi")}}
	e := newEngine(ui, p, &fakeExecutor{})
	e.Run(context.Background(), "")
	if len(p.requests) != 1 || p.requests[0].Prompt != "hello" {
		t.Fatalf("requests = %+v", p.requests)
	}
	if e.Session.Len() != 1 {
		t.Errorf("history length = %d", e.Session.Len())
	}
}

func TestInterruptEndsSession(t *testing.T) {
	ui := &interruptUI{fakeUI: &fakeUI{}}
	if code := newEngine(ui.fakeUI, &fakeProvider{}, &fakeExecutor{}).Run(context.Background(), ""); code != 0 {
		t.Fatalf("EOF exit code = %d", code)
	}
	e := newEngine(ui.fakeUI, &fakeProvider{}, &fakeExecutor{})
	e.UI = ui
	if code := e.Run(context.Background(), ""); code != 0 {
		t.Fatalf("interrupt exit code = %d", code)
	}
}

type interruptUI struct{ *fakeUI }

func (u *interruptUI) ReadLine(context.Context, string) (string, error) { return "", ErrInterrupt }

type brokenUI struct{ *fakeUI }

func (u *brokenUI) ReadLine(context.Context, string) (string, error) {
	return "", errors.New("tty gone")
}

func TestInputFailureExitsNonZero(t *testing.T) {
	ui := &brokenUI{fakeUI: &fakeUI{}}
	e := newEngine(ui.fakeUI, &fakeProvider{}, &fakeExecutor{})
	e.UI = ui
	if code := e.Run(context.Background(), ""); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}

func TestExecuteDoesNotMutateHistory(t *testing.T) {
	ui := &fakeUI{choices: []string{"e"}, lines: []string{"what next?"}}
	p := &fakeProvider{results: []result{command("ls -la"), answer("done")}}
	x := &fakeExecutor{output: "go.mod\nmain.go\n", exit: 0}
	e := newEngine(ui, p, x)

	e.Run(context.Background(), "list files")

	if len(x.ran) != 1 || x.ran[0] != "ls -la" {
		t.Fatalf("executed = %v", x.ran)
	}
	if len(ui.commands) != 1 || ui.commands[0] != "ls -la" {
		t.Errorf("commands shown = %v", ui.commands)
	}
	if len(ui.outputs) != 1 {
		t.Errorf("outputs shown = %d", len(ui.outputs))
	}
	if e.Session.Len() != 2 {
		t.Fatalf("history length = %d, want 2 (one per model reply)", e.Session.Len())
	}
	second := p.requests[1]
	if len(second.History) != 2 {
		t.Errorf("history after execute = %d messages", len(second.History))
	}
	if !strings.HasPrefix(second.Prompt, "Output of `ls -la` (exit 0):\ngo.mod\nmain.go") {
		t.Errorf("prompt = %q", second.Prompt)
	}
	if !strings.HasSuffix(second.Prompt, "\n\nwhat next?") {
		t.Errorf("prompt = %q", second.Prompt)
	}
	if p.requests[0].Prompt != "list files" {
		t.Errorf("first prompt = %q", p.requests[0].Prompt)
	}
}

func TestExecutionErrorIsNonFatal(t *testing.T) {
	ui := &fakeUI{choices: []string{"yes"}, lines: []string{"and now?"}}
	p := &fakeProvider{results: []result{command("sleep 999"), answer("ok")}}
	x := &fakeExecutor{err: fmt.Errorf("%w: timed out", shell.ErrExecution)}
	e := newEngine(ui, p, x)

	if code := e.Run(context.Background(), "wait"); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if len(ui.errs) != 1 || !errors.Is(ui.errs[0], shell.ErrExecution) {
		t.Fatalf("errs = %v", ui.errs)
	}
	if !strings.Contains(p.requests[1].Prompt, "could not be run") {
		t.Errorf("prompt = %q", p.requests[1].Prompt)
	}
}

func TestFollowUpRoutesTextWithoutReprompt(t *testing.T) {
	ui := &fakeUI{choices: []string{"f"}, lines: []string{"only in src/, please"}}
	p := &fakeProvider{results: []result{command("rm *.tmp"), answer("fine")}}
	x := &fakeExecutor{}
	e := newEngine(ui, p, x)

	e.Run(context.Background(), "clean up")

	if len(x.ran) != 0 {
		t.Fatalf("follow-up executed %v", x.ran)
	}
	if len(p.requests) != 2 || p.requests[1].Prompt != "only in src/, please" {
		t.Fatalf("requests = %+v", p.requests)
	}
	if len(p.requests[1].History) != 2 {
		t.Errorf("command reply missing from history: %+v", p.requests[1].History)
	}
	var inputPrompts int
	for _, pr := range ui.prompts {
		if pr == inputPrompt {
			inputPrompts++
		}
	}
	// one read after the final answer, none between the follow-up and the second request
	if inputPrompts != 1 {
		t.Errorf("input prompts = %v", ui.prompts)
	}
}

func TestFollowUpTextIsNotAQuitToken(t *testing.T) {
	ui := &fakeUI{choices: []string{"f"}, lines: []string{"quit"}}
	p := &fakeProvider{results: []result{command("make"), answer("stopping")}}
	newEngine(ui, p, &fakeExecutor{}).Run(context.Background(), "build")
	if len(p.requests) != 2 || p.requests[1].Prompt != "quit" {
		t.Fatalf("requests = %+v", p.requests)
	}
}

func TestQuitDecision(t *testing.T) {
	ui := &fakeUI{choices: []string{"q"}, lines: []string{"never read"}}
	p := &fakeProvider{results: []result{command("ls")}}
	x := &fakeExecutor{}
	e := newEngine(ui, p, x)
	if code := e.Run(context.Background(), "go"); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if len(x.ran) != 0 || len(ui.lines) != 1 {
		t.Errorf("quit did not terminate: ran=%v lines=%v", x.ran, ui.lines)
	}
	if e.Session.Len() != 1 {
		t.Errorf("history length = %d", e.Session.Len())
	}
}

func TestDecideRepromptsOnUnrecognized(t *testing.T) {
	ui := &fakeUI{choices: []string{"maybe", "", "f", "f", "E"}, lines: []string{"  "}}
	e := newEngine(ui, &fakeProvider{}, &fakeExecutor{})

	d, err := e.Decide(context.Background(), PendingCommand{Command: "ls"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Kind != Execute {
		t.Errorf("decision = %v, want execute", d.Kind)
	}
	if ui.chooses != 5 {
		t.Errorf("choice prompts = %d, want 5", ui.chooses)
	}
	if len(ui.errs) != 2 {
		t.Errorf("errors = %v, want two unrecognized choices", ui.errs)
	}
}

func TestDecideEOFIsQuit(t *testing.T) {
	e := newEngine(&fakeUI{}, &fakeProvider{}, &fakeExecutor{})
	d, err := e.Decide(context.Background(), PendingCommand{Command: "ls"})
	if err != nil || d.Kind != Quit {
		t.Fatalf("Decide = %+v, %v", d, err)
	}
}

func TestParseDecision(t *testing.T) {
	tests := map[string]DecisionKind{
		"e": Execute, "Execute": Execute, "y": Execute, "yes": Execute,
		"f": FollowUp, "follow": FollowUp, "Follow-up": FollowUp,
		"q": Quit, " QUIT ": Quit,
	}
	for in, want := range tests {
		got, ok := ParseDecision(in)
		if !ok || got != want {
			t.Errorf("ParseDecision(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "n", "no", "exec"} {
		if _, ok := ParseDecision(in); ok {
			t.Errorf("ParseDecision(%q) accepted", in)
		}
	}
}

func TestOutcomeNoteTruncates(t *testing.T) {
	long := strings.Repeat("é", maxNoteBytes) // two bytes per rune
	note := outcomeNote("cat big", shell.Result{Output: long + "END\n", ExitCode: 1})
	if !strings.HasPrefix(note, "Output of `cat big` (exit 1):\n"+truncatedMarker) {
		t.Errorf("note header = %q", note[:60])
	}
	if !strings.HasSuffix(note, "END") {
		t.Error("tail of output not kept")
	}
	body := strings.TrimPrefix(note, "Output of `cat big` (exit 1):\n"+truncatedMarker)
	if len(body) > maxNoteBytes {
		t.Errorf("body = %d bytes", len(body))
	}
	if !strings.HasPrefix(body, "é") {
		t.Error("truncation split a rune")
	}

	if got := outcomeNote("true", shell.Result{}); got != "Output of `true` (exit 0):\n(no output)" {
		t.Errorf("empty note = %q", got)
	}
}

func TestHistoryWindow(t *testing.T) {
	ui := &fakeUI{lines: []string{"2", "3"}}
	p := &fakeProvider{results: []result{answer("a"), answer("b"), answer("c")}}
	e := newEngine(ui, p, &fakeExecutor{})
	e.Limits = session.Limits{MaxTurns: 1}

	e.Run(context.Background(), "1")

	if got := len(p.requests[2].History); got != 2 {
		t.Errorf("windowed history = %d messages, want 2", got)
	}
	if p.requests[2].History[0].Content != "2" {
		t.Errorf("window kept %q, want newest turn", p.requests[2].History[0].Content)
	}
	if e.Session.Len() != 3 {
		t.Errorf("session length = %d; window must not drop stored turns", e.Session.Len())
	}
}
