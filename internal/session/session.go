package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aia-cli/aia/internal/reply"
)

// Context is the startup snapshot of the working directory and piped input.
// It is never modified after Build.
type Context struct {
	Cwd        string
	Entries    []string
	PipedInput string // empty when stdin was a terminal or empty
}

// HasPipedInput reports whether text was piped on stdin.
func (c Context) HasPipedInput() bool {
	return c.PipedInput != ""
}

// Render formats the context as the text block sent to the model.
func (c Context) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current directory: %s\n", c.Cwd)
	fmt.Fprintf(&sb, "Files in directory: %s", strings.Join(c.Entries, ", "))
	if c.HasPipedInput() {
		sb.WriteString("\n\nPiped input:\n")
		sb.WriteString(c.PipedInput)
	}
	return sb.String()
}

// Turn is one user message and the assistant reply it produced.
type Turn struct {
	User  string
	Raw   string // assistant text as received, replayed to the model
	Reply reply.Reply
}

// Session holds the conversation for one process lifetime.
type Session struct {
	ID      string
	Context Context
	turns   []Turn
}

func New(ctx Context) *Session {
	return &Session{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Context: ctx,
	}
}

// Append records a completed turn. It is the only way history changes.
func (s *Session) Append(t Turn) {
	s.turns = append(s.turns, t)
}

// Turns returns a copy of the history in chronological order.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) Len() int {
	return len(s.turns)
}
