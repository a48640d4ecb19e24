// Package reply parses the model's two-section response into a typed intent.
//
// A well-formed response looks like:
//
//	[THOUGHT]
//	free text explanation
//
//	[JSON]
//	{"type":"command","command":"ls -la"}
package reply

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	ThoughtMarker = "[THOUGHT]"
	JSONMarker    = "[JSON]"
)

var (
	ErrMissingThought   = errors.New("missing " + ThoughtMarker + " section")
	ErrMissingJSON      = errors.New("missing " + JSONMarker + " section")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownType      = errors.New("unknown reply type")
	ErrMissingField     = errors.New("missing field")
)

// Intent is one of Command, Question or Answer.
type Intent interface {
	intent()
}

type Command struct {
	Command string
}

type Question struct {
	Question string
}

type Answer struct {
	Answer string
}

func (Command) intent() {}
func (Question) intent() {}
func (Answer) intent() {}

// Reply is a parsed model response. Thought is display-only.
type Reply struct {
	Thought string
	Intent  Intent
}

// Kind returns the wire name of the reply's intent.
func (r Reply) Kind() string {
	switch r.Intent.(type) {
	case Command:
		return "command"
	case Question:
		return "question"
	case Answer:
		return "answer"
	}
	return ""
}

// payload keeps raw values so a field of the wrong JSON type is reported
// against the field, not as a decode failure.
type payload map[string]json.RawMessage

// str returns the named field when it is present and a JSON string.
func (p payload) str(name string) (string, bool) {
	raw, ok := p[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Parse converts raw model output into a Reply. Errors wrap one of the Err* sentinels.
func Parse(raw string) (Reply, error) {
	ti := strings.Index(raw, ThoughtMarker)
	if ti < 0 {
		return Reply{}, ErrMissingThought
	}
	rest := raw[ti+len(ThoughtMarker):]
	ji := strings.Index(rest, JSONMarker)
	if ji < 0 {
		return Reply{}, ErrMissingJSON
	}
	thought := strings.TrimSpace(rest[:ji])
	body := stripFences(rest[ji+len(JSONMarker):])

	var p payload
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if p == nil {
		return Reply{}, fmt.Errorf("%w: payload is not an object", ErrMalformedPayload)
	}

	typ, ok := p.str("type")
	if !ok {
		if raw, has := p["type"]; has {
			return Reply{}, fmt.Errorf("%w: %s", ErrUnknownType, raw)
		}
		return Reply{}, fmt.Errorf("%w: type is absent", ErrUnknownType)
	}
	switch typ {
	case "command", "question", "answer":
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	text, ok := p.str(typ)
	if !ok || strings.TrimSpace(text) == "" {
		return Reply{}, fmt.Errorf("%w: %s", ErrMissingField, typ)
	}

	var intent Intent
	switch typ {
	case "command":
		intent = Command{Command: text}
	case "question":
		intent = Question{Question: text}
	default:
		intent = Answer{Answer: text}
	}
	return Reply{Thought: thought, Intent: intent}, nil
}

// stripFences removes markdown code fences the model sometimes wraps around the payload.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:] // language tag, e.g. ```json
	} else if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:] // ```json on the same line as the object
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
