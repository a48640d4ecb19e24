// Package agent assembles the system instructions sent with every request.
package agent

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"
	"strings"
)

//go:embed prompt.md
var DefaultPrompt string

type Agent struct {
	Shell        string
	OS           string
	SystemPrompt string // assembled prompt (base + environment)
}

// Build loads the base prompt from promptFile, or the embedded default when
// promptFile is empty, and appends the target shell and OS.
func Build(promptFile, shellName string) (*Agent, error) {
	base := DefaultPrompt
	if promptFile != "" {
		data, err := os.ReadFile(promptFile)
		if err != nil {
			return nil, fmt.Errorf("load system prompt: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, fmt.Errorf("system prompt %s is empty", promptFile)
		}
		base = string(data)
	}
	if shellName == "" {
		shellName = "bash"
	}
	if shellName == "builtin" {
		shellName = "POSIX sh (bash dialect, no external shell)"
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(base, "\n"))
	sb.WriteString("\n\n## Environment\n")
	fmt.Fprintf(&sb, "- Shell: %s\n", shellName)
	fmt.Fprintf(&sb, "- OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	return &Agent{
		Shell:        shellName,
		OS:           runtime.GOOS,
		SystemPrompt: sb.String(),
	}, nil
}

// System joins the instructions with the rendered working context.
func (a *Agent) System(context string) string {
	if context == "" {
		return a.SystemPrompt
	}
	return a.SystemPrompt + "\n\n## Context\n" + context
}
