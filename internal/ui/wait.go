package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type waitDoneMsg struct{}

// waitModel shows a spinner until the work finishes. It never reads keys; Ctrl-C arrives as SIGINT.
type waitModel struct {
	spinner spinner.Model
	label   string
	done    bool
}

func newWaitModel(label string) waitModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return waitModel{spinner: sp, label: label}
}

func (m waitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case waitDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + sFaint.Render(" "+m.label)
}
