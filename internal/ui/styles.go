package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	sInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	sErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	sOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	sWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	sPrompt  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	sCommand = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	sFaint   = lipgloss.NewStyle().Faint(true)
	sHint    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sLogo    = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	sDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func banner(model, cwd string) string {
	logo := sLogo.Render("AIA Terminal Assistant")
	info := sInfo.Render(fmt.Sprintf("  Model: %s │ Dir: %s", model, cwd))
	hints := sDim.Render("  exit/quit or Ctrl-D to leave │ Ctrl-C cancels a request")
	return logo + "\n" + info + "\n" + hints
}
