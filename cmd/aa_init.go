package cmd

import "os"

// This file is named "aa_init.go" so its init runs before the other files in
// the package. Styles in internal/ui already exist by then, but lipgloss
// detects the color profile on first render, so TERM set here still applies.
func init() {
	if os.Getenv("NO_COLOR") != "" {
		return
	}
	term := os.Getenv("TERM")
	if term == "" || term == "linux" || term == "vt100" {
		os.Setenv("TERM", "xterm-256color")
	}
}
