package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Shared terminal styles.
var (
	colorCyan  = lipgloss.Color("6")
	colorGreen = lipgloss.Color("2")
	colorRed   = lipgloss.Color("1")

	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleDim         = lipgloss.NewStyle().Faint(true)
	styleSuccess     = lipgloss.NewStyle().Foreground(colorGreen)
	styleError       = lipgloss.NewStyle().Foreground(colorRed)
	styleBold        = lipgloss.NewStyle().Bold(true)
)

// printSuccess writes a green checkmark line to stderr.
func printSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styleSuccess.Render("✓"), fmt.Sprintf(format, args...))
}

// printError writes a red cross line to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", styleError.Render("✗"), fmt.Sprintf(format, args...))
}

// isTerminal reports whether stderr is attached to a terminal, deciding
// whether interactive progress output makes sense.
func isTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
