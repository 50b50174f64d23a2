// Package ui provides the terminal presentation layer: the shared lipgloss
// styles used by CLI output and the live device-state monitor TUI.
package ui
