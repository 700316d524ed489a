// Package ui provides terminal styling for ifj-migrate output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)

	// CategoryStyle for section headers - bold with accent color
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// IconPass marks a successful check.
const IconPass = "✓"

// DetailIndent prefixes per-chunk and per-entity progress lines.
const DetailIndent = "    "

// SeparatorHeavy frames summaries.
const SeparatorHeavy = "================"

// Marker returns the progress marker for a nesting depth: ">", ">>", ">>>"
// when a step starts and "<", "<<", "<<<" when it ends.
func Marker(depth int, done bool) string {
	depth = max(depth, 1)
	if done {
		return strings.Repeat("<", depth)
	}
	return strings.Repeat(">", depth)
}

// RenderStart renders the opening line of a step.
func RenderStart(depth int, msg string) string {
	style := AccentStyle
	if depth <= 1 {
		style = CategoryStyle
	}
	return style.Render(Marker(depth, false)) + " " + msg
}

// RenderDone renders the closing line of a step.
func RenderDone(depth int, msg string) string {
	return PassStyle.Render(Marker(depth, true)) + " " + msg
}

// RenderDetail renders an indented progress line.
func RenderDetail(msg string) string {
	return DetailIndent + MutedStyle.Render(msg)
}

// RenderCategory renders a summary header.
func RenderCategory(s string) string {
	return CategoryStyle.Render(s)
}

// RenderSeparator renders the heavy separator in muted color.
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorHeavy)
}

// RenderFail renders text with fail (red) styling, e.g. the "Error:" prefix
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderWarn renders text with warning (yellow) styling, e.g. the "Warning:" prefix
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderPassIcon renders the pass icon with styling
func RenderPassIcon() string {
	return PassStyle.Render(IconPass)
}
