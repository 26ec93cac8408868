package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/narrate/internal/tts"
	"github.com/dustin/go-humanize"
)

var (
	keyword = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575")).
		Render

	paragraph = lipgloss.NewStyle().
			Width(78).
			Padding(0, 0, 0, 2).
			Render

	okMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render("✓")
	missMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Render("✗")
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ECFD65")).Render
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}).Render
)

// printSummary writes the artifacts produced by one conversion.
func printSummary(w io.Writer, res *tts.Result) {
	stretched := ""
	if res.Stretched {
		stretched = dimStyle(" (time-stretched)")
	}
	fmt.Fprintf(w, "%s %s %s%s\n", okMark, res.AudioPath, dimStyle(humanize.Bytes(uint64(res.AudioSize))), stretched) //nolint:gosec

	if res.CaptionPath != "" {
		fmt.Fprintf(w, "%s %s %s\n", okMark, res.CaptionPath,
			dimStyle(fmt.Sprintf("%d %s captions", res.Captions, res.Mode)))
	}
	if res.Failed > 0 {
		fmt.Fprintln(w, warnStyle(fmt.Sprintf("  %d of %d sentences failed to synthesize", res.Failed, res.Sentences)))
	}
	if res.StretchErr != nil {
		fmt.Fprintln(w, warnStyle("  rate adjustment failed, audio kept at natural speed"))
	}
}
