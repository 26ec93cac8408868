package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/narrate/internal/tts"
	"github.com/dgnsrekt/narrate/internal/tts/engines"
	"github.com/dgnsrekt/narrate/internal/ttypes"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Short:   "Check the external tools narrate needs",
	Long:    paragraph(fmt.Sprintf("\n%s for gtts-cli, ffmpeg and ffprobe and report which features they enable.", keyword("Probe"))),
	Example: paragraph("narrate doctor"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadCommandSettings()
		if err != nil {
			return err
		}

		caps := tts.ProbeCapabilities(cmd.Context(), s.Tools)
		cacheCfg, err := s.cacheConfig()
		if err != nil {
			return err
		}
		cacheDir := "disabled"
		if cacheCfg != nil {
			cacheDir = cacheCfg.DiskPath
		}

		engine, err := engines.NewGTTSEngine(engines.GTTSConfig{Binary: s.Tools.GTTS})
		if err != nil {
			return err
		}
		defer engine.Close() //nolint:errcheck

		printDoctor(cmd.OutOrStdout(), caps, cacheDir, describeEngine(engine))

		if !caps.CanSynthesize() {
			return errors.New("gtts-cli is required to narrate documents")
		}
		return nil
	},
}

// engineChecker is the part of a speech engine doctor reports on.
type engineChecker interface {
	Validate() error
	GetInfo() ttypes.EngineInfo
}

// describeEngine runs the engine's self check and returns a one-line
// report.
func describeEngine(e engineChecker) string {
	err := e.Validate()
	info := e.GetInfo()
	if err != nil {
		first, _, _ := strings.Cut(err.Error(), "\n")
		return fmt.Sprintf("%s %s engine: %s", missMark, info.Name, first)
	}
	return fmt.Sprintf("%s %s engine %s", okMark, info.Name, dimStyle(info.Version))
}

func printDoctor(w io.Writer, caps tts.Capabilities, cacheDir, engine string) {
	fmt.Fprintln(w, renderCapabilities(caps))
	fmt.Fprintln(w, renderFeatures(caps, cacheDir))
	fmt.Fprintln(w, engine)

	seen := map[string]bool{}
	for _, tool := range caps.Tools() {
		if tool.Available || tool.Guidance == "" || seen[tool.Guidance] {
			continue
		}
		seen[tool.Guidance] = true
		fmt.Fprintf(w, "\n%s\n%s\n", keyword(tool.Name), tool.Guidance)
	}
}

func renderCapabilities(caps tts.Capabilities) string {
	rows := make([][]string, 0, len(caps.Tools()))
	for _, tool := range caps.Tools() {
		status := okMark + " found"
		location := tool.Path
		if !tool.Available {
			status = missMark + " missing"
			location = tool.Command
		}
		rows = append(rows, []string{tool.Name, status, location, tool.Version})
	}
	return renderTable([]string{"Tool", "Status", "Path", "Version"}, rows)
}

func renderFeatures(caps tts.Capabilities, cacheDir string) string {
	mark := func(ok bool) string {
		if ok {
			return okMark + " available"
		}
		return missMark + " unavailable"
	}
	rows := [][]string{
		{"Narration", mark(caps.CanSynthesize()), "gtts-cli"},
		{"Rate adjustment", mark(caps.CanStretch()), "ffmpeg"},
		{"Accurate captions", mark(caps.HasToolchain()), "ffmpeg, ffprobe"},
		{"Estimated captions", mark(caps.CanSynthesize()), "gtts-cli"},
		{"Clip cache", cacheDir, ""},
	}
	return renderTable([]string{"Feature", "Status", "Needs"}, rows)
}
