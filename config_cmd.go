package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# speech language tag passed to gtts-cli
language: "zh-CN"
# playback rate, greater than 0 and at most 4
rate: 1.0
# write an LRC caption file next to the audio
subtitle: false
# time captions from the rendered audio (needs ffmpeg and ffprobe)
accurate: false
# include files ignored by git when converting a directory
all: false

gtts:
  # gtts-cli command or path (default $NARRATE_GTTS_CLI or "gtts-cli")
  # binary: "gtts-cli"
  slow: false
  # top-level domain of the Google Translate host, e.g. "com.au"
  tld: ""
  requests_per_minute: 50
  timeout: "30s"

# ffmpeg and ffprobe commands or paths (default $NARRATE_FFMPEG and
# $NARRATE_FFPROBE, then the plain command names)
# toolchain:
#   ffmpeg: "ffmpeg"
#   ffprobe: "ffprobe"

synthesis:
  # sentences that fail to synthesize: "filler" keeps a silent gap,
  # "drop" removes them from audio and captions
  failure_policy: "filler"
  # seconds of silence used by the filler policy
  failure_penalty: 2.0

estimate:
  # divide punctuation pauses by the rate as well
  scale_pauses: false

cache:
  enabled: true
  # dir: "~/.cache/narrate/clips"
  # size limit in MB
  max_size: 100
  ttl_days: 7
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the narrate config file",
	Long:    paragraph(fmt.Sprintf("\n%s the narrate config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("narrate config\nnarrate config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		path, err := ensureConfigFile(configFile)
		if err != nil {
			return err
		}

		c, err := editor.Cmd("narrate", path)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", path)
		return nil
	},
}

// ensureConfigFile returns the config file to edit, writing the commented
// default there first if it does not exist yet.
func ensureConfigFile(path string) (string, error) {
	if path == "" {
		path = viper.GetViper().ConfigFileUsed()
	}
	if path == "" {
		path = defaultConfigFile
	}
	if path == "" {
		return "", errors.New("could not determine a config file location")
	}
	path, err := expandPath(path)
	if err != nil {
		return "", err
	}

	if ext := filepath.Ext(path); ext != ".yaml" && ext != ".yml" {
		return "", fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return "", fmt.Errorf("unable create directory: %w", err)
		}

		if err := os.WriteFile(path, []byte(defaultConfig), 0o600); err != nil {
			return "", fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return "", fmt.Errorf("unable to stat config file: %w", err)
	}
	return path, nil
}
