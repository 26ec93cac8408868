package audio

import (
	"github.com/caarlos0/env/v11"
)

// ToolPaths names the external binaries the pipeline shells out to.
// Defaults can be overridden from the environment.
type ToolPaths struct {
	FFmpeg  string `env:"NARRATE_FFMPEG"   envDefault:"ffmpeg"`
	FFprobe string `env:"NARRATE_FFPROBE"  envDefault:"ffprobe"`
	GTTS    string `env:"NARRATE_GTTS_CLI" envDefault:"gtts-cli"`
}

// LoadToolPaths reads tool overrides from the environment.
func LoadToolPaths() (ToolPaths, error) {
	return env.ParseAs[ToolPaths]()
}

// Merge returns p with every non-empty field of override applied.
func (p ToolPaths) Merge(override ToolPaths) ToolPaths {
	if override.FFmpeg != "" {
		p.FFmpeg = override.FFmpeg
	}
	if override.FFprobe != "" {
		p.FFprobe = override.FFprobe
	}
	if override.GTTS != "" {
		p.GTTS = override.GTTS
	}
	return p
}
