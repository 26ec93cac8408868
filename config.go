package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/internal/tts"
	"github.com/dgnsrekt/narrate/internal/tts/engines"
	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

const bytesPerMB = 1024 * 1024

// settings is the resolved configuration for one run.
type settings struct {
	Language string
	Rate     float64
	Subtitle bool
	Accurate bool
	Output   string
	All      bool
	Watch    bool

	Tools          audio.ToolPaths
	Slow           bool
	TLD            string
	RequestsPerMin int
	Timeout        time.Duration

	FailurePolicy  tts.FailurePolicy
	FailurePenalty float64
	ScalePauses    bool

	CacheEnabled bool
	CacheDir     string
	CacheMaxMB   int
	CacheTTLDays int
}

// setDefaults registers every configuration default on v. Tool binaries
// have no default here so the environment defaults in audio.ToolPaths apply.
func setDefaults(v *viper.Viper) {
	v.SetDefault("language", engines.DefaultLanguage)
	v.SetDefault("rate", tts.DefaultRate)
	v.SetDefault("subtitle", false)
	v.SetDefault("accurate", false)
	v.SetDefault("output", "")
	v.SetDefault("all", false)
	v.SetDefault("watch", false)

	v.SetDefault("gtts.slow", false)
	v.SetDefault("gtts.tld", "")
	v.SetDefault("gtts.requests_per_minute", engines.DefaultRequestsPerMinute)
	v.SetDefault("gtts.timeout", engines.DefaultTimeout)

	v.SetDefault("synthesis.failure_policy", string(tts.FailureFiller))
	v.SetDefault("synthesis.failure_penalty", tts.DefaultFailurePenalty)
	v.SetDefault("estimate.scale_pauses", false)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.max_size", 100)
	v.SetDefault("cache.ttl_days", 7)
}

// loadSettings resolves and validates the configuration held by v.
func loadSettings(v *viper.Viper) (settings, error) {
	s := settings{
		Language:       strings.TrimSpace(v.GetString("language")),
		Rate:           v.GetFloat64("rate"),
		Subtitle:       v.GetBool("subtitle"),
		Accurate:       v.GetBool("accurate"),
		All:            v.GetBool("all"),
		Watch:          v.GetBool("watch"),
		Slow:           v.GetBool("gtts.slow"),
		TLD:            v.GetString("gtts.tld"),
		RequestsPerMin: v.GetInt("gtts.requests_per_minute"),
		Timeout:        v.GetDuration("gtts.timeout"),
		FailurePenalty: v.GetFloat64("synthesis.failure_penalty"),
		ScalePauses:    v.GetBool("estimate.scale_pauses"),
		CacheEnabled:   v.GetBool("cache.enabled"),
		CacheMaxMB:     v.GetInt("cache.max_size"),
		CacheTTLDays:   v.GetInt("cache.ttl_days"),
	}

	if err := tts.ValidateRate(s.Rate); err != nil {
		return s, err
	}
	if s.Language == "" {
		return s, fmt.Errorf("language cannot be empty")
	}

	policy, err := tts.ParseFailurePolicy(v.GetString("synthesis.failure_policy"))
	if err != nil {
		return s, err
	}
	s.FailurePolicy = policy

	if s.FailurePenalty <= 0 {
		return s, fmt.Errorf("synthesis.failure_penalty must be positive, got %g", s.FailurePenalty)
	}
	if s.CacheMaxMB < 1 || s.CacheMaxMB > 10000 {
		return s, fmt.Errorf("cache.max_size must be between 1 and 10000 MB, got %d", s.CacheMaxMB)
	}

	if s.Output, err = expandPath(v.GetString("output")); err != nil {
		return s, err
	}
	if s.CacheDir, err = expandPath(v.GetString("cache.dir")); err != nil {
		return s, err
	}

	tools, err := audio.LoadToolPaths()
	if err != nil {
		return s, fmt.Errorf("error parsing tool environment: %w", err)
	}
	override := audio.ToolPaths{
		FFmpeg:  v.GetString("toolchain.ffmpeg"),
		FFprobe: v.GetString("toolchain.ffprobe"),
		GTTS:    v.GetString("gtts.binary"),
	}
	for _, p := range []*string{&override.FFmpeg, &override.FFprobe, &override.GTTS} {
		if *p, err = expandPath(*p); err != nil {
			return s, err
		}
	}
	s.Tools = tools.Merge(override)

	return s, nil
}

// loadCommandSettings resolves settings for subcommands, which skip the
// root command's PreRunE.
func loadCommandSettings() (settings, error) {
	if configFile != "" {
		if err := loadExplicitConfig(configFile); err != nil {
			return settings{}, err
		}
	}
	return loadSettings(viper.GetViper())
}

// cacheConfig returns the clip cache configuration, or nil when caching
// is disabled.
func (s settings) cacheConfig() (*cache.Config, error) {
	if !s.CacheEnabled {
		return nil, nil
	}

	cfg := cache.DefaultConfig()
	cfg.DiskCapacity = int64(s.CacheMaxMB) * bytesPerMB
	cfg.TTLDays = s.CacheTTLDays
	cfg.DiskPath = s.CacheDir
	if cfg.DiskPath == "" {
		dir, err := gap.NewScope(gap.User, "narrate").CacheDir()
		if err != nil {
			return nil, fmt.Errorf("could not find cache directory: %w", err)
		}
		cfg.DiskPath = filepath.Join(dir, "clips")
	}
	return cfg, nil
}

// options returns the conversion options for one input document.
func (s settings) options(input string) tts.Options {
	return tts.Options{
		Input:    input,
		Output:   s.Output,
		Language: s.Language,
		Rate:     s.Rate,
		Subtitle: s.Subtitle,
		Accurate: s.Accurate,
	}
}

func expandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("unable to expand path %q: %w", p, err)
	}
	return expanded, nil
}

// configDirs lists the directories searched for narrate.yml, highest
// priority first.
func configDirs() ([]string, error) {
	dirs, err := gap.NewScope(gap.User, "narrate").ConfigDirs()
	if err != nil {
		return nil, err
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "narrate")}, dirs...)
	}

	if c := os.Getenv("NARRATE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// tryLoadConfigFromDefaultPlaces reads narrate.yml from the first config
// dir that has one. Nothing is written: the file is only created by
// `narrate config`.
func tryLoadConfigFromDefaultPlaces() {
	dirs, err := configDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("narrate")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("narrate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		defaultConfigFile = used
		return
	}

	if len(dirs) > 0 {
		defaultConfigFile = filepath.Join(dirs[0], "narrate.yml")
	}
}

// loadExplicitConfig reads the file named by --config, replacing whatever
// was found in the default places.
func loadExplicitConfig(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	viper.SetConfigFile(expanded)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file %s: %w", expanded, err)
	}
	log.Debug("Using configuration file", "path", expanded)
	return nil
}
