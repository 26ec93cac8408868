package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/narrate/internal/tts"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

func newTestViper(t *testing.T, values map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := loadSettings(newTestViper(t, nil))
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}

	if s.Language != "zh-CN" {
		t.Errorf("Language = %q, want zh-CN", s.Language)
	}
	if s.Rate != 1.0 {
		t.Errorf("Rate = %v, want 1.0", s.Rate)
	}
	if s.Subtitle || s.Accurate {
		t.Errorf("Subtitle/Accurate should default to false")
	}
	if s.FailurePolicy != tts.FailureFiller {
		t.Errorf("FailurePolicy = %q, want filler", s.FailurePolicy)
	}
	if s.FailurePenalty != 2.0 {
		t.Errorf("FailurePenalty = %v, want 2.0", s.FailurePenalty)
	}
	if !s.CacheEnabled || s.CacheMaxMB != 100 || s.CacheTTLDays != 7 {
		t.Errorf("cache defaults = %v/%d/%d", s.CacheEnabled, s.CacheMaxMB, s.CacheTTLDays)
	}
	if s.RequestsPerMin != 50 {
		t.Errorf("RequestsPerMin = %d, want 50", s.RequestsPerMin)
	}
	if s.Timeout.Seconds() != 30 {
		t.Errorf("Timeout = %v, want 30s", s.Timeout)
	}
}

func TestLoadSettingsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		wantErr error
	}{
		{"zero rate", map[string]any{"rate": 0.0}, tts.ErrInvalidRate},
		{"negative rate", map[string]any{"rate": -1.0}, tts.ErrInvalidRate},
		{"rate too high", map[string]any{"rate": 4.5}, tts.ErrInvalidRate},
		{"empty language", map[string]any{"language": "  "}, nil},
		{"unknown policy", map[string]any{"synthesis.failure_policy": "retry"}, nil},
		{"negative penalty", map[string]any{"synthesis.failure_penalty": -1.0}, nil},
		{"zero penalty", map[string]any{"synthesis.failure_penalty": 0.0}, nil},
		{"cache too small", map[string]any{"cache.max_size": 0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadSettings(newTestViper(t, tt.values))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSettingsMaxRate(t *testing.T) {
	s, err := loadSettings(newTestViper(t, map[string]any{"rate": 4.0}))
	if err != nil {
		t.Fatalf("rate 4.0 should be accepted: %v", err)
	}
	if s.Rate != 4.0 {
		t.Errorf("Rate = %v", s.Rate)
	}
}

func TestLoadSettingsToolPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	t.Setenv("NARRATE_FFMPEG", "/env/ffmpeg")
	t.Setenv("NARRATE_FFPROBE", "/env/ffprobe")
	t.Setenv("NARRATE_GTTS_CLI", "/env/gtts-cli")

	s, err := loadSettings(newTestViper(t, map[string]any{
		"toolchain.ffprobe": "/cfg/ffprobe",
		"gtts.binary":       "~/bin/gtts-cli",
		"cache.dir":         "~/clips",
		"output":            "~/out/talk.mp3",
	}))
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}

	if s.Tools.FFmpeg != "/env/ffmpeg" {
		t.Errorf("FFmpeg = %q, want env value", s.Tools.FFmpeg)
	}
	if s.Tools.FFprobe != "/cfg/ffprobe" {
		t.Errorf("FFprobe = %q, want config value", s.Tools.FFprobe)
	}
	if want := filepath.Join(home, "bin", "gtts-cli"); s.Tools.GTTS != want {
		t.Errorf("GTTS = %q, want %q", s.Tools.GTTS, want)
	}
	if want := filepath.Join(home, "clips"); s.CacheDir != want {
		t.Errorf("CacheDir = %q, want %q", s.CacheDir, want)
	}
	if want := filepath.Join(home, "out", "talk.mp3"); s.Output != want {
		t.Errorf("Output = %q, want %q", s.Output, want)
	}
}

func TestCacheConfig(t *testing.T) {
	s := settings{CacheEnabled: false}
	cfg, err := s.cacheConfig()
	if err != nil || cfg != nil {
		t.Fatalf("disabled cache: cfg=%v err=%v", cfg, err)
	}

	dir := t.TempDir()
	s = settings{CacheEnabled: true, CacheDir: dir, CacheMaxMB: 10, CacheTTLDays: 3}
	cfg, err = s.cacheConfig()
	if err != nil {
		t.Fatalf("cacheConfig: %v", err)
	}
	if cfg.DiskPath != dir {
		t.Errorf("DiskPath = %q, want %q", cfg.DiskPath, dir)
	}
	if cfg.DiskCapacity != 10*1024*1024 {
		t.Errorf("DiskCapacity = %d", cfg.DiskCapacity)
	}
	if cfg.TTLDays != 3 {
		t.Errorf("TTLDays = %d", cfg.TTLDays)
	}

	s.CacheDir = ""
	cfg, err = s.cacheConfig()
	if err != nil {
		t.Fatalf("cacheConfig: %v", err)
	}
	if filepath.Base(cfg.DiskPath) != "clips" {
		t.Errorf("default DiskPath = %q, want .../clips", cfg.DiskPath)
	}
}

func TestSettingsOptions(t *testing.T) {
	s := settings{Language: "en", Rate: 1.5, Subtitle: true, Accurate: true, Output: "out.mp3"}
	opts := s.options("doc.md")
	want := tts.Options{Input: "doc.md", Output: "out.mp3", Language: "en", Rate: 1.5, Subtitle: true, Accurate: true}
	if opts != want {
		t.Errorf("options = %+v, want %+v", opts, want)
	}
}

func TestDefaultConfigLoads(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		t.Fatalf("default config does not parse: %v", err)
	}

	s, err := loadSettings(v)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.Language != "zh-CN" || s.Rate != 1.0 || s.FailurePolicy != tts.FailureFiller {
		t.Errorf("unexpected settings from default config: %+v", s)
	}
}

func TestEnsureConfigFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "nested", "narrate.yml")
	got, err := ensureConfigFile(path)
	if err != nil {
		t.Fatalf("ensureConfigFile: %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if string(data) != defaultConfig {
		t.Error("config file should hold the default config")
	}

	if err := os.WriteFile(path, []byte("rate: 2.0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ensureConfigFile(path); err != nil {
		t.Fatalf("ensureConfigFile on existing file: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "rate: 2.0\n" {
		t.Error("existing config file should not be overwritten")
	}

	if _, err := ensureConfigFile(filepath.Join(dir, "narrate.json")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestConfigDirsPriority(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("NARRATE_CONFIG_HOME", "/custom")

	dirs, err := configDirs()
	if err != nil {
		t.Fatalf("configDirs: %v", err)
	}
	if len(dirs) < 2 {
		t.Fatalf("dirs = %v", dirs)
	}
	if dirs[0] != "/custom" {
		t.Errorf("dirs[0] = %q, want NARRATE_CONFIG_HOME", dirs[0])
	}
	if dirs[1] != filepath.Join("/xdg", "narrate") {
		t.Errorf("dirs[1] = %q, want XDG_CONFIG_HOME/narrate", dirs[1])
	}
}
