package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/internal/ttypes"
	"golang.org/x/time/rate"
)

// Defaults for GTTSConfig.
const (
	DefaultGTTSBinary        = "gtts-cli"
	DefaultLanguage          = "zh-CN"
	DefaultRequestsPerMinute = 50
	DefaultTimeout           = 30 * time.Second
)

// maxMP3Size bounds a single gtts-cli response.
const maxMP3Size = 50 * 1024 * 1024

// gtts-cli sends one request per chunk of at most this many characters.
const chunkRunes = 100

// ErrEmptyText is returned when asked to synthesize blank text.
var ErrEmptyText = errors.New("text cannot be empty")

// GTTSEngine implements the TTSEngine interface using gTTS (Google Translate TTS).
// It runs gtts-cli, which returns MP3 audio, so no API key is required.
type GTTSEngine struct {
	// Configuration
	binary   string
	language string
	slow     bool
	tld      string
	timeout  time.Duration
	version  string

	// Rate limiting to avoid being blocked by Google
	rateLimiter *rate.Limiter

	// Caching
	cache *cache.Manager

	mu sync.RWMutex
}

// GTTSConfig holds configuration for the gTTS engine.
type GTTSConfig struct {
	// Binary is the gtts-cli command or path - defaults to "gtts-cli"
	Binary string

	// Language used when Synthesize is called without one - defaults to "zh-CN"
	Language string

	// Slow speech (--slow flag) - defaults to false
	Slow bool

	// TLD selects the Google Translate host (e.g., "com", "co.uk")
	TLD string

	// Timeout bounds each ~100 character request gtts-cli makes, so a
	// sentence gets one Timeout and a whole document one per chunk -
	// defaults to 30s
	Timeout time.Duration

	// Cache configuration (optional, nil disables caching)
	CacheConfig *cache.Config

	// Rate limit requests per minute to avoid being blocked (defaults to 50)
	RequestsPerMinute int
}

// NewGTTSEngine creates a new gTTS TTS engine.
func NewGTTSEngine(config GTTSConfig) (*GTTSEngine, error) {
	if config.Binary == "" {
		config.Binary = DefaultGTTSBinary
	}
	if config.Language == "" {
		config.Language = DefaultLanguage
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}

	rateLimiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)

	var cacheManager *cache.Manager
	if config.CacheConfig != nil {
		var err error
		cacheManager, err = cache.NewManager(config.CacheConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache manager: %w", err)
		}
	}

	return &GTTSEngine{
		binary:      config.Binary,
		language:    config.Language,
		slow:        config.Slow,
		tld:         config.TLD,
		timeout:     config.Timeout,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
	}, nil
}

// Synthesize converts text to MP3 audio. An empty language uses the
// engine's default.
func (e *GTTSEngine) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	if language == "" {
		language = e.language
	}
	slow, tld := e.slow, e.tld

	cacheKey := cache.Key(text, language, strconv.FormatBool(slow), tld)
	if e.cache != nil {
		if audio, ok := e.cache.Get(cacheKey); ok {
			log.Debug("clip cache hit", "key", cacheKey)
			return audio, nil
		}
	}

	// Rate limit to avoid being blocked
	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	mp3Data, err := e.synthesizeToMP3(ctx, text, language, slow, tld)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		// Cache errors are non-fatal
		if err := e.cache.Put(cacheKey, mp3Data); err != nil {
			log.Debug("failed to cache clip", "error", err)
		}
	}

	return mp3Data, nil
}

// synthesizeToMP3 runs gtts-cli with the text on stdin and MP3 on stdout.
// Passing text on stdin avoids argument length limits for whole documents.
func (e *GTTSEngine) synthesizeToMP3(ctx context.Context, text, language string, slow bool, tld string) ([]byte, error) {
	timeout := e.timeoutFor(text)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary, buildGTTSArgs(language, slow, tld)...) //nolint:gosec
	cmd.Stdin = strings.NewReader(text)

	// Interrupt first so gtts-cli can close its connection, then kill.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 100 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("gTTS synthesis timeout after %s: %w", timeout, ctx.Err())
		}
		return nil, fmt.Errorf("gtts-cli failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	mp3Data := stdout.Bytes()
	if len(mp3Data) == 0 {
		return nil, fmt.Errorf("gtts-cli produced no MP3 output, stderr: %s", strings.TrimSpace(stderr.String()))
	}
	if len(mp3Data) > maxMP3Size {
		return nil, fmt.Errorf("gtts-cli MP3 output too large: %d bytes (max %d)", len(mp3Data), maxMP3Size)
	}

	return mp3Data, nil
}

// timeoutFor scales the per-request timeout by the number of requests
// gtts-cli will make for text.
func (e *GTTSEngine) timeoutFor(text string) time.Duration {
	chunks := (utf8.RuneCountInString(text) + chunkRunes - 1) / chunkRunes
	return e.timeout * time.Duration(max(chunks, 1))
}

func buildGTTSArgs(language string, slow bool, tld string) []string {
	args := []string{"-", "--lang", language}
	if slow {
		args = append(args, "--slow")
	}
	if tld != "" {
		args = append(args, "--tld", tld)
	}
	return args
}

// GetInfo returns engine capabilities and configuration.
func (e *GTTSEngine) GetInfo() ttypes.EngineInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	version := e.version
	if version == "" {
		version = "unknown"
	}

	return ttypes.EngineInfo{
		Name:        string(ttypes.EngineGoogle),
		Version:     version,
		Format:      "mp3",
		MaxTextSize: 0, // gtts-cli splits long text itself
		IsOnline:    true,
	}
}

// Validate checks that gtts-cli can be found and executed. It does not
// contact Google.
func (e *GTTSEngine) Validate() error {
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return fmt.Errorf("gtts-cli not found in PATH: %w\n\nInstall with: pip install gtts", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput() //nolint:gosec
	if err != nil {
		return fmt.Errorf("cannot execute gtts-cli: %w", err)
	}

	e.mu.Lock()
	e.version = strings.TrimSpace(string(out))
	e.mu.Unlock()
	return nil
}

// Close releases resources held by the engine.
func (e *GTTSEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			return fmt.Errorf("failed to close cache: %w", err)
		}
	}

	return nil
}

// GetCacheStats returns cache statistics if caching is enabled, keyed for
// structured logging.
func (e *GTTSEngine) GetCacheStats() map[string]interface{} {
	if e.cache == nil {
		return nil
	}
	return e.cache.Stats()
}

// Ensure GTTSEngine implements TTSEngine interface
var _ ttypes.TTSEngine = (*GTTSEngine)(nil)
