// Package main provides the entry point for the narrate CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/tts"
	"github.com/dgnsrekt/narrate/internal/tts/engines"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	verbose           bool
	quiet             bool
	noCache           bool
	logFile           string

	// current holds the settings validated before the command runs.
	current settings

	rootCmd = &cobra.Command{
		Use:   "narrate SOURCE|DIR",
		Short: "Turn markdown into narrated audio with synchronized captions",
		Long: paragraph(
			fmt.Sprintf("\nTurn markdown into %s, with optional LRC captions timed to the speech.", keyword("narrated audio")),
		),
		Example: paragraph("narrate notes.md\nnarrate notes.md --rate 1.5 --subtitle\nnarrate notes.md -s -a -l en\nnarrate docs/"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ExactArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return configureLogging(verbose, quiet, logFile)
		},
		PreRunE: func(*cobra.Command, []string) error {
			return validateOptions()
		},
		RunE: execute,
	}
)

// validateOptions resolves configuration and rejects bad values before any
// file is read or written.
func validateOptions() error {
	if configFile != "" {
		if err := loadExplicitConfig(configFile); err != nil {
			return err
		}
	}

	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}
	if noCache {
		s.CacheEnabled = false
	}
	current = s
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	s := current

	inputs, err := resolveInputs(args[0], s.All)
	if err != nil {
		return err
	}
	if len(inputs) > 1 && s.Output != "" {
		return errors.New("--output cannot be used with a directory of documents")
	}
	if len(inputs) > 1 && s.Watch {
		return errors.New("--watch needs a single document")
	}

	ctx := cmd.Context()
	caps := tts.ProbeCapabilities(ctx, s.Tools)
	if !caps.CanSynthesize() {
		fmt.Fprintln(cmd.ErrOrStderr(), caps.Synthesizer.Guidance)
		return tts.NewTTSError(tts.ErrorCodeCapabilityMissing, "speech synthesizer unavailable", caps.Synthesizer.Error).
			WithContext("command", s.Tools.GTTS)
	}

	conv, closeEngine, err := newConverter(s, caps)
	if err != nil {
		return err
	}
	defer closeEngine()

	logSettings(s, caps)

	convertOne := func(ctx context.Context, input string) error {
		res, err := conv.Convert(ctx, s.options(input))
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), res)
		return nil
	}

	if len(inputs) == 1 {
		err := convertOne(ctx, inputs[0])
		if !s.Watch {
			return err
		}
		if err != nil {
			reportFailure(inputs[0], err)
		}
		return watchAndConvert(ctx, inputs[0], func(ctx context.Context) error {
			return convertOne(ctx, inputs[0])
		})
	}

	var failed int
	for _, input := range inputs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := convertOne(ctx, input); err != nil {
			reportFailure(input, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(inputs))
	}
	return nil
}

// newConverter builds the gTTS engine, the ffmpeg toolchain and the
// converter that ties them together. The returned func closes the engine.
func newConverter(s settings, caps tts.Capabilities) (*tts.Converter, func(), error) {
	cacheCfg, err := s.cacheConfig()
	if err != nil {
		return nil, nil, err
	}

	engine, err := engines.NewGTTSEngine(engines.GTTSConfig{
		Binary:            s.Tools.GTTS,
		Language:          s.Language,
		Slow:              s.Slow,
		TLD:               s.TLD,
		Timeout:           s.Timeout,
		CacheConfig:       cacheCfg,
		RequestsPerMinute: s.RequestsPerMin,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create speech engine: %w", err)
	}
	closeEngine := func() {
		if stats := engine.GetCacheStats(); stats != nil {
			log.Debug("Clip cache", flattenStats(stats)...)
		}
		if err := engine.Close(); err != nil {
			log.Debug("Failed to close speech engine", "error", err)
		}
	}

	estimator := tts.NewEstimator(tts.WithScaledPauses(s.ScalePauses))
	conv, err := tts.NewConverter(engine, audio.NewFFmpeg(s.Tools), caps,
		tts.WithConverterEstimator(estimator),
		tts.WithSynthesizerOptions(
			tts.WithFailurePolicy(s.FailurePolicy),
			tts.WithFailurePenalty(s.FailurePenalty),
			tts.WithEstimator(estimator),
		),
	)
	if err != nil {
		closeEngine()
		return nil, nil, err
	}
	return conv, closeEngine, nil
}

// reportFailure logs a failed conversion. Errors that leave usable output
// are warnings; retryable ones say so.
func reportFailure(input string, err error) {
	kv := []interface{}{"input", input, "error", err}
	var ttsErr *tts.TTSError
	if !errors.As(err, &ttsErr) {
		log.Error("Conversion failed", kv...)
		return
	}

	kv = append(kv, "code", ttsErr.Code)
	if ttsErr.IsRetryable() {
		kv = append(kv, "hint", "retrying may succeed")
	}
	if !ttsErr.IsFatal() {
		log.Warn("Conversion incomplete", kv...)
		return
	}
	log.Error("Conversion failed", kv...)
}

// flattenStats turns a stats map into sorted key/value pairs for the logger.
func flattenStats(stats map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, stats[k])
	}
	return kv
}

func logSettings(s settings, caps tts.Capabilities) {
	captions := "off"
	switch {
	case s.Subtitle && s.Accurate && caps.HasToolchain():
		captions = "measured"
	case s.Subtitle:
		captions = "estimated"
	}
	log.Info("Settings",
		"language", s.Language,
		"rate", tts.RateDisplay(s.Rate),
		"captions", captions,
		"cache", s.CacheEnabled,
	)
}

func main() {
	setupLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", defaultConfigFile))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")

	rootCmd.Flags().StringP("lang", "l", engines.DefaultLanguage, "speech language tag")
	rootCmd.Flags().Float64P("rate", "r", tts.DefaultRate, "playback rate (0, 4]")
	rootCmd.Flags().BoolP("subtitle", "s", false, "write an LRC caption file next to the audio")
	rootCmd.Flags().BoolP("accurate", "a", false, "time captions from the rendered audio (needs ffmpeg)")
	rootCmd.Flags().StringP("output", "o", "", "audio output path (default <document>.mp3)")
	rootCmd.Flags().Bool("slow", false, "ask the synthesizer to speak slowly")
	rootCmd.Flags().String("failure-policy", string(tts.FailureFiller), "what to do with sentences that fail to synthesize: filler or drop")
	rootCmd.Flags().Bool("all", false, "include files ignored by git when converting a directory")
	rootCmd.Flags().BoolP("watch", "w", false, "re-convert the document whenever it changes")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "do not read or write the clip cache")

	// Config bindings
	_ = viper.BindPFlag("language", rootCmd.Flags().Lookup("lang"))
	_ = viper.BindPFlag("rate", rootCmd.Flags().Lookup("rate"))
	_ = viper.BindPFlag("subtitle", rootCmd.Flags().Lookup("subtitle"))
	_ = viper.BindPFlag("accurate", rootCmd.Flags().Lookup("accurate"))
	_ = viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("gtts.slow", rootCmd.Flags().Lookup("slow"))
	_ = viper.BindPFlag("synthesis.failure_policy", rootCmd.Flags().Lookup("failure-policy"))
	_ = viper.BindPFlag("all", rootCmd.Flags().Lookup("all"))
	_ = viper.BindPFlag("watch", rootCmd.Flags().Lookup("watch"))

	setDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, doctorCmd, cacheCmd, manCmd)
}
