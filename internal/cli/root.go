package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-resonance/logging"
)

const envPrefix = "SONIDO_RESONANCE"

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

// options carries the state shared by all commands of one invocation
type options struct {
	configFile string
	logLevel   string
	logFormat  string
	output     string

	v      *viper.Viper
	logger logging.Logger
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree with its own viper instance
func NewRootCommand() *cobra.Command {
	opts := &options{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "sonido-resonance",
		Short: "Acoustic resonance analysis of recorded signals",
		Long: `Compute calibrated sound pressure level spectra of recordings and
detect their resonance peaks by topographic prominence.

Input samples are treated as pressure in pascals; SPL is referenced to 20 µPa.
WAV files are read natively, other formats require ffmpeg on PATH.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if zapLogger, ok := opts.logger.(*logging.ZapLogger); ok {
				_ = zapLogger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "",
		"config file (yaml or json)")
	flags.StringVar(&opts.logLevel, "log-level", "warn",
		"log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text",
		"log format (text, json, console)")
	flags.StringVarP(&opts.output, "output", "o", "table",
		"output format (table, json, yaml)")

	rootCmd.AddCommand(
		newAnalyzeCommand(opts),
		newBatchCommand(opts),
		newPlanCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

// initialize reads the config file, binds flags and env, then installs the logger
func (o *options) initialize(cmd *cobra.Command) error {
	o.v.SetEnvPrefix(envPrefix)
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	o.v.AutomaticEnv()

	if o.configFile != "" {
		o.v.SetConfigFile(o.configFile)
		if err := o.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindFlags(cmd, o.v); err != nil {
		return err
	}

	if err := o.setupLogging(); err != nil {
		return err
	}

	switch o.outputFormat() {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}

	o.logger.Debug("Configuration loaded", logging.Fields{
		"config_file": o.v.ConfigFileUsed(),
		"command":     cmd.Name(),
	})
	return nil
}

func (o *options) setupLogging() error {
	level, err := logging.ParseLevel(o.v.GetString("log_level"))
	if err != nil {
		return err
	}

	var logger logging.Logger
	switch format := strings.ToLower(o.v.GetString("log_format")); format {
	case "text", "":
		// stdout carries the report
		logger = logging.NewDefaultLoggerWithWriters(os.Stderr, os.Stderr)
	case "json", "console":
		logger, err = logging.NewZapLogger(level, format == "console")
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	o.logger = logging.WithFields(logging.Fields{"component": "cli"})
	return nil
}

func (o *options) outputFormat() string {
	return strings.ToLower(o.v.GetString("output"))
}

// flagKeys maps flag names to configuration keys. Flags not listed are
// command-local and never read from config or env.
var flagKeys = map[string]string{
	"log-level":           "log_level",
	"log-format":          "log_format",
	"output":              "output",
	"resolution":          "target_resolution",
	"window":              "window",
	"max-freq":            "max_frequency",
	"max-fft-length":      "max_fft_length",
	"prominence":          "detection.min_prominence",
	"distance":            "detection.min_distance",
	"max-peaks":           "detection.max_peaks",
	"height":              "height",
	"phase":               "include_phase",
	"spectrogram":         "include_spectrogram",
	"spectrogram-segment": "spectrogram.segment_length",
	"spectrogram-overlap": "spectrogram.overlap",
	"spectrogram-window":  "spectrogram.window",
	"max-duration":        "max_duration",
	"workers":             "workers",
}

// bindFlags binds each known cobra flag to its viper key and environment
// variable, and copies config or env values into flags the user did not set
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}

		envVar := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if err := v.BindEnv(key, envVar); err != nil {
			lastErr = err
		}

		if !f.Changed && v.IsSet(key) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(key))); err != nil {
				lastErr = fmt.Errorf("invalid value for --%s: %w", f.Name, err)
			}
		}

		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}
	})

	return lastErr
}
