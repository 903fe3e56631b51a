package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/qrkit/internal/config"
	"github.com/MeKo-Tech/qrkit/internal/logging"
	"github.com/MeKo-Tech/qrkit/internal/version"
)

var (
	// Configuration loader of the current invocation.
	configLoader *config.Loader
	// Configuration of the current invocation.
	globalConfig *config.Config
	// Logger of the current invocation.
	logger *slog.Logger
	// Configuration file path.
	cfgFile string
)

// flagKeys maps command-line flags onto configuration keys. Each invocation
// binds the flags present on the executing command.
var flagKeys = map[string]string{
	"verbose":             "verbose",
	"log-level":           "log_level",
	"dev":                 "dev_mode",
	"format":              "output.format",
	"try-harder":          "scan.try_harder",
	"max-dimension":       "scan.max_dimension",
	"max-pixels":          "scan.max_pixels",
	"fetch-timeout":       "fetch.timeout",
	"size":                "generate.size",
	"nfc":                 "generate.normalize_nfc",
	"host":                "server.host",
	"port":                "server.port",
	"cors-origin":         "server.cors_origin",
	"max-upload-size":     "server.max_upload_mb",
	"timeout":             "server.timeout_sec",
	"shutdown-timeout":    "server.shutdown_timeout",
	"rate-limit-enabled":  "server.rate_limit_enabled",
	"requests-per-minute": "server.requests_per_minute",
	"trust-proxy-headers": "server.trust_proxy_headers",
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qrkit",
	Short: "Scan and generate QR codes",
	Long: `qrkit reads QR codes from images and renders text as QR codes.

Images can come from a file, the clipboard, a link or an inline data URI.
Generated codes are written as PNG, copied to the clipboard or drawn in
the terminal. A local HTTP/WebSocket server exposes the same operations.

Examples:
  qrkit scan screenshot.png
  qrkit scan --clipboard --copy
  qrkit scan --uri https://example.com/code.png
  qrkit generate "https://example.com" --output code.png
  qrkit serve --port 8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "qrkit version "+version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/qrkit, /etc/qrkit)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("dev", false, "human-readable logs with source locations")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")
}

// initConfig loads the configuration for cmd into a fresh viper instance so
// repeated in-process executions do not share state.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	bind := func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = v.BindPFlag(key, f)
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)

	configLoader = config.NewLoader(v)

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger = logging.New(logging.Config{
		Level:   globalConfig.LogLevel,
		Verbose: globalConfig.Verbose,
		DevMode: globalConfig.DevMode,
		Output:  cmd.ErrOrStderr(),
	})
	if used := configLoader.GetConfigFileUsed(); used != "" {
		logger.Debug("Loaded configuration", "file", used)
	}
	return nil
}

// GetConfig returns the configuration of the current invocation.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}

// GetConfigLoader returns the configuration loader of the current invocation.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader(viper.New())
	}
	return configLoader
}

// GetLogger returns the logger of the current invocation.
func GetLogger() *slog.Logger {
	if logger == nil {
		return logging.Discard()
	}
	return logger
}

// ResetFlags restores every flag of every command to its default so that the
// root command can be executed repeatedly in one process.
func ResetFlags() {
	cfgFile = ""
	globalConfig = nil
	configLoader = nil
	logger = nil
	resetCommandFlags(rootCmd)
}

func resetCommandFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetCommandFlags(sub)
	}
}
