package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/notely"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	apiURL    string

	cfg notely.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notely",
	Short: "Auto-saving notes with categories, served over HTTP",
	Long: `Notely keeps notes in categories and saves them while you type.
Run 'notely serve' to host the API, then use the other commands or
'notely edit' against it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = notely.LoadConfig(cfgFile, ".env")
		if err != nil {
			fatal("Failed to load configuration", err)
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		if cmd.Flags().Changed("api") {
			cfg.Client.BaseURL = apiURL
		}
		slog.SetDefault(newLogger(os.Stderr, cfg.Log, verbose))
	},
}

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, lc notely.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if lc.Level != "" {
		if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
			level = slog.LevelInfo
		}
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./notely.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Base URL of the notely API")
}
