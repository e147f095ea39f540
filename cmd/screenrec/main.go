// Package main provides the screenrec CLI entry point.
//
// screenrec supervises a single ffmpeg screen capture. It is driven from a
// terminal console or a local HTTP control API.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/config"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/logging"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/screenrec
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "screenrec [command]",
	Short: "screenrec: single-slot ffmpeg screen recorder",
	Long: `screenrec starts, watches and stops one ffmpeg screen capture at a time.
Without a command it runs the recorder with the terminal console.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRecorder,
}

func init() {
	config.BindFlags(rootCmd.PersistentFlags())
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig resolves the configuration from the command's flags, the
// environment and the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader(cmd.Flags())
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, loader, nil
}

// newLogger builds the process logger. While the console owns the terminal,
// logs go to log_file or are discarded.
func newLogger(cfg *config.Config, console bool) (*slog.Logger, io.Closer, error) {
	if !console {
		return logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose), nopCloser{}, nil
	}
	if cfg.LogFile == "" {
		return logging.Discard(), nopCloser{}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	level := cfg.LogLevel
	if cfg.Verbose {
		level = "debug"
	}
	return logging.NewLoggerWithWriter(f, cfg.LogFormat, level), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
