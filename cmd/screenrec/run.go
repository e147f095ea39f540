package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/config"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/logging"
	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/orchestrator"
)

func init() {
	rootCmd.AddCommand(cmdRun)
	rootCmd.AddCommand(cmdServe)
}

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run the recorder with the terminal console (the default)",
	Long: `Runs the recorder. The terminal console is shown unless --tui=false,
and the control API listens on --control-addr when set.`,
	RunE: runRecorder,
}

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Run the recorder headless, driven by the control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startRecorder(cmd, true)
	},
}

func runRecorder(cmd *cobra.Command, args []string) error {
	return startRecorder(cmd, false)
}

func startRecorder(cmd *cobra.Command, headless bool) error {
	cfg, loader, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if headless && cfg.ControlAddr == "" {
		return fmt.Errorf("serve needs a control address (--control-addr)")
	}

	console := cfg.TUI && !headless
	logger, closer, err := newLogger(cfg, console)
	if err != nil {
		return err
	}
	defer closer.Close()
	logging.SetDefault(logger)

	logger.Info("starting",
		"version", version,
		"platform", cfg.Platform,
		"output_dir", cfg.OutputDir,
		"control_addr", cfg.ControlAddr,
		"history_db", cfg.HistoryDB,
		"config_file", cfg.File,
	)

	if !console {
		printBanner(cmd, cfg)
	}

	orch, err := orchestrator.New(cmd.Context(), cfg, logger, orchestrator.Options{
		Version:  version,
		Headless: headless,
		Reload:   loader.Load,
		Out:      cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Run(cmd.Context()); err != nil {
		logger.Error("orchestrator_failed", "error", err)
		return err
	}
	return nil
}

// printBanner prints the startup banner.
func printBanner(cmd *cobra.Command, cfg *config.Config) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                            screenrec                              ║")
	fmt.Fprintln(w, "║              Single-slot ffmpeg screen recorder                   ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Platform:    %s\n", cfg.Platform)
	fmt.Fprintf(w, "  Output dir:  %s\n", cfg.OutputDir)
	if cfg.ControlAddr != "" {
		fmt.Fprintf(w, "  Control:     http://%s/api/recording/status\n", cfg.ControlAddr)
		fmt.Fprintf(w, "  Metrics:     http://%s/metrics\n", cfg.ControlAddr)
	}
	if cfg.HistoryDB != "" {
		fmt.Fprintf(w, "  History:     %s\n", cfg.HistoryDB)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop.")
	fmt.Fprintln(w)
}
