package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/preflight"
)

func init() {
	rootCmd.AddCommand(cmdCheck)
}

var cmdCheck = &cobra.Command{
	Use:   "check",
	Short: "Run preflight checks for ffmpeg, the platform and the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		result := preflight.RunAll(cmd.Context(), preflight.Options{
			FFmpegPath: cfg.FFmpegPath,
			Capture:    cfg.Capture(),
			OutputDir:  cfg.OutputDir,
		})
		preflight.PrintResults(cmd.OutOrStdout(), result)
		if !result.Passed {
			return errors.New("preflight checks failed")
		}
		return nil
	},
}
