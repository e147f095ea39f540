package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/process"
)

func init() {
	rootCmd.AddCommand(cmdPrintCmd)
}

var cmdPrintCmd = &cobra.Command{
	Use:   "print-cmd [output]",
	Short: "Print the ffmpeg command a recording would run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		output := process.GenerateOutputPath(cfg.OutputDir, time.Now())
		if len(args) == 1 {
			output = args[0]
		}

		line, err := process.CommandString(cfg.Capture(), output)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "# FFmpeg command that would be run for the next recording:")
		fmt.Fprintln(w)
		fmt.Fprintln(w, line)
		return nil
	},
}
