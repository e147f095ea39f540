package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randomizedcoder/go-ffmpeg-screenrec/internal/history"
)

var (
	historyLimit  int
	historyFormat string
)

func init() {
	cmdHistory.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of recordings to list (0 = all)")
	cmdHistory.Flags().StringVar(&historyFormat, "format", "table", `Output format: "table", "json" or "yaml"`)
	rootCmd.AddCommand(cmdHistory)
}

var cmdHistory = &cobra.Command{
	Use:   "history",
	Short: "List past recordings, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.HistoryDB == "" {
			return fmt.Errorf("history is disabled (history_db is empty)")
		}

		store, err := history.Open(cmd.Context(), cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()

		recs, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		return writeHistory(cmd.OutOrStdout(), historyFormat, recs)
	},
}

// writeHistory renders recs in the requested format.
func writeHistory(w io.Writer, format string, recs []history.Recording) error {
	if recs == nil {
		recs = []history.Recording{}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return err
		}
		return enc.Close()

	case "table", "":
		if len(recs) == 0 {
			fmt.Fprintln(w, "No recordings")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STARTED\tFILE\tDURATION\tSTATUS\tSIZE\tID")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.StartedAt.Local().Format(time.DateTime),
				filepath.Base(r.OutputPath),
				time.Duration(r.Duration).Round(time.Second),
				r.Status,
				r.SizeBytes,
				r.ID,
			)
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
