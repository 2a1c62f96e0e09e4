package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"covercache/internal/logging"
	"covercache/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var level string
	var component string
	var requestID string
	var raw bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the covercache log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Paths.LogDir == "" {
				return errors.New("file logging is disabled (set [paths] log_dir in config.toml)")
			}
			filter := logs.Filter{Component: component, CorrelationID: requestID}
			if level != "" {
				var lvl slog.Level
				if err := lvl.UnmarshalText([]byte(level)); err != nil {
					return fmt.Errorf("invalid --level %q", level)
				}
				filter.MinLevel = lvl
			} else {
				filter.MinLevel = slog.LevelDebug
			}

			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()
			result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines})
			if err != nil {
				return err
			}
			printLogLines(out, result.Lines, filter, raw)
			for follow {
				result, err = logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: result.Offset, Follow: true, Wait: time.Minute})
				if err != nil {
					if errors.Is(err, cmd.Context().Err()) {
						return nil
					}
					return err
				}
				printLogLines(out, result.Lines, filter, raw)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level: debug, info, warn, or error")
	cmd.Flags().StringVar(&component, "component", "", "Only show lines from this component")
	cmd.Flags().StringVar(&requestID, "request", "", "Only show lines with this correlation id")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON lines unchanged")
	return cmd
}

func printLogLines(out io.Writer, lines []string, filter logs.Filter, raw bool) {
	for _, line := range lines {
		entry, ok := logs.ParseLine(line)
		if !ok {
			fmt.Fprintln(out, line)
			continue
		}
		if !filter.Match(entry) {
			continue
		}
		if raw {
			fmt.Fprintln(out, line)
		} else {
			fmt.Fprintln(out, logs.Format(entry))
		}
	}
}
