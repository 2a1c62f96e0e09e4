package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"covercache/internal/cachepath"
	"covercache/internal/dispatch"
	"covercache/internal/resolver"
)

type batchRow struct {
	Line    int              `json:"line"`
	Request resolver.Request `json:"request"`
	Found   bool             `json:"found"`
	Path    string           `json:"path"`
	Summary string           `json:"summary"`
}

type batchOutput struct {
	Rows  []batchRow     `json:"rows"`
	Stats dispatch.Stats `json:"stats"`
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var noSummary bool
	var size string

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Resolve many books from tab-separated lines",
		Long: `Reads one book per line as "isbn<TAB>title<TAB>author" from the file or
standard input. Missing trailing columns are allowed; blank lines and lines
starting with # are skipped. Requests run on the configured worker pool.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			input := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open batch file: %w", err)
				}
				defer file.Close()
				input = file
			}

			defaultSize := cachepath.ParseSize(cfg.Resolver.DefaultSize)
			if strings.TrimSpace(size) != "" {
				defaultSize = cachepath.ParseSize(size)
			}
			rows, err := parseBatch(input, resolver.Request{
				Size:         defaultSize,
				ForceRefresh: force,
				WantSummary:  cfg.Resolver.WantSummary && !noSummary,
			})
			if err != nil {
				return err
			}

			res, logger, cleanup, err := ctx.newResolver(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			pool := dispatch.New(res, dispatch.OptionsFromConfig(cfg, logger))
			g, gctx := errgroup.WithContext(cmd.Context())
			for i := range rows {
				handle, err := pool.Submit(gctx, rows[i].Request, nil)
				if err != nil {
					pool.Close()
					_ = g.Wait()
					return fmt.Errorf("line %d: %w", rows[i].Line, err)
				}
				row := &rows[i]
				g.Go(func() error {
					result, err := handle.Wait(gctx)
					if err != nil {
						return fmt.Errorf("line %d: %w", row.Line, err)
					}
					row.Found = result.Found()
					row.Path = result.Path
					row.Summary = result.Summary
					return nil
				})
			}
			waitErr := g.Wait()
			pool.Close()
			if waitErr != nil {
				return waitErr
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, batchOutput{Rows: rows, Stats: pool.Stats()})
			}
			printBatch(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&size, "size", "", "Cover size: S, M, or L (defaults to config)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass cached covers and summaries")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "Skip summary lookups")
	return cmd
}

func parseBatch(r io.Reader, template resolver.Request) ([]batchRow, error) {
	var rows []batchRow
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(strings.TrimSpace(text), "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		for len(fields) < 3 {
			fields = append(fields, "")
		}
		req := template
		req.ISBN = strings.TrimSpace(fields[0])
		req.Title = strings.TrimSpace(fields[1])
		req.Author = strings.TrimSpace(fields[2])
		rows = append(rows, batchRow{Line: line, Request: req})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch input: %w", err)
	}
	return rows, nil
}

func printBatch(out io.Writer, rows []batchRow) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No books to resolve")
		return
	}
	tableRows := make([][]string, 0, len(rows))
	found := 0
	for _, row := range rows {
		if row.Found {
			found++
		}
		tableRows = append(tableRows, []string{
			strconv.Itoa(row.Line),
			dash(row.Request.ISBN),
			dash(truncate(row.Request.Title, 40)),
			dash(row.Path),
			yesNo(row.Summary != ""),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Line", "ISBN", "Title", "Cover", "Summary"},
		tableRows,
		[]columnAlignment{alignRight},
	))
	fmt.Fprintf(out, "Resolved %d of %d covers\n", found, len(rows))
}
