package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"covercache/internal/summarystore"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Inspect and manage stored book summaries",
	}

	summaryCmd.AddCommand(newSummaryShowCommand(ctx))
	summaryCmd.AddCommand(newSummaryListCommand(ctx))
	summaryCmd.AddCommand(newSummaryForgetCommand(ctx))
	summaryCmd.AddCommand(newSummaryClearCommand(ctx))

	return summaryCmd
}

func withStore(ctx *commandContext, fn func(*summarystore.Store) error) error {
	store, err := ctx.openStore()
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("summary store is disabled (set [summaries] enabled = true in config.toml)")
	}
	defer store.Close()
	return fn(store)
}

func subjectFromFlags(book bookFlags) (string, error) {
	subject := summarystore.Subject(book.isbn, book.title, book.author)
	if subject == "" {
		return "", errors.New("specify --isbn or --title/--author")
	}
	return subject, nil
}

func newSummaryShowCommand(ctx *commandContext) *cobra.Command {
	var book bookFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored summary for one book",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := subjectFromFlags(book)
			if err != nil {
				return err
			}
			return withStore(ctx, func(store *summarystore.Store) error {
				summary, found, err := store.Get(cmd.Context(), subject)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"found": found, "summary": summary})
				}
				out := cmd.OutOrStdout()
				if !found {
					fmt.Fprintf(out, "No summary recorded for %s\n", subject)
					return nil
				}
				fmt.Fprintln(out, renderKeyValues([][2]string{
					{"Subject", summary.Subject},
					{"Checked", summary.CheckedAt.Local().Format("2006-01-02 15:04:05")},
					{"Summary", dash(truncate(summary.Text, 400))},
				}))
				return nil
			})
		},
	}
	book.register(cmd)
	return cmd
}

func newSummaryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored summaries, most recently checked first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *summarystore.Store) error {
				summaries, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if summaries == nil {
						summaries = []summarystore.Summary{}
					}
					return writeJSON(cmd, summaries)
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, "Stored summaries: none")
					return nil
				}
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, []string{
						s.Subject,
						s.CheckedAt.Local().Format("2006-01-02 15:04"),
						dash(truncate(s.Text, 60)),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Subject", "Checked", "Summary"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most this many summaries (0 for all)")
	return cmd
}

func newSummaryForgetCommand(ctx *commandContext) *cobra.Command {
	var book bookFlags
	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Drop the stored summary for one book so it is looked up again",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, err := subjectFromFlags(book)
			if err != nil {
				return err
			}
			return withStore(ctx, func(store *summarystore.Store) error {
				removed, err := store.Delete(cmd.Context(), subject)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"subject": subject, "removed": removed})
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Forgot summary for %s\n", subject)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "No summary recorded for %s\n", subject)
				}
				return nil
			})
		},
	}
	book.register(cmd)
	return cmd
}

func newSummaryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(store *summarystore.Store) error {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"removed": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d summaries\n", n)
				return nil
			})
		},
	}
}
