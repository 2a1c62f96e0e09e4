package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"covercache/internal/cachepath"
	"covercache/internal/resolver"
)

type bookFlags struct {
	isbn   string
	title  string
	author string
	size   string
}

func (f *bookFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.isbn, "isbn", "", "ISBN-10 or ISBN-13 (punctuation ignored)")
	cmd.Flags().StringVar(&f.title, "title", "", "Book title")
	cmd.Flags().StringVar(&f.author, "author", "", "Book author")
	cmd.Flags().StringVar(&f.size, "size", "", "Cover size: S, M, or L (defaults to config)")
}

func (f *bookFlags) empty() bool {
	return strings.TrimSpace(f.isbn) == "" && strings.TrimSpace(f.title) == "" && strings.TrimSpace(f.author) == ""
}

func (f *bookFlags) sizeOr(fallback string) cachepath.Size {
	if strings.TrimSpace(f.size) != "" {
		return cachepath.ParseSize(f.size)
	}
	return cachepath.ParseSize(fallback)
}

type resolveOutput struct {
	Request resolver.Request `json:"request"`
	Found   bool             `json:"found"`
	Path    string           `json:"path"`
	Summary string           `json:"summary"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var book bookFlags
	var force bool
	var noSummary bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a cover and summary for one book",
		Example: `  covercache resolve --isbn 978-0-441-01359-3
  covercache resolve --title "Dune" --author "Frank Herbert" --size M`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if book.empty() {
				return errors.New("resolve requires --isbn, --title, or --author")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			res, _, cleanup, err := ctx.newResolver(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			req := resolver.Request{
				ISBN:         book.isbn,
				Title:        book.title,
				Author:       book.author,
				Size:         book.sizeOr(cfg.Resolver.DefaultSize),
				ForceRefresh: force,
				WantSummary:  cfg.Resolver.WantSummary && !noSummary,
			}
			result := res.Resolve(cmd.Context(), req)

			if ctx.jsonOutput() {
				return writeJSON(cmd, resolveOutput{
					Request: req,
					Found:   result.Found(),
					Path:    result.Path,
					Summary: result.Summary,
				})
			}
			out := cmd.OutOrStdout()
			if result.Found() {
				fmt.Fprintf(out, "Cover:   %s\n", result.Path)
			} else {
				fmt.Fprintln(out, "Cover:   not found")
			}
			if req.WantSummary {
				fmt.Fprintf(out, "Summary: %s\n", dash(result.Summary))
			}
			return nil
		},
	}

	book.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Bypass cached covers and summaries")
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "Skip the summary lookup")
	return cmd
}
