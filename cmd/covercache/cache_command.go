package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"covercache/internal/covercache"
	"covercache/internal/identity"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the cover cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePathCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached covers, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := cacheManager(ctx, cmd)
			if err != nil {
				return err
			}
			entries, err := manager.Entries(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, entries)
			}
			printCacheEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many entries")
	return cmd
}

func printCacheEntries(out io.Writer, entries []covercache.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Cached covers: none")
		return
	}
	const stampLayout = "2006-01-02 15:04"
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Kind,
			e.Value,
			e.Size,
			humanBytes(e.Bytes),
			e.ModifiedAt.Local().Format(stampLayout),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Kind", "Identity", "Size", "Bytes", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cover cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := cacheManager(ctx, cmd)
			if err != nil {
				return err
			}
			stats, err := manager.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Root:    %s\n", stats.Root)
			fmt.Fprintf(out, "Entries: %d (%s)\n", stats.Entries, humanBytes(stats.TotalBytes))
			if stats.TotalFSBytes > 0 {
				fmt.Fprintf(out, "Disk:    %s free (%.1f%%)\n", humanBytes(int64(stats.FreeBytes)), stats.FreeRatio*100)
			}
			if stats.Unrecognized > 0 {
				fmt.Fprintf(out, "Foreign files: %d\n", stats.Unrecognized)
			}
			if stats.Linked > 0 {
				fmt.Fprintf(out, "Linked aliases: %d\n", stats.Linked)
			}
			kinds := make([]string, 0, len(stats.ByKind))
			for kind := range stats.ByKind {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				k := stats.ByKind[kind]
				fmt.Fprintf(out, "  - %s: %d (%s)\n", kind, k.Entries, humanBytes(k.Bytes))
			}
			return nil
		},
	}
}

func newCachePathCommand(ctx *commandContext) *cobra.Command {
	var book bookFlags
	var coverID int
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print where a cover would be cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manager, err := cacheManager(ctx, cmd)
			if err != nil {
				return err
			}
			id, err := identityFromFlags(book, coverID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), manager.Path(id, book.sizeOr(cfg.Resolver.DefaultSize)))
			return nil
		},
	}
	book.register(cmd)
	cmd.Flags().IntVar(&coverID, "cover-id", 0, "Open Library cover id")
	return cmd
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	var book bookFlags
	var coverID int
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove every cached size of one book",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := cacheManager(ctx, cmd)
			if err != nil {
				return err
			}
			id, err := identityFromFlags(book, coverID)
			if err != nil {
				return err
			}
			result, err := manager.Remove(cmd.Context(), id)
			if err != nil {
				return err
			}
			return reportRemoval(ctx, cmd, result)
		},
	}
	book.register(cmd)
	cmd.Flags().IntVar(&coverID, "cover-id", 0, "Open Library cover id")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached cover",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := cacheManager(ctx, cmd)
			if err != nil {
				return err
			}
			result, err := manager.Clear(cmd.Context())
			if err != nil {
				return err
			}
			return reportRemoval(ctx, cmd, result)
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var maxMiB int64
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove the oldest covers until the cache fits a budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxMiB < 0 {
				return errors.New("--max-mib must be zero or greater")
			}
			manager, err := cacheManager(ctx, cmd)
			if err != nil {
				return err
			}
			result, err := manager.Prune(cmd.Context(), maxMiB*1024*1024)
			if err != nil {
				return err
			}
			return reportRemoval(ctx, cmd, result)
		},
	}
	cmd.Flags().Int64Var(&maxMiB, "max-mib", 0, "Size budget in MiB")
	_ = cmd.MarkFlagRequired("max-mib")
	return cmd
}

func reportRemoval(ctx *commandContext, cmd *cobra.Command, result covercache.PruneResult) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, result)
	}
	if result.Removed == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cache entries removed")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries (%s)\n", result.Removed, humanBytes(result.FreedBytes))
	return nil
}

// identityFromFlags prefers an ISBN, then a cover id, then the title/author query.
func identityFromFlags(book bookFlags, coverID int) (identity.Identity, error) {
	if id := identity.ISBN(book.isbn); !id.IsZero() {
		return id, nil
	}
	if id := identity.CoverID(coverID); !id.IsZero() {
		return id, nil
	}
	if id := identity.Query(book.title, book.author); !id.IsZero() {
		return id, nil
	}
	return identity.Identity{}, errors.New("specify --isbn, --cover-id, or --title/--author")
}

func cacheManager(ctx *commandContext, cmd *cobra.Command) (*covercache.Manager, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Paths.CacheDir) == "" {
		return nil, errors.New("cache_dir is not configured")
	}
	logger, err := ctx.logger(cmd, "cli-cache")
	if err != nil {
		return nil, err
	}
	return covercache.NewManager(cfg, logger), nil
}
