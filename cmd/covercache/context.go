package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"covercache/internal/config"
	"covercache/internal/logging"
	"covercache/internal/resolver"
	"covercache/internal/summarystore"
)

type commandContext struct {
	configFlag  *string
	jsonFlag    *bool
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		jsonFlag:    jsonFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// logger writes to the command's stderr so output stays parseable.
func (c *commandContext) logger(cmd *cobra.Command, component string) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts := logging.OptionsFromConfig(cfg)
	opts.Writer = cmd.ErrOrStderr()
	if c.verboseFlag != nil && *c.verboseFlag {
		opts.Level = "debug"
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger.With(logging.String(logging.FieldComponent, component)), nil
}

// openStore returns nil without error when summaries are disabled.
func (c *commandContext) openStore() (*summarystore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Summaries.Enabled {
		return nil, nil
	}
	store, err := summarystore.Open(cfg.Paths.SummaryDB)
	if err != nil {
		return nil, fmt.Errorf("open summary store: %w", err)
	}
	return store, nil
}

// newResolver wires a resolver from config. The returned cleanup closes the
// summary store.
func (c *commandContext) newResolver(cmd *cobra.Command) (*resolver.Resolver, *slog.Logger, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := c.logger(cmd, "cli")
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := c.openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	opts := resolver.Options{Logger: logger}
	cleanup := func() {}
	if store != nil {
		opts.Store = store
		cleanup = func() { _ = store.Close() }
	}
	return resolver.NewFromConfig(cfg, opts), logger, cleanup, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
