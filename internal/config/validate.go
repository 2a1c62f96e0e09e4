package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOpenLibrary(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateDispatcher(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOpenLibrary() error {
	for key, value := range map[string]string{
		"openlibrary.base_url":   c.OpenLibrary.BaseURL,
		"openlibrary.covers_url": c.OpenLibrary.CoversURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s must be an http(s) url, got %q", key, value)
		}
	}
	if c.OpenLibrary.TimeoutSeconds < 0 {
		return errors.New("openlibrary.timeout_seconds must be positive")
	}
	if c.OpenLibrary.SearchLimit < 0 || c.OpenLibrary.SearchLimit > 100 {
		return errors.New("openlibrary.search_limit must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateResolver() error {
	switch c.Resolver.DefaultSize {
	case "S", "M", "L":
		return nil
	default:
		return fmt.Errorf("resolver.default_size must be one of S, M, L (got %q)", c.Resolver.DefaultSize)
	}
}

func (c *Config) validateDispatcher() error {
	if c.Dispatcher.Workers < 0 {
		return errors.New("dispatcher.workers must be positive")
	}
	if c.Dispatcher.QueueSize < 0 {
		return errors.New("dispatcher.queue_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
