package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// MinQueryDelay is the smallest pause allowed between two search queries.
const MinQueryDelay = 110 * time.Millisecond

// Config holds pipeline configuration.
type Config struct {
	BaseURL       string
	CatalogFile   string
	RulesFile     string // empty uses the embedded rules
	Keyword       string
	Unique        string // cards, prints, or art
	Delay         time.Duration
	Timeout       time.Duration
	UserAgent     string
	ImageFile     string
	TableFile     string // empty disables the table export
	TableFormat   string // csv, json, or dual
	DedupeMaxSize int
	MetricsAddr   string
	Verbose       bool
}

// DefaultConfig returns the settings of a plain run with no flags.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "https://api.scryfall.com",
		CatalogFile:   "allsetinfo.csv",
		RulesFile:     "",
		Keyword:       "haste",
		Unique:        "cards",
		Delay:         MinQueryDelay,
		Timeout:       10 * time.Second,
		UserAgent:     "go-scryfall-haste/1.0",
		ImageFile:     "hastecreatures1.png",
		TableFile:     "",
		TableFormat:   "csv",
		DedupeMaxSize: 4096,
		MetricsAddr:   "",
		Verbose:       false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.CatalogFile == "" {
		return fmt.Errorf("catalog file cannot be empty")
	}
	if strings.TrimSpace(c.Keyword) == "" {
		return fmt.Errorf("keyword cannot be empty")
	}
	switch c.Unique {
	case "cards", "prints", "art":
	default:
		return fmt.Errorf("unique mode must be cards, prints, or art")
	}
	if c.Delay < MinQueryDelay {
		return fmt.Errorf("delay (%s) cannot be below %s", c.Delay, MinQueryDelay)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.ImageFile == "" {
		return fmt.Errorf("image file cannot be empty")
	}
	if !strings.EqualFold(filepath.Ext(c.ImageFile), ".png") {
		return fmt.Errorf("image file must have a .png extension")
	}
	if c.TableFile != "" && c.TableFormat != "csv" && c.TableFormat != "json" && c.TableFormat != "dual" {
		return fmt.Errorf("table format must be csv, json, or dual")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}
