// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"

	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/location/provider/geoclue"
	"github.com/wneessen/geo-loc/internal/presenter"
)

const (
	configEnv = "GEOLOC"

	CacheBackendMemory = "memory"
	CacheBackendFile   = "file"
	CacheBackendRedis  = "redis"
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"8"`

	// Allowed values: plain, json, csv, env, human, template
	Format string `fig:"format" default:"plain"`
	// Allowed values: auto, corelocation, geoclue, ip
	Provider string        `fig:"provider" default:"auto"`
	Timeout  time.Duration `fig:"timeout" default:"5s"`
	Verbose  bool          `fig:"verbose"`
	Template string        `fig:"template"`

	GeoClue struct {
		DesktopID string `fig:"desktop_id" default:"geo-loc"`
		// Allowed values: country, city, neighborhood, street, exact
		Accuracy string `fig:"accuracy" default:"exact"`
	} `fig:"geoclue"`

	IPAPI struct {
		Endpoint string `fig:"endpoint" default:"http://ip-api.com/json"`
	} `fig:"ipapi"`

	Cache struct {
		Disable bool `fig:"disable"`
		// Allowed values: memory, file, redis
		Backend string        `fig:"backend" default:"file"`
		TTL     time.Duration `fig:"ttl" default:"10m"`
		Dir     string        `fig:"dir"`
		Redis   struct {
			Addr     string `fig:"addr"`
			Password string `fig:"password"`
			DB       int    `fig:"db"`
		} `fig:"redis"`
	} `fig:"cache"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// Validate checks the values of the Config and fills in values derived from the environment.
// It is called again after command line flags have been applied.
func (c *Config) Validate() error {
	if _, err := presenter.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := location.ParseSelection(c.Provider); err != nil {
		return err
	}
	if _, err := geoclue.ParseAccuracyLevel(c.GeoClue.Accuracy); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		c.Timeout = location.DefaultTimeout
	}
	if c.Locale == "" {
		c.Locale = getLocale()
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendFile:
	case CacheBackendRedis:
		if c.Cache.Redis.Addr == "" && !c.Cache.Disable {
			return fmt.Errorf("cache backend %q requires an address", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("invalid cache TTL: %s", c.Cache.TTL)
	}

	return nil
}

// Selection returns the parsed provider selection.
func (c *Config) Selection() location.Selection {
	sel, _ := location.ParseSelection(c.Provider)
	return sel
}

// OutputFormat returns the parsed output format.
func (c *Config) OutputFormat() presenter.Format {
	format, _ := presenter.ParseFormat(c.Format)
	return format
}

// AccuracyLevel returns the parsed GeoClue accuracy level.
func (c *Config) AccuracyLevel() geoclue.AccuracyLevel {
	level, _ := geoclue.ParseAccuracyLevel(c.GeoClue.Accuracy)
	return level
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if locale == "" {
		locale = os.Getenv("LANG")
	}
	if idx := strings.Index(locale, "."); idx != -1 {
		locale = locale[:idx]
	}
	if locale == "C" || locale == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(locale, "_", "-")
}
