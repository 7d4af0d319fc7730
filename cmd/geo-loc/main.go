// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package main implements the geo-loc command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/wneessen/geo-loc/internal/config"
	"github.com/wneessen/geo-loc/internal/i18n"
	"github.com/wneessen/geo-loc/internal/location"
	"github.com/wneessen/geo-loc/internal/logger"
	"github.com/wneessen/geo-loc/internal/service"
)

const exitUsage = 2

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type options struct {
	configPath string
	format     string
	provider   string
	accuracy   string
	timeout    uint
	noCache    bool
	verbose    bool
	version    bool
	set        map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return exitUsage
	}
	if opts.version {
		_, _ = fmt.Fprintf(stdout, "geo-loc %s (commit: %s, built: %s)\nProviders: %s\n", version, commit, date,
			availableProviders())
		return 0
	}

	conf, err := loadConfig(opts)
	if err != nil {
		return fail(stderr, err)
	}

	log := logger.NewLogger(conf.LogLevel, stderr)
	t, err := i18n.New(conf.Locale)
	if err != nil {
		return fail(stderr, fmt.Errorf("failed to initialize localizer: %w", err))
	}

	serv, err := service.New(conf, log, t)
	if err != nil {
		return fail(stderr, err)
	}
	defer func() {
		if err := serv.Close(); err != nil {
			log.Error("failed to close service", logger.Err(err))
		}
	}()

	if err = serv.Run(ctx, stdout, stderr); err != nil {
		return fail(stderr, err)
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}
	flags := flag.NewFlagSet("geo-loc", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.configPath, "config", "", "path to the config file")
	flags.StringVar(&opts.format, "format", "plain", "output format: plain, json, csv, env, human, template")
	flags.StringVar(&opts.provider, "provider", "auto", "location provider: auto, corelocation, geoclue, ip")
	flags.StringVar(&opts.accuracy, "accuracy", "exact",
		"requested GeoClue accuracy: country, city, neighborhood, street, exact")
	flags.UintVar(&opts.timeout, "timeout", 5, "timeout in seconds for a single provider attempt")
	flags.BoolVar(&opts.noCache, "no-cache", false, "bypass the fix cache")
	flags.BoolVar(&opts.verbose, "verbose", false, "print diagnostics to stderr")
	flags.BoolVar(&opts.version, "version", false, "print version information and exit")
	flags.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: geo-loc [flags]\n\n"+
			"Print the host's current geographic location in a pipe-friendly format.\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "geo-loc: unexpected arguments: %s\n", strings.Join(flags.Args(), " "))
		return nil, errors.New("unexpected arguments")
	}
	flags.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, nil
}

// loadConfig reads the configuration and applies the flags that were set explicitly.
func loadConfig(opts *options) (*config.Config, error) {
	path, file := filepath.Dir(opts.configPath), filepath.Base(opts.configPath)
	if opts.configPath == "" {
		path, file = findConfigFile()
	}

	var conf *config.Config
	var err error
	switch {
	case path != "" && file != "":
		conf, err = config.NewFromFile(path, file)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	default:
		conf, err = config.New()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if opts.set["format"] {
		conf.Format = opts.format
	}
	if opts.set["provider"] {
		conf.Provider = opts.provider
	}
	if opts.set["accuracy"] {
		conf.GeoClue.Accuracy = opts.accuracy
	}
	if opts.set["timeout"] {
		conf.Timeout = time.Duration(opts.timeout) * time.Second
	}
	if opts.noCache {
		conf.Cache.Disable = true
	}
	if opts.verbose {
		conf.Verbose = true
	}
	return conf, conf.Validate()
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "geo-loc", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}

func availableProviders() string {
	var names []string
	for _, sel := range location.Selections() {
		if sel != location.Automatic && sel.Available() {
			names = append(names, sel.String())
		}
	}
	return strings.Join(names, ", ")
}

// fail prints the error and returns the exit code of its kind.
func fail(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "geo-loc: %s\n", err)
	return location.ExitCode(err)
}
