// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// seatreport writes a CSV report of GitHub Copilot seats across an
// enterprise's teams: one row per (team, user) with the user's public
// email, account creation time, last Copilot activity, and the editor
// and plugin that activity came from.
//
// Configuration comes from defaults, an optional YAML or JSONC file,
// a .env file, the ENTERPRISE_SLUG, AUTH_TOKEN, and GITHUB_API_URL
// environment variables, and flags, in increasing precedence. Invalid
// configuration exits before any request is made.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/seatreport/lib/clock"
	"github.com/bureau-foundation/seatreport/lib/config"
	"github.com/bureau-foundation/seatreport/lib/github"
	"github.com/bureau-foundation/seatreport/lib/process"
	"github.com/bureau-foundation/seatreport/lib/profile"
	"github.com/bureau-foundation/seatreport/lib/report"
	"github.com/bureau-foundation/seatreport/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		process.Fatal(err)
	}
}

// flags holds values parsed from the command line. Only flags the
// user actually set override the loaded configuration.
type flags struct {
	set *pflag.FlagSet

	configPath   string
	envFile      string
	enterprise   string
	baseURL      string
	output       string
	mode         string
	unmatched    string
	workers      int
	rps          float64
	maxRetries   int
	compress     string
	digest       bool
	skipEmpty    bool
	recipients   []string
	profileCache string
	cacheTTL     time.Duration
	summary      bool
	logLevel     string
	logFormat    string
	logFile      string
	version      bool
	help         bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	parsed := &flags{}
	flagSet := pflag.NewFlagSet("seatreport", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	parsed.set = flagSet

	flagSet.StringVar(&parsed.configPath, "config", "", "YAML or JSONC config file (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&parsed.envFile, "env-file", "", "dotenv file to load (default: .env if present)")
	flagSet.StringVar(&parsed.enterprise, "enterprise", "", "enterprise slug (default: $"+config.EnvEnterprise+")")
	flagSet.StringVar(&parsed.baseURL, "base-url", "", "REST API root, https://HOST/api/v3 for GitHub Enterprise Server")
	flagSet.StringVarP(&parsed.output, "output", "o", "", `report path, or "-" for stdout`)
	flagSet.StringVar(&parsed.mode, "mode", "", "join mode: memberships or seats")
	flagSet.StringVar(&parsed.unmatched, "unmatched", "", "members without a seat: emit or drop")
	flagSet.IntVar(&parsed.workers, "workers", 0, "concurrent membership and profile requests")
	flagSet.Float64Var(&parsed.rps, "rps", 0, "maximum requests per second (0: unlimited)")
	flagSet.IntVar(&parsed.maxRetries, "max-retries", 0, "retries for transient API failures (0: none)")
	flagSet.StringVar(&parsed.compress, "compress", "", "compress the report: none, gzip, zstd, or lz4")
	flagSet.BoolVar(&parsed.digest, "digest", false, "write a BLAKE3 digest next to the report")
	flagSet.BoolVar(&parsed.skipEmpty, "skip-empty", false, "write nothing when the report has no rows")
	flagSet.StringArrayVar(&parsed.recipients, "recipient", nil, "age public key to encrypt the report to (repeatable)")
	flagSet.StringVar(&parsed.profileCache, "profile-cache", "", "cache user profiles in this file between runs")
	flagSet.DurationVar(&parsed.cacheTTL, "cache-ttl", 0, "how long cached profiles stay valid")
	flagSet.BoolVar(&parsed.summary, "summary", false, "print a per-team summary table to stderr")
	flagSet.StringVar(&parsed.logLevel, "log-level", "", "debug, info, warn, or error")
	flagSet.StringVar(&parsed.logFormat, "log-format", "", "auto, text, json, or console")
	flagSet.StringVar(&parsed.logFile, "log-file", "", "also write JSON log records to this file")
	flagSet.BoolVar(&parsed.version, "version", false, "print version information")
	flagSet.BoolVarP(&parsed.help, "help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			parsed.help = true
			return parsed, nil
		}
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return parsed, nil
}

// apply overrides cfg with every flag the user set.
func (parsed *flags) apply(cfg *config.Config) {
	changed := parsed.set.Changed
	if changed("enterprise") {
		cfg.Enterprise = parsed.enterprise
	}
	if changed("base-url") {
		cfg.BaseURL = parsed.baseURL
	}
	if changed("output") {
		cfg.Output.Path = parsed.output
	}
	if changed("mode") {
		cfg.Join.Mode = parsed.mode
	}
	if changed("unmatched") {
		cfg.Join.Unmatched = parsed.unmatched
	}
	if changed("workers") {
		cfg.Fetch.Workers = parsed.workers
	}
	if changed("rps") {
		cfg.Fetch.RequestsPerSecond = parsed.rps
	}
	if changed("max-retries") {
		cfg.Fetch.MaxRetries = parsed.maxRetries
	}
	if changed("compress") {
		cfg.Output.Compression = parsed.compress
	}
	if changed("digest") {
		cfg.Output.Digest = parsed.digest
	}
	if changed("skip-empty") {
		cfg.Output.SkipEmpty = parsed.skipEmpty
	}
	if changed("recipient") {
		cfg.Output.Recipients = parsed.recipients
	}
	if changed("profile-cache") {
		cfg.Cache.Path = parsed.profileCache
	}
	if changed("cache-ttl") {
		cfg.Cache.TTL = parsed.cacheTTL
	}
	if changed("log-level") {
		cfg.Log.Level = parsed.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = parsed.logFormat
	}
	if changed("log-file") {
		cfg.Log.File = parsed.logFile
	}
}

// loadConfig loads, overrides, and validates configuration. environ
// nil means the process environment.
func loadConfig(parsed *flags, environ []string) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: parsed.configPath,
		EnvFile:    parsed.envFile,
		Environ:    environ,
	})
	if err != nil {
		return nil, err
	}
	parsed.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	parsed, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if parsed.help {
		printHelp(stderr, parsed.set)
		return nil
	}
	if parsed.version {
		fmt.Fprintln(stdout, version.Full())
		return nil
	}

	cfg, err := loadConfig(parsed, nil)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.Log, cfg.LogLevel(), stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	return generate(ctx, cfg, parsed.summary, stdout, stderr, logger)
}

// generate runs one report with validated configuration.
func generate(ctx context.Context, cfg *config.Config, summary bool, stdout, stderr io.Writer, logger *slog.Logger) error {
	client, err := github.NewClient(github.Config{
		BaseURL:              cfg.BaseURL,
		Token:                cfg.Token,
		HTTPClient:           &http.Client{Timeout: cfg.Fetch.Timeout},
		Logger:               logger,
		PerPage:              cfg.Fetch.PerPage,
		MaxRetries:           cfg.Fetch.RetryLimit(),
		RetryInitialInterval: cfg.Fetch.RetryInitialInterval,
		RequestsPerSecond:    cfg.Fetch.RequestsPerSecond,
		UserAgent:            version.UserAgent(),
	})
	if err != nil {
		return err
	}

	var cache *profile.Cache
	if cfg.Cache.Path != "" {
		cache, err = profile.OpenCache(cfg.Cache.Path, cfg.Cache.TTL, clock.Real())
		if err != nil {
			return err
		}
		logger.Debug("opened profile cache", "path", cfg.Cache.Path, "entries", cache.Len())
	}

	enricher := profile.New(profile.Config{
		Fetcher: client,
		Cache:   cache,
		Logger:  logger,
	})

	mode, _ := report.ParseJoinMode(cfg.Join.Mode)
	unmatched, _ := report.ParseUnmatchedPolicy(cfg.Join.Unmatched)
	generator, err := report.NewGenerator(report.GeneratorConfig{
		Enterprise: cfg.Enterprise,
		Source:     report.NewGitHubSource(client),
		Enricher:   enricher,
		Policy:     report.Policy{Mode: mode, Unmatched: unmatched},
		Workers:    cfg.Fetch.Workers,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	result, err := generator.Run(ctx)
	if err != nil {
		return err
	}

	fetched, failures := enricher.Stats()
	logger.Info("resolved user profiles", "fetched", fetched, "failures", failures)
	if cache != nil {
		if err := cache.Save(); err != nil {
			logger.Warn("saving profile cache failed", "path", cfg.Cache.Path, "error", err)
		}
	}

	compression, _ := report.ParseCompression(cfg.Output.Compression)
	written, err := report.WriteFile(cfg.Output.Path, result.Rows, report.WriteOptions{
		Compression: compression,
		Recipients:  cfg.Output.Recipients,
		Digest:      cfg.Output.Digest,
		SkipEmpty:   cfg.Output.SkipEmpty,
		Stdout:      stdout,
	})
	if err != nil {
		return err
	}
	if written.Skipped {
		logger.Info("report has no rows, nothing written")
	} else {
		logger.Info("report written",
			"path", written.Path,
			"rows", written.Rows,
			"bytes", written.Bytes,
			"blake3", written.Digest,
		)
	}

	if summary {
		fmt.Fprintln(stderr, report.RenderSummary(result.Rows))
	}
	return nil
}

func printHelp(writer io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(writer, `seatreport: GitHub Copilot seat report for an enterprise.

Lists the enterprise's teams, each team's members, and every Copilot
seat, then writes one CSV row per (team, user) with profile and
last-activity details.

Required configuration:
  %s   enterprise slug (or --enterprise)
  %s        token with enterprise admin read access

Usage:
  seatreport [flags]

Flags:
%s`, config.EnvEnterprise, config.EnvToken, flagSet.FlagUsages())
}
