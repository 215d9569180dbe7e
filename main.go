// Package main implements the mod rewriter that makes mods built for another
// game version or platform loadable.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/cli"
	"github.com/yinxiangshi/modrewrite/internal/config"
	"github.com/yinxiangshi/modrewrite/internal/fileprocessor"
	"github.com/yinxiangshi/modrewrite/internal/options"
	"github.com/yinxiangshi/modrewrite/internal/pipeline"
	"github.com/yinxiangshi/modrewrite/internal/telemetry"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	opts, err := cli.ParseFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			fileprocessor.PrintBanner(logger, opts, version, commit, date)
			usageErr.ShowUsage()
		} else {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}

	envCfg, err := config.ParseEnv()
	if err != nil {
		config.CreateLogger(opts.Debug, opts.Quiet).Fatal(err.Error())
	}
	envCfg.Apply(&opts)

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	fileprocessor.PrintBanner(logger, opts, version, commit, date)

	if !run(ctx, logger, opts) {
		os.Exit(1)
	}
}

// run processes all input files and returns whether every mod was loaded.
func run(ctx context.Context, logger *log.Logger, opts options.Program) bool {
	provider, shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:  opts.Telemetry.Enabled,
		Endpoint: opts.Telemetry.Endpoint,
		Version:  buildinfo.Version(version, commit, date),
	})
	if err != nil {
		logger.Error("Setting up tracing failed", log.Err(err))
		return false
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Flushing traces failed", log.Err(err))
		}
	}()

	p, err := pipeline.New(ctx, logger, opts, pipeline.Config{
		Version:        version,
		TracerProvider: provider,
	})
	if err != nil {
		logger.Error("Setting up rewrite pipeline failed", log.Err(err))
		return false
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("Closing pipeline failed", log.Err(err))
		}
	}()

	files, err := fileprocessor.GetFilesToProcess(&opts)
	if err != nil {
		logger.Error("Selecting input files failed", log.Err(err))
		return false
	}

	ok := true
	for _, file := range files {
		opts.Input = file
		if len(files) > 1 || opts.Output == "" {
			opts.Output = fileprocessor.GenerateOutputFilename(file)
		}

		if _, err := fileprocessor.ProcessFile(ctx, logger, p, opts); err != nil {
			// Handle context cancellation (Ctrl+C) gracefully
			if errors.Is(err, context.Canceled) {
				logger.Info("Operation cancelled")
				return false
			}
			logger.Error("Rewriting mod failed", log.String("file", file), log.Err(err))
			ok = false
		}
	}

	if len(files) > 1 {
		stats := p.Stats()
		logger.Info("Processed mods",
			log.Int("loaded", stats.Loaded),
			log.Int("rewritten", stats.Rewritten),
			log.Int("rejected", stats.Rejected))
	}
	return ok
}
