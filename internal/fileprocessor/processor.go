// Package fileprocessor handles file selection and per file processing.
package fileprocessor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/compat"
	"github.com/yinxiangshi/modrewrite/internal/options"
	"github.com/yinxiangshi/modrewrite/internal/pipeline"
)

// OutputSuffix is appended to the input name to generate output file names.
const OutputSuffix = ".rewritten.mrmd"

// ProcessFile rewrites a single mod file using the shared pipeline.
func ProcessFile(ctx context.Context, logger *log.Logger, p *pipeline.Pipeline, opts options.Program) (*compat.Result, error) {
	if !opts.Quiet {
		logger.Info("Processing mod", log.String("file", opts.Input))
	}

	result, err := p.Execute(ctx, opts)
	if err != nil {
		return result, fmt.Errorf("processing %s: %w", opts.Input, err)
	}
	if !opts.Quiet && opts.Output != "" {
		logger.Info("Wrote mod",
			log.String("file", opts.Output),
			log.Stringer("status", result.Status))
	}
	return result, nil
}

// GetFilesToProcess returns list of files to process based on options
func GetFilesToProcess(opts *options.Program) ([]string, error) {
	if opts.Batch != "" {
		matches, err := filepath.Glob(opts.Batch)
		if err != nil {
			return nil, fmt.Errorf("globbing batch pattern: %w", err)
		}
		return matches, nil
	}
	return []string{opts.Input}, nil
}

// GenerateOutputFilename generates output filename for a given input file
func GenerateOutputFilename(inputFile string) string {
	ext := filepath.Ext(inputFile)
	return inputFile[:len(inputFile)-len(ext)] + OutputSuffix
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	logger.Info("modrewrite", log.String("version", buildinfo.Version(version, commit, date)))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}
