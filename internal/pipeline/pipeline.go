// Package pipeline orchestrates the rewrite workflow stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/cache"
	"github.com/yinxiangshi/modrewrite/internal/compat"
	"github.com/yinxiangshi/modrewrite/internal/detector"
	"github.com/yinxiangshi/modrewrite/internal/events"
	"github.com/yinxiangshi/modrewrite/internal/loader"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/options"
	"github.com/yinxiangshi/modrewrite/internal/platform"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
	"github.com/yinxiangshi/modrewrite/internal/rewrite/rules"
	"github.com/yinxiangshi/modrewrite/internal/ruleset"
	"github.com/yinxiangshi/modrewrite/internal/verification"
	"go.opentelemetry.io/otel/trace"
)

// Config contains the settings that are shared by all processed mods.
type Config struct {
	Version        string               // program version, part of the cache fingerprint
	TracerProvider trace.TracerProvider // optional
	Process        compat.ProcessLoader // optional
}

// Stats counts the load results of all processed mods.
type Stats struct {
	Loaded    int
	Rewritten int
	Rejected  int
}

// Pipeline orchestrates the complete rewrite workflow. The reference
// assemblies, rules and cache are set up once and reused for every mod.
type Pipeline struct {
	logger    *log.Logger
	detector  *detector.Detector
	loader    *loader.Loader
	engine    *rewrite.Engine
	env       *resolve.Environment
	platforms *platform.Map
	compat    *compat.Loader
	cache     *cache.Store
	stats     Stats
}

// New creates a new rewrite pipeline for the given options.
func New(ctx context.Context, logger *log.Logger, opts options.Program, cfg Config) (*Pipeline, error) {
	p := &Pipeline{
		logger:   logger,
		detector: detector.New(logger),
		loader:   loader.New(logger),
	}

	target, err := p.detector.Detect(opts)
	if err != nil {
		return nil, fmt.Errorf("detecting platform: %w", err)
	}

	p.env, err = p.loader.LoadReferences(opts.References)
	if err != nil {
		return nil, fmt.Errorf("loading reference assemblies: %w", err)
	}
	p.platforms = platform.New(target, p.env)

	ruleSet, err := p.buildRules(opts, p.env)
	if err != nil {
		return nil, err
	}
	p.engine, err = rewrite.New(logger, ruleSet...)
	if err != nil {
		return nil, fmt.Errorf("creating rewrite engine: %w", err)
	}
	fingerprint, err := compat.Fingerprint(cfg.Version, p.env, ruleSet)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting rules: %w", err)
	}

	if err := p.openCache(ctx, opts.Cache, fingerprint); err != nil {
		return nil, err
	}

	bus := events.NewBus(logger)
	bus.Loaded.Subscribe(func(events.ModLoaded) { p.stats.Loaded++ })
	bus.Rewritten.Subscribe(func(events.ModRewritten) { p.stats.Rewritten++ })
	bus.Rejected.Subscribe(func(events.ModRejected) { p.stats.Rejected++ })

	p.compat, err = compat.New(logger, compat.Config{
		Engine:         p.engine,
		Environment:    p.env,
		Platforms:      p.platforms,
		Process:        cfg.Process,
		Cache:          p.cache,
		Fingerprint:    fingerprint,
		Bus:            bus,
		TracerProvider: cfg.TracerProvider,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("creating compatibility loader: %w", err)
	}

	logger.Debug("Pipeline ready",
		log.Stringer("platform", target),
		log.Int("assemblies", len(p.env.Names())),
		log.Int("rules", len(ruleSet)))
	return p, nil
}

// buildRules returns the default rules followed by the rules of the rule
// set file.
func (p *Pipeline) buildRules(opts options.Program, env *resolve.Environment) ([]rewrite.Rule, error) {
	if opts.Rules == "" {
		return rules.Default(), nil
	}

	file, err := ruleset.Load(opts.Rules)
	if err != nil {
		return nil, fmt.Errorf("loading rule set: %w", err)
	}
	additional, err := file.Build(env)
	if err != nil {
		return nil, fmt.Errorf("building rule set: %w", err)
	}
	return rules.Default(additional...), nil
}

// openCache opens the cache database and removes entries of other rule sets.
func (p *Pipeline) openCache(ctx context.Context, path, fingerprint string) error {
	if path == "" {
		return nil
	}

	store, err := cache.Open(path)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	removed, err := store.Prune(ctx, fingerprint)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("pruning cache: %w", err)
	}
	if removed > 0 {
		p.logger.Debug("Removed outdated cache entries", log.Int("entries", int(removed)))
	}
	p.cache = store
	return nil
}

// Execute rewrites the input mod of the options and writes the result to the
// output file. The load result is returned even when the mod was rejected.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program) (*compat.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := p.loader.LoadMod(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("loading mod: %w", err)
	}
	compiledOn, err := p.detector.CompiledOn(opts)
	if err != nil {
		return nil, err
	}

	result, err := p.compat.Load(ctx, compat.Request{
		Data:       data,
		CompiledOn: compiledOn,
	})
	if err != nil {
		return result, err
	}

	if opts.Output == "" {
		return result, nil
	}
	if err := writeModule(opts.Output, result.Module); err != nil {
		return result, err
	}
	p.logger.Debug("Wrote rewritten mod",
		log.String("mod", result.Mod),
		log.String("file", opts.Output))

	if opts.Verify {
		if err := verification.VerifyOutput(p.logger, opts.Output, verification.Input{
			Engine:      p.engine,
			Environment: p.env,
			Platforms:   p.platforms,
		}); err != nil {
			return result, fmt.Errorf("verification failed: %w", err)
		}
		p.logger.Info("Verification successful", log.String("mod", result.Mod))
	}
	return result, nil
}

// Stats returns the counts of all mods processed so far.
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Close releases the cache database.
func (p *Pipeline) Close() error {
	if err := p.cache.Close(); err != nil {
		return fmt.Errorf("closing cache: %w", err)
	}
	return nil
}

func writeModule(path string, mod *module.Module) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing output file: %w", closeErr))
		}
	}()

	if err := mod.Encode(file); err != nil {
		return fmt.Errorf("writing output file %s: %w", path, err)
	}
	return nil
}
