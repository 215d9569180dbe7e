// Package compat implements the compatibility loader that rewrites a mod for
// the current platform and decides whether it can be loaded.
package compat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/cache"
	"github.com/yinxiangshi/modrewrite/internal/events"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/platform"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/yinxiangshi/modrewrite/internal/compat"

// ProcessLoader makes the types of a module available in the host process.
type ProcessLoader interface {
	Load(ctx context.Context, mod *module.Module) error
}

// ProcessLoaderFunc adapts a function to the ProcessLoader interface.
type ProcessLoaderFunc func(ctx context.Context, mod *module.Module) error

// Load calls f(ctx, mod).
func (f ProcessLoaderFunc) Load(ctx context.Context, mod *module.Module) error {
	return f(ctx, mod)
}

// Config contains the shared collaborators of all load passes. Everything in
// it is read only after construction.
type Config struct {
	Engine      *rewrite.Engine
	Environment *resolve.Environment
	Platforms   *platform.Map
	Process     ProcessLoader // optional, modules are only rewritten when not set

	Cache       *cache.Store // optional
	Fingerprint string       // rule set and environment fingerprint used as part of the cache key

	Bus            *events.Bus          // optional
	TracerProvider trace.TracerProvider // optional, defaults to the global provider
}

// Request is a single mod to load.
type Request struct {
	Data       []byte            // compiled mod binary
	CompiledOn platform.Platform // platform the mod was built on, detected from its references when empty
}

// Loader runs load passes. It does not keep any per mod state and can be
// reused for any number of mods.
type Loader struct {
	logger *log.Logger
	cfg    Config
	tracer trace.Tracer
}

// New returns a new loader.
func New(logger *log.Logger, cfg Config) (*Loader, error) {
	switch {
	case cfg.Engine == nil:
		return nil, errors.New("rewrite engine is required")
	case cfg.Environment == nil:
		return nil, errors.New("environment is required")
	case cfg.Platforms == nil:
		return nil, errors.New("platform assembly map is required")
	}

	provider := cfg.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &Loader{
		logger: logger,
		cfg:    cfg,
		tracer: provider.Tracer(tracerName),
	}, nil
}

// Load decodes, rewrites and loads a mod. The result is returned for every
// load attempt. The error is set when the mod was rejected or failed to load.
func (l *Loader) Load(ctx context.Context, req Request) (*Result, error) {
	ctx, span := l.tracer.Start(ctx, "compat.Load", trace.WithAttributes(
		attribute.String("modrewrite.platform", l.cfg.Platforms.Platform().String()),
		attribute.Int("modrewrite.input_size", len(req.Data)),
	))
	defer span.End()

	result, err := l.load(ctx, req)

	span.SetAttributes(
		attribute.String("modrewrite.mod", result.Mod),
		attribute.String("modrewrite.status", result.Status.String()),
		attribute.Bool("modrewrite.changed", result.Changed()),
		attribute.Bool("modrewrite.cached", result.Cached),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result.Status.String())
	}
	return result, err
}

func (l *Loader) load(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}

	platformKey := l.cfg.Platforms.Platform().String()
	if req.CompiledOn != "" {
		platformKey += "/" + req.CompiledOn.String()
	}
	key := cache.NewKey(req.Data, platformKey, l.cfg.Fingerprint)
	if l.cfg.Cache != nil {
		if err := l.loadCached(ctx, key, result); err != nil {
			l.logger.Warn("Ignoring cached module", log.Err(err))
		} else if result.Module != nil {
			return result, l.handOff(ctx, result)
		}
	}

	mod, err := module.Decode(req.Data)
	if err != nil {
		result.Status = Failed
		result.Err = &rewrite.Error{
			Kind:    rewrite.KindParse,
			Message: "mod could not be loaded",
			Cause:   err,
		}
		l.logger.Error("Mod could not be loaded", log.Err(err))
		return result, result.Err
	}
	result.Module = mod
	result.Mod = mod.Name

	if err := l.rewrite(req, result); err != nil {
		return result, err
	}

	if result.Changed() && l.cfg.Cache != nil {
		l.storeCached(ctx, key, result)
	}
	return result, l.handOff(ctx, result)
}

// rewrite runs the engine over the decoded module and decides whether the mod
// can be loaded.
func (l *Loader) rewrite(req Request, result *Result) error {
	mod := result.Module
	result.PlatformChanged = l.platformChanged(mod, req.CompiledOn)

	outcome, err := l.cfg.Engine.Rewrite(rewrite.Input{
		Module:          mod,
		Environment:     l.cfg.Environment,
		Platforms:       l.cfg.Platforms,
		PlatformChanged: result.PlatformChanged,
	})
	if err != nil {
		result.Status = Failed
		result.Err = fmt.Errorf("rewriting mod '%s': %w", mod.Name, err)
		l.logger.Error("Mod rewrite aborted", log.String("mod", mod.Name), log.Err(err))
		return result.Err
	}
	result.Outcome = outcome

	for _, flag := range outcome.Flags {
		l.logger.Warn("Mod uses unsupported functionality",
			log.String("mod", mod.Name),
			log.String("usage", flag.Phrase),
			log.String("severity", string(flag.Kind)))
	}

	if outcome.Failed() {
		result.Status = Rejected
		result.Err = &rewrite.Error{
			Kind:      rewrite.KindUnresolved,
			Reference: mod.Name,
			Message:   "mod rejected",
			Cause:     errors.New(Diagnostic(outcome)),
		}
		l.logRejection(mod.Name, outcome)
		l.publishRejected(mod.Name, outcome)
		return result.Err
	}

	if result.PlatformChanged {
		result.ReferencesSwapped = l.cfg.Platforms.SwapReferences(mod)
	}

	if result.Changed() {
		result.Status = LoadedWithChanges
		l.logger.Debug("Rewrote mod for compatibility",
			log.String("mod", mod.Name),
			log.String("changes", outcome.Summary()))
		if l.cfg.Bus != nil {
			l.cfg.Bus.Rewritten.Publish(events.ModRewritten{
				Mod:      mod.Name,
				Platform: l.cfg.Platforms.Platform().String(),
				Phrases:  outcome.Phrases,
			})
		}
		return nil
	}

	result.Status = Loaded
	return nil
}

// platformChanged returns whether the mod was built for the other game build.
func (l *Loader) platformChanged(mod *module.Module, compiledOn platform.Platform) bool {
	if compiledOn != "" {
		return !compiledOn.SameBuild(l.cfg.Platforms.Platform())
	}
	return l.cfg.Platforms.ReferencesForeign(mod)
}

// handOff passes the module to the process loader.
func (l *Loader) handOff(ctx context.Context, result *Result) error {
	if l.cfg.Process != nil {
		if err := l.cfg.Process.Load(ctx, result.Module); err != nil {
			result.Status = Failed
			result.Err = fmt.Errorf("loading mod '%s': %w", result.Mod, err)
			l.logger.Error("Mod could not be loaded", log.String("mod", result.Mod), log.Err(err))
			return result.Err
		}
	}

	l.logger.Info("Loaded mod",
		log.String("mod", result.Mod),
		log.Stringer("status", result.Status))
	if l.cfg.Bus != nil {
		l.cfg.Bus.Loaded.Publish(events.ModLoaded{
			Mod:     result.Mod,
			Changed: result.Changed(),
			Cached:  result.Cached,
		})
	}
	return nil
}

func (l *Loader) loadCached(ctx context.Context, key cache.Key, result *Result) error {
	entry, ok, err := l.cfg.Cache.Lookup(ctx, key)
	if err != nil || !ok {
		return err
	}
	mod, err := module.Decode(entry.Data)
	if err != nil {
		return fmt.Errorf("decoding cached module: %w", err)
	}

	result.Module = mod
	result.Mod = mod.Name
	result.Cached = true
	result.Outcome = &rewrite.Outcome{Changed: true, Phrases: entry.Phrases}
	result.Status = LoadedWithChanges
	l.logger.Debug("Using cached rewrite",
		log.String("mod", mod.Name),
		log.String("changes", strings.Join(entry.Phrases, ", ")))
	return nil
}

func (l *Loader) storeCached(ctx context.Context, key cache.Key, result *Result) {
	data, err := result.Module.Bytes()
	if err == nil {
		err = l.cfg.Cache.Put(ctx, key, cache.Entry{
			ModName: result.Mod,
			Phrases: result.Outcome.Phrases,
			Data:    data,
		})
	}
	if err != nil {
		l.logger.Warn("Caching rewritten mod failed", log.String("mod", result.Mod), log.Err(err))
	}
}

func (l *Loader) logRejection(name string, outcome *rewrite.Outcome) {
	for _, unresolved := range outcome.Unresolved {
		l.logger.Error("Unresolved reference",
			log.String("mod", name),
			log.Stringer("reference", unresolved))
	}
	l.logger.Error("Skipped mod, it is not compatible with this game version or platform",
		log.String("mod", name),
		log.String("details", Diagnostic(outcome)))
}

func (l *Loader) publishRejected(name string, outcome *rewrite.Outcome) {
	if l.cfg.Bus == nil {
		return
	}
	reasons := make([]string, 0, len(outcome.Unresolved)+len(outcome.Flags))
	for _, unresolved := range outcome.Unresolved {
		reasons = append(reasons, unresolved.String())
	}
	for _, flag := range outcome.Flags {
		if flag.Kind == rewrite.FlagNotCompatible {
			reasons = append(reasons, flag.Phrase)
		}
	}
	l.cfg.Bus.Rejected.Publish(events.ModRejected{
		Mod:      name,
		Platform: l.cfg.Platforms.Platform().String(),
		Reasons:  reasons,
	})
}

// Diagnostic returns a single line describing why a rewrite outcome failed,
// including the rewrites that were applied before.
func Diagnostic(outcome *rewrite.Outcome) string {
	var parts []string
	for _, unresolved := range outcome.Unresolved {
		parts = append(parts, "unresolved "+unresolved.String())
	}
	for _, flag := range outcome.Flags {
		if flag.Kind == rewrite.FlagNotCompatible {
			parts = append(parts, flag.Phrase)
		}
	}
	if len(outcome.Phrases) > 0 {
		parts = append(parts, "rewrote "+outcome.Summary())
	}
	return strings.Join(parts, "; ")
}

// Fingerprint returns an identifier of the rule set and the reference
// assemblies. It changes when rules are added, removed, reordered or
// reconfigured and when any loaded reference assembly changes.
func Fingerprint(version string, env *resolve.Environment, rules []rewrite.Rule) (string, error) {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\n", version)
	for _, rule := range rules {
		_, _ = fmt.Fprintf(h, "%T|%s|%s\n", rule, rule.Phrase(), rule.Criteria())
	}

	if env != nil {
		for _, name := range env.Names() {
			assembly, _ := env.Assembly(name)
			data, err := assembly.Bytes()
			if err != nil {
				return "", fmt.Errorf("encoding reference assembly '%s': %w", name, err)
			}
			_, _ = fmt.Fprintf(h, "%s|%d\n", name, len(data))
			_, _ = h.Write(data)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
