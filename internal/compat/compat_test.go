package compat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/cache"
	"github.com/yinxiangshi/modrewrite/internal/events"
	"github.com/yinxiangshi/modrewrite/internal/instruction"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/module/moduletest"
	"github.com/yinxiangshi/modrewrite/internal/platform"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
	"github.com/yinxiangshi/modrewrite/internal/rewrite/rules"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var windowsGame = module.AssemblyName{Name: "Stardew Valley", Version: module.Version{Major: 1, Minor: 6}}

// recordingProcess records the modules handed to the process loader.
type recordingProcess struct {
	loaded []string
	err    error
}

func (p *recordingProcess) Load(_ context.Context, mod *module.Module) error {
	if p.err != nil {
		return p.err
	}
	p.loaded = append(p.loaded, mod.Name)
	return nil
}

type fixture struct {
	loader  *Loader
	process *recordingProcess
	bus     *events.Bus
	spans   *tracetest.SpanRecorder
}

func gameEnvironment() *resolve.Environment {
	game := moduletest.Assembly(moduletest.Game)
	farmer := moduletest.AddType(game, "StardewValley", "Farmer")
	moduletest.AddProperty(farmer, "money", moduletest.SystemType("Int32"))
	return resolve.NewEnvironment(game)
}

func newFixture(t *testing.T, store *cache.Store, extra ...rewrite.Rule) *fixture {
	t.Helper()
	return newFixtureWithEnvironment(t, gameEnvironment(), store, extra...)
}

func newFixtureWithEnvironment(t *testing.T, env *resolve.Environment, store *cache.Store, extra ...rewrite.Rule) *fixture {
	t.Helper()

	logger := log.NewTestLogger(t)
	ruleSet := rules.Default(extra...)
	fingerprint, err := Fingerprint("test", env, ruleSet)
	assert.NoError(t, err)
	engine, err := rewrite.New(logger, ruleSet...)
	assert.NoError(t, err)

	f := &fixture{
		process: &recordingProcess{},
		bus:     events.NewBus(logger),
		spans:   tracetest.NewSpanRecorder(),
	}
	f.loader, err = New(logger, Config{
		Engine:         engine,
		Environment:    env,
		Platforms:      platform.New(platform.Linux, env),
		Process:        f.process,
		Cache:          store,
		Fingerprint:    fingerprint,
		Bus:            f.bus,
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.spans)),
	})
	assert.NoError(t, err)
	return f
}

func encode(t *testing.T, mod *module.Module) []byte {
	t.Helper()
	data, err := mod.Bytes()
	assert.NoError(t, err)
	return data
}

func compatibleMod(t *testing.T) []byte {
	t.Helper()
	mod, _ := moduletest.Mod(
		moduletest.Ins(instruction.Ldstr, "hello"),
		moduletest.Ins(instruction.Pop, nil),
		moduletest.Ins(instruction.Ret, nil),
	)
	return encode(t, mod)
}

func legacyMod(t *testing.T) []byte {
	t.Helper()
	mod, _ := moduletest.Mod(
		moduletest.Ins(instruction.Ldarg0, nil),
		moduletest.Ins(instruction.Ldfld, moduletest.FieldRef(moduletest.GameType("StardewValley", "Farmer"),
			"money", moduletest.SystemType("Int32"))),
		moduletest.Ins(instruction.Pop, nil),
		moduletest.Ins(instruction.Ret, nil),
	)
	mod.Attributes.Set(module.Required32Bit)
	return encode(t, mod)
}

func brokenMod(t *testing.T) []byte {
	t.Helper()
	mod, _ := moduletest.Mod(
		moduletest.Ins(instruction.Ldsfld, moduletest.FieldRef(moduletest.GameType("StardewValley", "Chest"),
			"capacity", moduletest.SystemType("Int32"))),
		moduletest.Ins(instruction.Pop, nil),
		moduletest.Ins(instruction.Ret, nil),
	)
	return encode(t, mod)
}

func windowsMod(t *testing.T) []byte {
	t.Helper()
	mod, _ := moduletest.Mod(
		moduletest.Ins(instruction.Castclass, moduletest.TypeIn(windowsGame, "StardewValley", "Farmer")),
		moduletest.Ins(instruction.Ret, nil),
	)
	mod.RemoveAssemblyReference(moduletest.Game.Name)
	mod.AddAssemblyReference(windowsGame)
	return encode(t, mod)
}

func TestNew(t *testing.T) {
	logger := log.NewTestLogger(t)
	env := gameEnvironment()
	engine, err := rewrite.New(logger)
	assert.NoError(t, err)
	platforms := platform.New(platform.Linux, env)

	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{"no engine", Config{Environment: env, Platforms: platforms}, "rewrite engine is required"},
		{"no environment", Config{Engine: engine, Platforms: platforms}, "environment is required"},
		{"no platforms", Config{Engine: engine, Environment: env}, "platform assembly map is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := New(logger, tt.cfg)
			assert.True(t, loader == nil)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}

	loader, err := New(logger, Config{Engine: engine, Environment: env, Platforms: platforms})
	assert.NoError(t, err)
	assert.NotNil(t, loader)
}

//nolint:funlen // test functions can be long
func TestLoader_Load(t *testing.T) {
	t.Run("compatible mod", func(t *testing.T) {
		f := newFixture(t, nil)
		var loaded []events.ModLoaded
		f.bus.Loaded.Subscribe(func(e events.ModLoaded) { loaded = append(loaded, e) })

		result, err := f.loader.Load(context.Background(), Request{Data: compatibleMod(t)})
		assert.NoError(t, err)
		assert.Equal(t, Loaded, result.Status)
		assert.Equal(t, moduletest.ModName, result.Mod)
		assert.False(t, result.Changed())
		assert.False(t, result.PlatformChanged)
		assert.True(t, result.IsLoaded())
		assert.Equal(t, "TestMod", strings.Join(f.process.loaded, " "))
		assert.Len(t, loaded, 1)
		assert.False(t, loaded[0].Changed)
	})

	t.Run("rewritten mod", func(t *testing.T) {
		f := newFixture(t, nil)
		var rewritten []events.ModRewritten
		f.bus.Rewritten.Subscribe(func(e events.ModRewritten) { rewritten = append(rewritten, e) })

		result, err := f.loader.Load(context.Background(), Request{Data: legacyMod(t)})
		assert.NoError(t, err)
		assert.Equal(t, LoadedWithChanges, result.Status)
		assert.True(t, result.Changed())
		assert.False(t, result.Module.Attributes.Has(module.Required32Bit))
		assert.Equal(t, "32-bit architecture, Farmer.money field (now a property)", result.Outcome.Summary())
		assert.Len(t, rewritten, 1)
		assert.Equal(t, "linux", rewritten[0].Platform)
		assert.Len(t, rewritten[0].Phrases, 2)
	})

	t.Run("rejected mod", func(t *testing.T) {
		f := newFixture(t, nil)
		var rejected []events.ModRejected
		f.bus.Rejected.Subscribe(func(e events.ModRejected) { rejected = append(rejected, e) })

		result, err := f.loader.Load(context.Background(), Request{Data: brokenMod(t)})
		assert.True(t, errors.Is(err, rewrite.ErrUnresolved))
		assert.ErrorContains(t, err, "StardewValley.Chest::capacity")
		assert.ErrorContains(t, err, "fields now properties")
		assert.Equal(t, Rejected, result.Status)
		assert.False(t, result.IsLoaded())
		assert.Empty(t, f.process.loaded)
		assert.Len(t, rejected, 1)
		assert.Len(t, rejected[0].Reasons, 1)
		assert.Contains(t, rejected[0].Reasons[0], "field StardewValley.Chest::capacity")
	})

	t.Run("corrupt binary", func(t *testing.T) {
		f := newFixture(t, nil)
		result, err := f.loader.Load(context.Background(), Request{Data: []byte("not a module")})
		assert.True(t, errors.Is(err, rewrite.ErrParse))
		assert.Equal(t, Failed, result.Status)
		assert.True(t, result.Module == nil)
		assert.Empty(t, f.process.loaded)
	})

	t.Run("invariant violation", func(t *testing.T) {
		removal, err := rules.NewVirtualEntryCallRemoval("StardewValley.Farmer", "Entry")
		assert.NoError(t, err)
		f := newFixture(t, nil, removal)

		mod, _ := moduletest.Mod(
			moduletest.Ins(instruction.Call, moduletest.MethodRef(moduletest.GameType("StardewValley", "Farmer"),
				"Entry", moduletest.Void(), moduletest.SystemType("Object"))),
			moduletest.Ins(instruction.Ret, nil),
		)
		result, err := f.loader.Load(context.Background(), Request{Data: encode(t, mod)})
		assert.True(t, errors.Is(err, rewrite.ErrInvariant))
		assert.Equal(t, Failed, result.Status)
		assert.True(t, result.Outcome == nil)
	})

	t.Run("process loader error", func(t *testing.T) {
		f := newFixture(t, nil)
		f.process.err = errors.New("type load failed")

		result, err := f.loader.Load(context.Background(), Request{Data: compatibleMod(t)})
		assert.ErrorContains(t, err, "type load failed")
		assert.Equal(t, Failed, result.Status)
	})
}

func TestLoader_PlatformChanged(t *testing.T) {
	tests := []struct {
		name       string
		data       func(t *testing.T) []byte
		compiledOn platform.Platform
		changed    bool
		swapped    bool
	}{
		{"same build", compatibleMod, "", false, false},
		{"foreign references", windowsMod, "", true, true},
		{"compiled on windows", compatibleMod, platform.Windows, true, false},
		{"compiled on mac", windowsMod, platform.Mac, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			result, err := f.loader.Load(context.Background(), Request{Data: tt.data(t), CompiledOn: tt.compiledOn})
			assert.NoError(t, err)
			assert.Equal(t, tt.changed, result.PlatformChanged)
			assert.Equal(t, tt.swapped, result.ReferencesSwapped)
		})
	}

	t.Run("references are swapped", func(t *testing.T) {
		f := newFixture(t, nil)
		result, err := f.loader.Load(context.Background(), Request{Data: windowsMod(t)})
		assert.NoError(t, err)
		assert.Equal(t, LoadedWithChanges, result.Status)
		assert.True(t, result.Module.AssemblyReference("Stardew Valley") == nil)
		assert.NotNil(t, result.Module.AssemblyReference("StardewValley"))
	})
}

func TestLoader_Cache(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	assert.NoError(t, err)
	defer func() { _ = store.Close() }()

	f := newFixture(t, store)
	data := legacyMod(t)

	first, err := f.loader.Load(context.Background(), Request{Data: data})
	assert.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := f.loader.Load(context.Background(), Request{Data: data})
	assert.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, LoadedWithChanges, second.Status)
	assert.Equal(t, first.Outcome.Summary(), second.Outcome.Summary())
	assert.Equal(t, string(encode(t, first.Module)), string(encode(t, second.Module)))
	assert.Equal(t, "TestMod TestMod", strings.Join(f.process.loaded, " "))

	// unchanged mods are not cached
	compatible := compatibleMod(t)
	_, err = f.loader.Load(context.Background(), Request{Data: compatible})
	assert.NoError(t, err)
	result, err := f.loader.Load(context.Background(), Request{Data: compatible})
	assert.NoError(t, err)
	assert.False(t, result.Cached)
}

func TestLoader_CacheInvalidation(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	assert.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	data := legacyMod(t)
	load := func(t *testing.T, f *fixture) *Result {
		t.Helper()
		result, err := f.loader.Load(ctx, Request{Data: data})
		assert.NoError(t, err)
		return result
	}

	original := newFixture(t, store, helperSubstitution(t, "NewA", "Helper"))
	assert.False(t, load(t, original).Cached)
	assert.True(t, load(t, original).Cached)

	t.Run("changed rule target", func(t *testing.T) {
		retargeted := newFixture(t, store, helperSubstitution(t, "NewB", "Other"))
		assert.False(t, load(t, retargeted).Cached)
	})

	t.Run("changed reference assemblies", func(t *testing.T) {
		updated := newFixtureWithEnvironment(t, updatedGameEnvironment(), store, helperSubstitution(t, "NewA", "Helper"))
		result := load(t, updated)
		assert.False(t, result.Cached)
		assert.Equal(t, LoadedWithChanges, result.Status)
	})
}

func TestLoader_Tracing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.loader.Load(context.Background(), Request{Data: compatibleMod(t)})
	assert.NoError(t, err)
	_, err = f.loader.Load(context.Background(), Request{Data: brokenMod(t)})
	assert.Error(t, err)

	spans := f.spans.Ended()
	assert.Len(t, spans, 2)
	assert.Equal(t, "compat.Load", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "rejected", spans[1].Status().Description)
}

func TestDiagnostic(t *testing.T) {
	outcome := &rewrite.Outcome{
		Phrases: []string{"32-bit architecture"},
		Unresolved: []rewrite.Unresolved{
			{Kind: rewrite.TypeReference, Reference: "StardewValley.Chest"},
		},
		Flags: []rewrite.Flag{
			{Kind: rewrite.FlagWarning, Phrase: "uses the console directly"},
			{Kind: rewrite.FlagNotCompatible, Phrase: "starts external processes"},
		},
	}
	assert.Equal(t, "unresolved type StardewValley.Chest; starts external processes; rewrote 32-bit architecture",
		Diagnostic(outcome))
}

func TestFingerprint(t *testing.T) {
	env := gameEnvironment()
	defaults := rules.Default()
	fingerprint := mustFingerprint(t, "1.0.0", env, defaults)
	assert.Equal(t, 64, len(fingerprint))
	assert.Equal(t, fingerprint, mustFingerprint(t, "1.0.0", gameEnvironment(), rules.Default()))
	assert.False(t, fingerprint == mustFingerprint(t, "1.0.1", env, defaults))

	reordered := append([]rewrite.Rule{defaults[1], defaults[0]}, defaults[2:]...)
	assert.False(t, fingerprint == mustFingerprint(t, "1.0.0", env, reordered))

	first := helperSubstitution(t, "NewA", "Helper")
	second := helperSubstitution(t, "NewB", "Other")
	assert.Equal(t, first.Phrase(), second.Phrase())
	assert.False(t, mustFingerprint(t, "1.0.0", env, rules.Default(first)) ==
		mustFingerprint(t, "1.0.0", env, rules.Default(second)))

	assert.False(t, fingerprint == mustFingerprint(t, "1.0.0", updatedGameEnvironment(), defaults))
	assert.False(t, fingerprint == mustFingerprint(t, "1.0.0", nil, defaults))
}

func mustFingerprint(t *testing.T, version string, env *resolve.Environment, ruleSet []rewrite.Rule) string {
	t.Helper()
	fingerprint, err := Fingerprint(version, env, ruleSet)
	assert.NoError(t, err)
	return fingerprint
}

func helperSubstitution(t *testing.T, namespace, name string) rewrite.Rule {
	t.Helper()
	rule, err := rules.NewTypeSubstitution("OldNamespace.Helper", moduletest.GameType(namespace, name))
	assert.NoError(t, err)
	return rule
}

// updatedGameEnvironment returns the game assembly of gameEnvironment with an
// additional type, as shipped by a game update.
func updatedGameEnvironment() *resolve.Environment {
	env := gameEnvironment()
	game, _ := env.Assembly(moduletest.Game.Name)
	moduletest.AddType(game, "StardewValley", "Horse")
	return env
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "rejected", Rejected.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "loaded with changes", LoadedWithChanges.String())
	assert.Equal(t, "unknown", Status(42).String())
}
