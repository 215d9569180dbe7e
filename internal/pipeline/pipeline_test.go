package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/compat"
	"github.com/yinxiangshi/modrewrite/internal/instruction"
	"github.com/yinxiangshi/modrewrite/internal/loader"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/module/moduletest"
	"github.com/yinxiangshi/modrewrite/internal/options"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

func writeTestModule(t *testing.T, path string, mod *module.Module) {
	t.Helper()
	data, err := mod.Bytes()
	assert.NoError(t, err)
	assert.NoError(t, os.WriteFile(path, data, 0600))
}

// referenceDir returns a directory containing the game assembly.
func referenceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	game := moduletest.Assembly(moduletest.Game)
	farmer := moduletest.AddType(game, "StardewValley", "Farmer")
	moduletest.AddProperty(farmer, "money", moduletest.SystemType("Int32"))
	chest := moduletest.AddType(game, "StardewValley.Objects", "Chest")
	chest.AddMethod(moduletest.Constructor())
	writeTestModule(t, filepath.Join(dir, "StardewValley"+loader.FileExtension), game)
	return dir
}

func legacyMod(t *testing.T, dir string) string {
	t.Helper()
	mod, _ := moduletest.Mod(
		moduletest.Ins(instruction.Ldarg0, nil),
		moduletest.Ins(instruction.Ldfld, moduletest.FieldRef(moduletest.GameType("StardewValley", "Farmer"),
			"money", moduletest.SystemType("Int32"))),
		moduletest.Ins(instruction.Pop, nil),
		moduletest.Ins(instruction.Ret, nil),
	)
	path := filepath.Join(dir, "legacy"+loader.FileExtension)
	writeTestModule(t, path, mod)
	return path
}

func chestMod(t *testing.T, dir string) string {
	t.Helper()
	mod, _ := moduletest.Mod(
		moduletest.Ins(instruction.Newobj, moduletest.MethodRef(moduletest.GameType("StardewValley", "Chest"),
			".ctor", moduletest.Void())),
		moduletest.Ins(instruction.Pop, nil),
		moduletest.Ins(instruction.Ret, nil),
	)
	path := filepath.Join(dir, "chest"+loader.FileExtension)
	writeTestModule(t, path, mod)
	return path
}

func newPipeline(t *testing.T, opts options.Program) *Pipeline {
	t.Helper()
	p, err := New(context.Background(), log.NewTestLogger(t), opts, Config{Version: "test"})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func programOptions(t *testing.T) options.Program {
	t.Helper()
	var opts options.Program
	opts.References = []string{referenceDir(t)}
	opts.Platform = "linux"
	return opts
}

//nolint:funlen // test functions can be long
func TestPipeline_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("rewrite, write and verify", func(t *testing.T) {
		dir := t.TempDir()
		opts := programOptions(t)
		opts.Input = legacyMod(t, dir)
		opts.Output = filepath.Join(dir, "legacy.rewritten.mrmd")
		opts.Verify = true

		p := newPipeline(t, opts)
		result, err := p.Execute(ctx, opts)
		assert.NoError(t, err)
		assert.Equal(t, compat.LoadedWithChanges, result.Status)
		assert.Equal(t, "Farmer.money field (now a property)", result.Outcome.Summary())

		written, err := loader.LoadModule(opts.Output)
		assert.NoError(t, err)
		assert.Equal(t, moduletest.ModName, written.Name)

		stats := p.Stats()
		assert.Equal(t, 1, stats.Loaded)
		assert.Equal(t, 1, stats.Rewritten)
		assert.Equal(t, 0, stats.Rejected)
	})

	t.Run("rejected mod writes no output", func(t *testing.T) {
		dir := t.TempDir()
		opts := programOptions(t)
		opts.Input = chestMod(t, dir)
		opts.Output = filepath.Join(dir, "chest.rewritten.mrmd")

		p := newPipeline(t, opts)
		result, err := p.Execute(ctx, opts)
		assert.True(t, errors.Is(err, rewrite.ErrUnresolved))
		assert.Equal(t, compat.Rejected, result.Status)

		_, statErr := os.Stat(opts.Output)
		assert.True(t, os.IsNotExist(statErr))
		assert.Equal(t, 1, p.Stats().Rejected)
		assert.Equal(t, 0, p.Stats().Loaded)
	})

	t.Run("rule set file fixes the mod", func(t *testing.T) {
		dir := t.TempDir()
		rules := filepath.Join(dir, "rules.yaml")
		assert.NoError(t, os.WriteFile(rules, []byte(`version: 1
rules:
  - kind: type
    from: StardewValley.Chest
    to: StardewValley.Objects.Chest
    assembly: StardewValley
`), 0600))

		opts := programOptions(t)
		opts.Input = chestMod(t, dir)
		opts.Rules = rules

		p := newPipeline(t, opts)
		result, err := p.Execute(ctx, opts)
		assert.NoError(t, err)
		assert.Equal(t, compat.LoadedWithChanges, result.Status)
		assert.Equal(t, "StardewValley.Chest type", result.Outcome.Summary())
	})

	t.Run("cached rewrite", func(t *testing.T) {
		dir := t.TempDir()
		opts := programOptions(t)
		opts.Input = legacyMod(t, dir)
		opts.Cache = filepath.Join(dir, "cache.db")

		p := newPipeline(t, opts)
		first, err := p.Execute(ctx, opts)
		assert.NoError(t, err)
		assert.False(t, first.Cached)

		second, err := p.Execute(ctx, opts)
		assert.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, first.Outcome.Summary(), second.Outcome.Summary())
		assert.Equal(t, 2, p.Stats().Loaded)
	})

	t.Run("missing input", func(t *testing.T) {
		opts := programOptions(t)
		opts.Input = filepath.Join(t.TempDir(), "missing.mrmd")

		p := newPipeline(t, opts)
		_, err := p.Execute(ctx, opts)
		assert.ErrorContains(t, err, "loading mod")
	})

	t.Run("cancelled context", func(t *testing.T) {
		opts := programOptions(t)
		opts.Input = legacyMod(t, t.TempDir())

		p := newPipeline(t, opts)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.Execute(cancelled, opts)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()
	badRules := filepath.Join(dir, "bad.yaml")
	assert.NoError(t, os.WriteFile(badRules, []byte("version: 1\nrules:\n  - kind: rename\n"), 0600))

	tests := []struct {
		name   string
		modify func(*options.Program)
		errMsg string
	}{
		{"unknown platform", func(o *options.Program) { o.Platform = "amiga" }, "unsupported platform 'amiga'"},
		{"missing reference directory", func(o *options.Program) {
			o.References = []string{filepath.Join(dir, "missing")}
		}, "loading reference assemblies"},
		{"missing rule set", func(o *options.Program) { o.Rules = filepath.Join(dir, "missing.yaml") }, "loading rule set"},
		{"invalid rule set", func(o *options.Program) { o.Rules = badRules }, "unknown rule kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := programOptions(t)
			tt.modify(&opts)
			_, err := New(context.Background(), log.NewTestLogger(t), opts, Config{})
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
