package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/module/moduletest"
)

//nolint:funlen // test functions can be long
func TestLoadReferences(t *testing.T) {
	t.Run("load assemblies from directories", func(t *testing.T) {
		gameDir := t.TempDir()
		frameworkDir := t.TempDir()

		game := moduletest.Assembly(moduletest.Game)
		moduletest.AddType(game, "StardewValley", "Farmer")
		writeModule(t, gameDir, "StardewValley.mrmd", game)
		framework := moduletest.Assembly(module.AssemblyName{Name: "MonoGame.Framework", Version: module.Version{Major: 3, Minor: 8}})
		writeModule(t, frameworkDir, "MonoGame.Framework.mrmd", framework)
		writeFile(t, frameworkDir, "readme.txt", []byte("not a module"))

		loader := New(log.NewTestLogger(t))
		env, err := loader.LoadReferences([]string{gameDir, frameworkDir})
		assert.NoError(t, err)
		assert.Len(t, env.Names(), 2)
		assert.NotNil(t, env.Type("StardewValley", "StardewValley.Farmer"))
		_, ok := env.Assembly("MonoGame.Framework")
		assert.True(t, ok)
	})

	t.Run("later directories replace assemblies", func(t *testing.T) {
		first := t.TempDir()
		second := t.TempDir()

		writeModule(t, first, "game.mrmd", moduletest.Assembly(moduletest.Game))
		updated := moduletest.Assembly(moduletest.Game)
		moduletest.AddType(updated, "StardewValley", "Farmer")
		writeModule(t, second, "game.mrmd", updated)

		loader := New(log.NewTestLogger(t))
		env, err := loader.LoadReferences([]string{first, second})
		assert.NoError(t, err)
		assert.Len(t, env.Names(), 1)
		assert.NotNil(t, env.Type("StardewValley", "StardewValley.Farmer"))
	})

	t.Run("empty directory", func(t *testing.T) {
		loader := New(log.NewTestLogger(t))
		env, err := loader.LoadReferences([]string{t.TempDir()})
		assert.NoError(t, err)
		assert.Empty(t, env.Names())
	})

	t.Run("error on non-existent directory", func(t *testing.T) {
		loader := New(log.NewTestLogger(t))
		_, err := loader.LoadReferences([]string{"/nonexistent/references"})
		assert.ErrorContains(t, err, "opening reference directory")
	})

	t.Run("error on corrupt assembly", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "broken.mrmd", []byte("MRMD"))

		loader := New(log.NewTestLogger(t))
		_, err := loader.LoadReferences([]string{dir})
		assert.ErrorContains(t, err, "decoding module file")
	})
}

func TestLoadMod(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.mrmd", []byte{0x01, 0x02})

	loader := New(log.NewTestLogger(t))
	data, err := loader.LoadMod(path)
	assert.NoError(t, err)
	assert.Equal(t, "\x01\x02", string(data))

	_, err = loader.LoadMod(filepath.Join(dir, "missing.mrmd"))
	assert.ErrorContains(t, err, "reading mod file")
}

func TestLoadModule(t *testing.T) {
	mod, _ := moduletest.Mod()
	path := writeModule(t, t.TempDir(), "mod.mrmd", mod)

	loaded, err := LoadModule(path)
	assert.NoError(t, err)
	assert.Equal(t, moduletest.ModName, loaded.Name)
	assert.Equal(t, "TestMod.ModEntry", loaded.EntryType)
}

func writeModule(t *testing.T, dir, name string, mod *module.Module) string {
	t.Helper()
	data, err := mod.Bytes()
	assert.NoError(t, err)
	return writeFile(t, dir, name, data)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}
