package platform

import (
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/module/moduletest"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Platform
		err      bool
	}{
		{"windows", Windows, false},
		{"Win", Windows, false},
		{"linux", Linux, false},
		{" darwin ", Mac, false},
		{"osx", Mac, false},
		{"android", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := Parse(tt.input)
			if tt.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestPlatform_SameBuild(t *testing.T) {
	assert.True(t, Linux.SameBuild(Mac))
	assert.True(t, Windows.SameBuild(Windows))
	assert.False(t, Windows.SameBuild(Linux))
}

func TestMap(t *testing.T) {
	game := moduletest.Assembly(moduletest.Game)
	moduletest.AddType(game, "StardewValley", "Farmer")
	framework := moduletest.Assembly(module.AssemblyName{Name: "MonoGame.Framework", Version: module.Version{Major: 3, Minor: 8}})
	moduletest.AddType(framework, "Microsoft.Xna.Framework", "Vector2")
	env := resolve.NewEnvironment(game, framework)

	m := New(Linux, env)
	assert.Equal(t, Linux, m.Platform())
	assert.True(t, m.IsForeign("Stardew Valley"))
	assert.True(t, m.IsForeign("Microsoft.Xna.Framework.Graphics"))
	assert.False(t, m.IsForeign("StardewValley"))
	assert.Equal(t, "StardewValley MonoGame.Framework", joinNames(m.TargetNames()))
	assert.Equal(t, 2, len(m.Targets()))

	assembly, typ, ok := m.FindTarget("Microsoft.Xna.Framework.Vector2")
	assert.True(t, ok)
	assert.Equal(t, "MonoGame.Framework", assembly.Name)
	assert.Equal(t, "Vector2", typ.Name)
	_, _, ok = m.FindTarget("Microsoft.Xna.Framework.Color")
	assert.False(t, ok)

	mod, _ := moduletest.Mod()
	assert.False(t, m.ReferencesForeign(mod))
	assert.False(t, m.SwapReferences(mod))

	mod.AddAssemblyReference(module.AssemblyName{Name: "Stardew Valley"})
	mod.AddAssemblyReference(module.AssemblyName{Name: "Microsoft.Xna.Framework"})
	assert.True(t, m.ReferencesForeign(mod))
	assert.True(t, m.SwapReferences(mod))

	var names []string
	for _, ref := range mod.AssemblyReferences {
		names = append(names, ref.Name)
	}
	assert.Equal(t, "mscorlib StardewValley MonoGame.Framework", joinNames(names))
}

func TestNewWithAssemblies(t *testing.T) {
	env := resolve.NewEnvironment(moduletest.Assembly(moduletest.Game))
	m := NewWithAssemblies(Windows, env, []string{"Legacy"}, []string{"StardewValley", "NotLoaded"})
	assert.True(t, m.IsForeign("Legacy"))
	assert.Equal(t, "StardewValley", joinNames(m.TargetNames()))
	assert.Equal(t, "Legacy", joinNames(m.ForeignNames()))
}

func TestGameAssemblies(t *testing.T) {
	names := GameAssemblies()
	assert.Equal(t, len(windowsAssemblies)+len(unixAssemblies), len(names))
	assert.Equal(t, "Netcode", names[0])
	assert.Equal(t, "MonoGame.Framework", names[len(names)-1])
}

func joinNames(names []string) string {
	return strings.Join(names, " ")
}
