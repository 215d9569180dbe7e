package platform

import (
	"github.com/retroenv/retrogolib/set"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/resolve"
)

// game assembly names of the Windows build.
var windowsAssemblies = []string{
	"Netcode",
	"Stardew Valley",
	"Microsoft.Xna.Framework",
	"Microsoft.Xna.Framework.Game",
	"Microsoft.Xna.Framework.Graphics",
	"Microsoft.Xna.Framework.Xact",
}

// game assembly names of the Linux and Mac build.
var unixAssemblies = []string{
	"StardewValley",
	"MonoGame.Framework",
}

// Map is the platform assembly map: the assembly names that belong to the
// other platform build and the loaded assemblies that supply the game types
// on this platform. It is immutable after construction.
type Map struct {
	platform Platform

	foreignNames []string
	foreign      set.Set[string]

	targets     []*module.Module
	targetNames []string
}

// New returns the assembly map for the given platform. Target assemblies that
// are not loaded in the environment are left out.
func New(p Platform, env *resolve.Environment) *Map {
	foreignNames, targetNames := unixAssemblies, windowsAssemblies
	if !p.IsWindows() {
		foreignNames, targetNames = windowsAssemblies, unixAssemblies
	}
	return NewWithAssemblies(p, env, foreignNames, targetNames)
}

// NewWithAssemblies returns an assembly map with custom assembly names.
func NewWithAssemblies(p Platform, env *resolve.Environment, foreignNames, targetNames []string) *Map {
	m := &Map{
		platform: p,
		foreign:  set.New[string](),
	}
	for _, name := range foreignNames {
		m.foreignNames = append(m.foreignNames, name)
		m.foreign.Add(name)
	}
	for _, name := range targetNames {
		assembly, ok := env.Assembly(name)
		if !ok {
			continue
		}
		m.targets = append(m.targets, assembly)
		m.targetNames = append(m.targetNames, name)
	}
	return m
}

// Platform returns the platform of the map.
func (m *Map) Platform() Platform {
	return m.platform
}

// IsForeign returns whether the named assembly belongs to the other platform build.
func (m *Map) IsForeign(assembly string) bool {
	return m.foreign.Contains(assembly)
}

// ForeignNames returns the assembly names of the other platform build.
func (m *Map) ForeignNames() []string {
	names := make([]string, len(m.foreignNames))
	copy(names, m.foreignNames)
	return names
}

// TargetNames returns the names of the loaded assemblies that supply the game types.
func (m *Map) TargetNames() []string {
	names := make([]string, len(m.targetNames))
	copy(names, m.targetNames)
	return names
}

// Targets returns the loaded assemblies that supply the game types, in lookup order.
func (m *Map) Targets() []*module.Module {
	targets := make([]*module.Module, len(m.targets))
	copy(targets, m.targets)
	return targets
}

// FindTarget returns the first target assembly that defines a type with the given full name.
func (m *Map) FindTarget(fullName string) (*module.AssemblyName, *module.TypeDefinition, bool) {
	for _, target := range m.targets {
		if typ := target.Type(fullName); typ != nil {
			return &target.Assembly, typ, true
		}
	}
	return nil, nil, false
}

// ReferencesForeign returns whether the module references an assembly of the
// other platform build, which means it was compiled on that platform.
func (m *Map) ReferencesForeign(mod *module.Module) bool {
	for _, ref := range mod.AssemblyReferences {
		if m.foreign.Contains(ref.Name) {
			return true
		}
	}
	return false
}

// SwapReferences removes the references to foreign assemblies from the module
// and adds references to all target assemblies. It returns whether the
// reference table changed.
func (m *Map) SwapReferences(mod *module.Module) bool {
	if !m.ReferencesForeign(mod) {
		return false
	}
	for _, name := range m.foreignNames {
		mod.RemoveAssemblyReference(name)
	}
	for _, target := range m.targets {
		mod.AddAssemblyReference(target.Assembly)
	}
	return true
}

// GameAssemblies returns the game assembly names of both platform builds.
func GameAssemblies() []string {
	names := make([]string, 0, len(windowsAssemblies)+len(unixAssemblies))
	names = append(names, windowsAssemblies...)
	return append(names, unixAssemblies...)
}
