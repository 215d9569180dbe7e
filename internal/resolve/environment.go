// Package resolve decides whether references of a mod resolve against the
// assemblies loaded in the target process.
package resolve

import (
	"github.com/yinxiangshi/modrewrite/internal/module"
)

// Environment is the set of assemblies that are loaded in the target process.
// It is built once at startup and read only afterwards.
type Environment struct {
	assemblies map[string]*module.Module
	names      []string
}

// NewEnvironment returns an environment containing the given assemblies.
func NewEnvironment(assemblies ...*module.Module) *Environment {
	e := &Environment{
		assemblies: make(map[string]*module.Module, len(assemblies)),
	}
	for _, assembly := range assemblies {
		e.Add(assembly)
	}
	return e
}

// Add adds an assembly, replacing a previously added assembly with the same name.
func (e *Environment) Add(assembly *module.Module) {
	name := assembly.Assembly.Name
	if _, ok := e.assemblies[name]; !ok {
		e.names = append(e.names, name)
	}
	e.assemblies[name] = assembly
}

// Assembly returns the loaded assembly with the given name.
func (e *Environment) Assembly(name string) (*module.Module, bool) {
	assembly, ok := e.assemblies[name]
	return assembly, ok
}

// Names returns the names of all loaded assemblies in load order.
func (e *Environment) Names() []string {
	names := make([]string, len(e.names))
	copy(names, e.names)
	return names
}

// Type returns the type with the given full name defined in the named assembly.
func (e *Environment) Type(assembly, fullName string) *module.TypeDefinition {
	m, ok := e.assemblies[assembly]
	if !ok {
		return nil
	}
	return m.Type(fullName)
}

// FindType returns the first loaded type with the given full name, searching
// the given assemblies in order, or all assemblies in load order if none are given.
func (e *Environment) FindType(fullName string, assemblies ...string) *module.TypeDefinition {
	if len(assemblies) == 0 {
		assemblies = e.names
	}
	for _, name := range assemblies {
		if typ := e.Type(name, fullName); typ != nil {
			return typ
		}
	}
	return nil
}
