// Package module represents a compiled mod binary: its types, methods,
// instruction streams and the symbolic references they contain.
package module

// Module is the parsed in-memory representation of one compiled assembly.
// It is created once per load attempt and mutated in place by the rewriter.
type Module struct {
	Name       string
	Assembly   AssemblyName
	Attributes Attributes

	AssemblyReferences []*AssemblyName
	Types              []*TypeDefinition

	EntryType string // full name of the type containing the mod entry point
}

// New returns an empty module for the given assembly.
func New(name string, version Version) *Module {
	return &Module{
		Name:       name,
		Assembly:   AssemblyName{Name: name, Version: version},
		Attributes: ILOnly,
	}
}

// AddType adds a top level type and returns it.
func (m *Module) AddType(typ *TypeDefinition) *TypeDefinition {
	typ.Module = m
	m.Types = append(m.Types, typ)
	return typ
}

// AllTypes returns all types including nested types, parents first.
func (m *Module) AllTypes() []*TypeDefinition {
	var types []*TypeDefinition
	var walk func([]*TypeDefinition)
	walk = func(list []*TypeDefinition) {
		for _, typ := range list {
			types = append(types, typ)
			walk(typ.NestedTypes)
		}
	}
	walk(m.Types)
	return types
}

// Type returns the type with the given full name, nil if the module does not define it.
func (m *Module) Type(fullName string) *TypeDefinition {
	for _, typ := range m.AllTypes() {
		if typ.FullName() == fullName {
			return typ
		}
	}
	return nil
}

// AssemblyReference returns the referenced assembly with the given name.
func (m *Module) AssemblyReference(name string) *AssemblyName {
	for _, ref := range m.AssemblyReferences {
		if ref.Name == name {
			return ref
		}
	}
	return nil
}

// AddAssemblyReference adds the assembly to the reference table if no
// reference with the same name exists yet and returns the table entry.
func (m *Module) AddAssemblyReference(name AssemblyName) *AssemblyName {
	if ref := m.AssemblyReference(name.Name); ref != nil {
		return ref
	}
	ref := &name
	m.AssemblyReferences = append(m.AssemblyReferences, ref)
	return ref
}

// RemoveAssemblyReference removes the named assembly from the reference table.
// It returns whether a reference was removed.
func (m *Module) RemoveAssemblyReference(name string) bool {
	for i, ref := range m.AssemblyReferences {
		if ref.Name == name {
			m.AssemblyReferences = append(m.AssemblyReferences[:i], m.AssemblyReferences[i+1:]...)
			return true
		}
	}
	return false
}

// Import returns a copy of the type reference that is usable from this module.
// The assembly that defines the type is added to the reference table if needed.
func (m *Module) Import(ref *TypeReference) *TypeReference {
	imported := ref.Clone()
	m.importScopes(imported)
	return imported
}

// ImportMethod returns a copy of the method reference usable from this module.
func (m *Module) ImportMethod(ref *MethodReference) *MethodReference {
	imported := ref.Clone()
	m.importScopes(imported.DeclaringType)
	m.importScopes(imported.ReturnType)
	for _, param := range imported.Parameters {
		m.importScopes(param)
	}
	for _, arg := range imported.GenericArguments {
		m.importScopes(arg)
	}
	return imported
}

// ImportField returns a copy of the field reference usable from this module.
func (m *Module) ImportField(ref *FieldReference) *FieldReference {
	imported := ref.Clone()
	m.importScopes(imported.DeclaringType)
	m.importScopes(imported.FieldType)
	return imported
}

// Export returns a copy of a type reference used inside this module in which
// references to the module's own types carry the module as scope, so that the
// copy can be imported into another module. A nil module returns a plain copy.
func (m *Module) Export(ref *TypeReference) *TypeReference {
	exported := ref.Clone()
	if m != nil {
		m.exportScopes(exported)
	}
	return exported
}

func (m *Module) exportScopes(ref *TypeReference) {
	if ref == nil {
		return
	}
	if ref.Kind == TypeNormal && ref.Scope == nil && ref.DeclaringType == nil {
		scope := m.Assembly
		ref.Scope = &scope
	}
	m.exportScopes(ref.DeclaringType)
	m.exportScopes(ref.ElementType)
	for _, arg := range ref.GenericArguments {
		m.exportScopes(arg)
	}
	for _, constraint := range ref.Constraints {
		m.exportScopes(constraint)
	}
}

func (m *Module) importScopes(ref *TypeReference) {
	if ref == nil {
		return
	}
	if ref.Scope != nil {
		if ref.Scope.Name == m.Assembly.Name {
			ref.Scope = nil
		} else {
			ref.Scope = m.AddAssemblyReference(*ref.Scope)
		}
	}
	m.importScopes(ref.DeclaringType)
	m.importScopes(ref.ElementType)
	for _, arg := range ref.GenericArguments {
		m.importScopes(arg)
	}
	for _, constraint := range ref.Constraints {
		m.importScopes(constraint)
	}
}
