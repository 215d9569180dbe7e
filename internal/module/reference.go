package module

import (
	"fmt"
	"strings"
)

// TypeKind defines the shape of a type reference.
type TypeKind uint8

// type reference kinds.
const (
	TypeNormal TypeKind = iota
	TypeGenericInstance
	TypeGenericParameter
	TypeArray
	TypeByRef
)

// AssemblyName identifies an assembly by name and version.
type AssemblyName struct {
	Name    string
	Version Version
}

// Version is a four part assembly version.
type Version struct {
	Major    int
	Minor    int
	Build    int
	Revision int
}

// String returns the dotted version text.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// String returns the assembly display name.
func (a *AssemblyName) String() string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("%s, Version=%s", a.Name, a.Version)
}

// TypeReference names a type that may or may not resolve in the current environment.
// A nil Scope means the type is defined in the module that references it.
type TypeReference struct {
	Scope         *AssemblyName
	Namespace     string
	Name          string
	DeclaringType *TypeReference // set for nested types
	IsValueType   bool

	Kind              TypeKind
	ElementType       *TypeReference      // generic instance, array and by-ref element
	GenericArguments  []*TypeReference    // generic instance arguments
	GenericParameters []*GenericParameter // open generic parameters of the referenced type
	Position          int                 // generic parameter position
	Constraints       []*TypeReference    // generic parameter constraints
}

// GenericParameter describes a generic parameter and its constraints.
type GenericParameter struct {
	Name        string
	Constraints []*TypeReference
}

// NewTypeReference returns a reference to a plain type in the given scope.
func NewTypeReference(scope *AssemblyName, namespace, name string) *TypeReference {
	return &TypeReference{
		Scope:     scope,
		Namespace: namespace,
		Name:      name,
	}
}

// NewGenericInstance returns a generic instance of the element type.
func NewGenericInstance(element *TypeReference, arguments ...*TypeReference) *TypeReference {
	return &TypeReference{
		Kind:             TypeGenericInstance,
		ElementType:      element,
		GenericArguments: arguments,
	}
}

// NewGenericParameter returns a reference to a generic parameter.
func NewGenericParameter(name string, position int, constraints ...*TypeReference) *TypeReference {
	return &TypeReference{
		Kind:        TypeGenericParameter,
		Name:        name,
		Position:    position,
		Constraints: constraints,
	}
}

// NewArray returns an array reference of the element type.
func NewArray(element *TypeReference) *TypeReference {
	return &TypeReference{Kind: TypeArray, ElementType: element}
}

// NewByRef returns a by-reference type of the element type.
func NewByRef(element *TypeReference) *TypeReference {
	return &TypeReference{Kind: TypeByRef, ElementType: element}
}

// FullName returns the full type name in Cecil notation.
func (t *TypeReference) FullName() string {
	if t == nil {
		return ""
	}

	switch t.Kind {
	case TypeGenericInstance:
		args := make([]string, len(t.GenericArguments))
		for i, arg := range t.GenericArguments {
			args[i] = arg.FullName()
		}
		return t.ElementType.FullName() + "<" + strings.Join(args, ",") + ">"
	case TypeGenericParameter:
		return t.Name
	case TypeArray:
		return t.ElementType.FullName() + "[]"
	case TypeByRef:
		return t.ElementType.FullName() + "&"
	}

	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// String implements fmt.Stringer.
func (t *TypeReference) String() string {
	return t.FullName()
}

// ScopeName returns the name of the assembly that defines the type, or an
// empty string when the type is defined in the referencing module.
func (t *TypeReference) ScopeName() string {
	element := t.Element()
	if element.Scope == nil {
		if element.DeclaringType != nil {
			return element.DeclaringType.ScopeName()
		}
		return ""
	}
	return element.Scope.Name
}

// Element returns the innermost non-composite type: the generic type of a generic
// instance, the element of arrays and by-ref types.
func (t *TypeReference) Element() *TypeReference {
	for t.ElementType != nil && t.Kind != TypeNormal {
		t = t.ElementType
	}
	return t
}

// Clone returns a deep copy of the reference so that replacing parts of the copy
// does not alter other instructions sharing the original.
func (t *TypeReference) Clone() *TypeReference {
	if t == nil {
		return nil
	}
	c := *t
	if t.Scope != nil {
		scope := *t.Scope
		c.Scope = &scope
	}
	c.DeclaringType = t.DeclaringType.Clone()
	c.ElementType = t.ElementType.Clone()
	c.GenericArguments = cloneTypes(t.GenericArguments)
	c.Constraints = cloneTypes(t.Constraints)
	if t.GenericParameters != nil {
		c.GenericParameters = make([]*GenericParameter, len(t.GenericParameters))
		for i, param := range t.GenericParameters {
			c.GenericParameters[i] = &GenericParameter{
				Name:        param.Name,
				Constraints: cloneTypes(param.Constraints),
			}
		}
	}
	return &c
}

func cloneTypes(types []*TypeReference) []*TypeReference {
	if types == nil {
		return nil
	}
	c := make([]*TypeReference, len(types))
	for i, typ := range types {
		c[i] = typ.Clone()
	}
	return c
}

// FieldReference names a field on a declaring type.
type FieldReference struct {
	DeclaringType *TypeReference
	Name          string
	FieldType     *TypeReference
}

// FullName returns the field signature in Cecil notation, for example
// "System.Int32 StardewValley.Farmer::money".
func (f *FieldReference) FullName() string {
	return f.FieldType.FullName() + " " + f.DeclaringType.FullName() + "::" + f.Name
}

// String implements fmt.Stringer.
func (f *FieldReference) String() string {
	return f.FullName()
}

// MethodReference names a method or constructor on a declaring type.
type MethodReference struct {
	DeclaringType *TypeReference
	Name          string
	ReturnType    *TypeReference
	Parameters    []*TypeReference
	HasThis       bool

	GenericParameterCount int
	GenericArguments      []*TypeReference // set for generic method instances
}

// ConstructorName is the method name of instance constructors.
const ConstructorName = ".ctor"

// IsConstructor returns whether the method is an instance constructor.
func (m *MethodReference) IsConstructor() bool {
	return m.Name == ConstructorName
}

// FullName returns the method signature in Cecil notation, for example
// "System.Void StardewValley.Game1::drawDialogue(StardewValley.NPC,System.String)".
func (m *MethodReference) FullName() string {
	var sb strings.Builder
	sb.WriteString(m.ReturnType.FullName())
	sb.WriteByte(' ')
	sb.WriteString(m.DeclaringType.FullName())
	sb.WriteString("::")
	sb.WriteString(m.Name)
	if len(m.GenericArguments) > 0 {
		args := make([]string, len(m.GenericArguments))
		for i, arg := range m.GenericArguments {
			args[i] = arg.FullName()
		}
		sb.WriteString("<" + strings.Join(args, ",") + ">")
	}
	sb.WriteByte('(')
	for i, param := range m.Parameters {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(param.FullName())
	}
	sb.WriteByte(')')
	return sb.String()
}

// String implements fmt.Stringer.
func (m *MethodReference) String() string {
	return m.FullName()
}

// Clone returns a deep copy of the method reference.
func (m *MethodReference) Clone() *MethodReference {
	c := *m
	c.DeclaringType = m.DeclaringType.Clone()
	c.ReturnType = m.ReturnType.Clone()
	c.Parameters = cloneTypes(m.Parameters)
	c.GenericArguments = cloneTypes(m.GenericArguments)
	return &c
}

// Clone returns a deep copy of the field reference.
func (f *FieldReference) Clone() *FieldReference {
	c := *f
	c.DeclaringType = f.DeclaringType.Clone()
	c.FieldType = f.FieldType.Clone()
	return &c
}
