package resolve

import (
	"github.com/retroenv/retrogolib/set"
	"github.com/yinxiangshi/modrewrite/internal/module"
)

// Status is the resolution state of a reference.
type Status uint8

// resolution states.
const (
	// Resolved references point at a definition that exists.
	Resolved Status = iota
	// Missing references point into a validated assembly but the definition does not exist.
	Missing
	// External references point into an assembly that is not validated, they are
	// never considered broken.
	External
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Missing:
		return "missing"
	case External:
		return "external"
	default:
		return "unknown"
	}
}

// maxBaseDepth bounds the base type walk of member lookups.
const maxBaseDepth = 32

// Resolver resolves the references of one module against an environment.
type Resolver struct {
	env       *Environment
	module    *module.Module
	validated set.Set[string]
	types     map[string]typeResult
}

type typeResult struct {
	definition *module.TypeDefinition
	status     Status
}

// NewResolver returns a resolver for references of the given module. References
// into loaded assemblies and into the additional validated assembly names are
// checked, references into any other assembly are treated as external.
func NewResolver(env *Environment, m *module.Module, validated ...string) *Resolver {
	r := &Resolver{
		env:       env,
		module:    m,
		validated: set.New[string](),
		types:     make(map[string]typeResult),
	}
	for _, name := range env.Names() {
		r.validated.Add(name)
	}
	for _, name := range validated {
		r.validated.Add(name)
	}
	return r
}

// Environment returns the environment references are resolved against.
func (r *Resolver) Environment() *Environment {
	return r.env
}

// IsValidated returns whether references into the named assembly are checked.
func (r *Resolver) IsValidated(assembly string) bool {
	return r.validated.Contains(assembly)
}

// Type resolves a type reference. Composite references resolve through their
// element type, generic parameters always resolve.
func (r *Resolver) Type(ref *module.TypeReference) (*module.TypeDefinition, Status) {
	return r.typeIn(ref, r.module.Assembly.Name)
}

// typeIn resolves a type reference used inside the named assembly, a reference
// without scope points into that assembly.
func (r *Resolver) typeIn(ref *module.TypeReference, assembly string) (*module.TypeDefinition, Status) {
	if ref == nil {
		return nil, External
	}
	element := ref.Element()
	if element.Kind == module.TypeGenericParameter {
		return nil, Resolved
	}

	scope := element.ScopeName()
	if scope == "" {
		scope = assembly
	}
	fullName := element.FullName()
	key := scope + "|" + fullName
	if result, ok := r.types[key]; ok {
		return result.definition, result.status
	}

	var result typeResult
	switch {
	case scope == r.module.Assembly.Name:
		result.definition = r.module.Type(fullName)
	case !r.validated.Contains(scope):
		result.status = External
	default:
		result.definition = r.env.Type(scope, fullName)
	}
	if result.status != External && result.definition == nil {
		result.status = Missing
	}

	r.types[key] = result
	return result.definition, result.status
}

// baseType returns the resolved base type of a definition or nil.
func (r *Resolver) baseType(typ *module.TypeDefinition) *module.TypeDefinition {
	if typ.BaseType == nil {
		return nil
	}
	assembly := r.module.Assembly.Name
	if typ.Module != nil {
		assembly = typ.Module.Assembly.Name
	}
	base, status := r.typeIn(typ.BaseType, assembly)
	if status != Resolved {
		return nil
	}
	return base
}

// Field resolves a field reference by name and field type, searching the
// declaring type and its base types.
func (r *Resolver) Field(ref *module.FieldReference) (*module.FieldDefinition, Status) {
	typ, status := r.Type(ref.DeclaringType)
	if status != Resolved {
		return nil, status
	}

	fieldType := ref.FieldType.FullName()
	for depth := 0; typ != nil && depth < maxBaseDepth; depth++ {
		if field := typ.Field(ref.Name); field != nil && field.FieldType.FullName() == fieldType {
			return field, Resolved
		}
		typ = r.baseType(typ)
	}
	return nil, Missing
}

// Method resolves a method reference by name, parameter types, return type and
// generic arity, searching the declaring type and its base types.
func (r *Resolver) Method(ref *module.MethodReference) (*module.MethodDefinition, Status) {
	typ, status := r.Type(ref.DeclaringType)
	if status != Resolved {
		return nil, status
	}

	for depth := 0; typ != nil && depth < maxBaseDepth; depth++ {
		for _, method := range typ.MethodsNamed(ref.Name) {
			if SignatureMatches(method, ref) {
				return method, Resolved
			}
		}
		if ref.IsConstructor() {
			break // constructors are not inherited
		}
		typ = r.baseType(typ)
	}
	return nil, Missing
}

// SignatureMatches returns whether the method definition has the parameter
// types, return type and generic arity of the reference.
func SignatureMatches(method *module.MethodDefinition, ref *module.MethodReference) bool {
	if method.Name != ref.Name ||
		len(method.Parameters) != len(ref.Parameters) ||
		len(method.GenericParameters) != ref.GenericParameterCount ||
		method.ReturnType.FullName() != ref.ReturnType.FullName() {
		return false
	}
	for i, param := range method.Parameters {
		if param.ParameterType.FullName() != ref.Parameters[i].FullName() {
			return false
		}
	}
	return true
}
