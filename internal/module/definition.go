package module

// TypeDefinition is a type defined in a module.
type TypeDefinition struct {
	Namespace   string
	Name        string
	Public      bool
	IsValueType bool

	BaseType          *TypeReference
	Interfaces        []*TypeReference
	GenericParameters []*GenericParameter

	Fields      []*FieldDefinition
	Properties  []*PropertyDefinition
	Methods     []*MethodDefinition
	NestedTypes []*TypeDefinition

	DeclaringType *TypeDefinition
	Module        *Module
}

// FullName returns the full type name in Cecil notation.
func (t *TypeDefinition) FullName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// Reference returns a reference to the type scoped to its defining assembly.
func (t *TypeDefinition) Reference() *TypeReference {
	ref := &TypeReference{
		Namespace:   t.Namespace,
		Name:        t.Name,
		IsValueType: t.IsValueType,
	}
	if t.DeclaringType != nil {
		ref.Namespace = ""
		ref.DeclaringType = t.DeclaringType.Reference()
	} else if t.Module != nil {
		scope := t.Module.Assembly
		ref.Scope = &scope
	}
	return ref
}

// AddField adds a field and returns it.
func (t *TypeDefinition) AddField(field *FieldDefinition) *FieldDefinition {
	field.DeclaringType = t
	t.Fields = append(t.Fields, field)
	return field
}

// AddMethod adds a method and returns it.
func (t *TypeDefinition) AddMethod(method *MethodDefinition) *MethodDefinition {
	method.DeclaringType = t
	t.Methods = append(t.Methods, method)
	return method
}

// AddProperty adds a property with its accessor methods.
func (t *TypeDefinition) AddProperty(property *PropertyDefinition) *PropertyDefinition {
	property.DeclaringType = t
	if property.Getter != nil {
		property.Getter.IsAccessor = true
		t.AddMethod(property.Getter)
	}
	if property.Setter != nil {
		property.Setter.IsAccessor = true
		t.AddMethod(property.Setter)
	}
	t.Properties = append(t.Properties, property)
	return property
}

// AddNestedType adds a nested type.
func (t *TypeDefinition) AddNestedType(nested *TypeDefinition) *TypeDefinition {
	nested.DeclaringType = t
	nested.Module = t.Module
	t.NestedTypes = append(t.NestedTypes, nested)
	return nested
}

// Field returns the field with the given name.
func (t *TypeDefinition) Field(name string) *FieldDefinition {
	for _, field := range t.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// Property returns the property with the given name.
func (t *TypeDefinition) Property(name string) *PropertyDefinition {
	for _, property := range t.Properties {
		if property.Name == name {
			return property
		}
	}
	return nil
}

// MethodsNamed returns all methods with the given name in declaration order.
func (t *TypeDefinition) MethodsNamed(name string) []*MethodDefinition {
	var methods []*MethodDefinition
	for _, method := range t.Methods {
		if method.Name == name {
			methods = append(methods, method)
		}
	}
	return methods
}

// FieldDefinition is a field defined on a type.
type FieldDefinition struct {
	Name      string
	FieldType *TypeReference
	Public    bool
	Static    bool

	DeclaringType *TypeDefinition
}

// Reference returns a reference to the field.
func (f *FieldDefinition) Reference() *FieldReference {
	return &FieldReference{
		DeclaringType: f.DeclaringType.Reference(),
		Name:          f.Name,
		FieldType:     f.DeclaringType.Module.Export(f.FieldType),
	}
}

// PropertyDefinition is a property with optional accessor methods.
type PropertyDefinition struct {
	Name         string
	PropertyType *TypeReference
	Getter       *MethodDefinition
	Setter       *MethodDefinition

	DeclaringType *TypeDefinition
}

// FullName returns the property signature in Cecil notation.
func (p *PropertyDefinition) FullName() string {
	return p.PropertyType.FullName() + " " + p.DeclaringType.FullName() + "::" + p.Name + "()"
}

// ParameterDefinition is a method parameter.
type ParameterDefinition struct {
	Name          string
	ParameterType *TypeReference
	Optional      bool
	Default       *Constant // nil if the parameter has no default value
}

// MethodDefinition is a method or constructor defined on a type.
type MethodDefinition struct {
	Name       string
	ReturnType *TypeReference
	Parameters []*ParameterDefinition
	Public     bool
	Static     bool
	Virtual    bool
	IsAccessor bool // property getter or setter

	GenericParameters []*GenericParameter
	Body              *MethodBody

	DeclaringType *TypeDefinition
}

// MethodBody contains the code of a method.
type MethodBody struct {
	Instructions *InstructionList
	Variables    []*TypeReference
	MaxStack     int
}

// NewMethodBody returns a body with the given instructions.
func NewMethodBody(instructions ...*Instruction) *MethodBody {
	return &MethodBody{
		Instructions: NewInstructionList(instructions...),
		MaxStack:     8,
	}
}

// HasBody returns whether the method contains code.
func (m *MethodDefinition) HasBody() bool {
	return m.Body != nil && m.Body.Instructions != nil
}

// IsConstructor returns whether the method is an instance constructor.
func (m *MethodDefinition) IsConstructor() bool {
	return m.Name == ConstructorName
}

// Reference returns a reference to the method.
func (m *MethodDefinition) Reference() *MethodReference {
	owner := m.DeclaringType.Module
	ref := &MethodReference{
		DeclaringType:         m.DeclaringType.Reference(),
		Name:                  m.Name,
		ReturnType:            owner.Export(m.ReturnType),
		HasThis:               !m.Static,
		GenericParameterCount: len(m.GenericParameters),
	}
	for _, param := range m.Parameters {
		ref.Parameters = append(ref.Parameters, owner.Export(param.ParameterType))
	}
	return ref
}

// FullName returns the method signature in Cecil notation.
func (m *MethodDefinition) FullName() string {
	return m.Reference().FullName()
}
