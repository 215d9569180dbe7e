// Package moduletest provides builders for in-memory modules used in tests.
package moduletest

import (
	"strings"

	"github.com/yinxiangshi/modrewrite/internal/instruction"
	"github.com/yinxiangshi/modrewrite/internal/module"
)

// Assembly names used by the fixtures.
var (
	Corlib = module.AssemblyName{Name: "mscorlib", Version: module.Version{Major: 4}}
	Game   = module.AssemblyName{Name: "StardewValley", Version: module.Version{Major: 1, Minor: 6}}
)

// ModName is the assembly name of the mod returned by Mod.
const ModName = "TestMod"

// SystemType returns a reference to a type of the core library.
func SystemType(name string) *module.TypeReference {
	scope := Corlib
	return module.NewTypeReference(&scope, "System", name)
}

// Void returns a reference to System.Void.
func Void() *module.TypeReference {
	return SystemType("Void")
}

// TypeIn returns a reference to a type of the given assembly.
func TypeIn(assembly module.AssemblyName, namespace, name string) *module.TypeReference {
	return module.NewTypeReference(&assembly, namespace, name)
}

// GameType returns a reference to a type of the game assembly.
func GameType(namespace, name string) *module.TypeReference {
	return TypeIn(Game, namespace, name)
}

// Assembly returns an empty module for the assembly name.
func Assembly(name module.AssemblyName) *module.Module {
	return module.New(name.Name, name.Version)
}

// AddType adds a public type to the module.
func AddType(m *module.Module, namespace, name string) *module.TypeDefinition {
	return m.AddType(&module.TypeDefinition{
		Namespace: namespace,
		Name:      name,
		Public:    true,
	})
}

// Param returns a required parameter.
func Param(name string, typ *module.TypeReference) *module.ParameterDefinition {
	return &module.ParameterDefinition{Name: name, ParameterType: typ}
}

// OptionalParam returns an optional parameter with a default value.
func OptionalParam(name string, typ *module.TypeReference, def *module.Constant) *module.ParameterDefinition {
	return &module.ParameterDefinition{
		Name:          name,
		ParameterType: typ,
		Optional:      true,
		Default:       def,
	}
}

// Method returns a public instance method without body.
func Method(name string, ret *module.TypeReference, params ...*module.ParameterDefinition) *module.MethodDefinition {
	return &module.MethodDefinition{
		Name:       name,
		ReturnType: ret,
		Parameters: params,
		Public:     true,
	}
}

// StaticMethod returns a public static method without body.
func StaticMethod(name string, ret *module.TypeReference, params ...*module.ParameterDefinition) *module.MethodDefinition {
	method := Method(name, ret, params...)
	method.Static = true
	return method
}

// Constructor returns a public instance constructor.
func Constructor(params ...*module.ParameterDefinition) *module.MethodDefinition {
	return Method(module.ConstructorName, Void(), params...)
}

// AddProperty adds a public instance property with getter and setter.
func AddProperty(typ *module.TypeDefinition, name string, propertyType *module.TypeReference) *module.PropertyDefinition {
	return typ.AddProperty(&module.PropertyDefinition{
		Name:         name,
		PropertyType: propertyType,
		Getter:       Method("get_"+name, propertyType),
		Setter:       Method("set_"+name, Void(), Param("value", propertyType)),
	})
}

// MethodRef returns an instance method reference.
func MethodRef(declaring *module.TypeReference, name string, ret *module.TypeReference, params ...*module.TypeReference) *module.MethodReference {
	return &module.MethodReference{
		DeclaringType: declaring,
		Name:          name,
		ReturnType:    ret,
		Parameters:    params,
		HasThis:       true,
	}
}

// FieldRef returns a field reference.
func FieldRef(declaring *module.TypeReference, name string, fieldType *module.TypeReference) *module.FieldReference {
	return &module.FieldReference{
		DeclaringType: declaring,
		Name:          name,
		FieldType:     fieldType,
	}
}

// Mod returns a mod module with the type TestMod.ModEntry and its method
// Entry that contains the given instructions. The mod references the core
// library and the game assembly.
func Mod(instructions ...*module.Instruction) (*module.Module, *module.MethodDefinition) {
	mod := module.New(ModName, module.Version{Major: 1})
	mod.AddAssemblyReference(Corlib)
	mod.AddAssemblyReference(Game)
	mod.EntryType = ModName + ".ModEntry"

	entry := AddType(mod, ModName, "ModEntry")
	method := entry.AddMethod(Method("Entry", Void()))
	method.Body = module.NewMethodBody(instructions...)
	return mod, method
}

// Ins returns a detached instruction.
func Ins(op *instruction.Opcode, operand any) *module.Instruction {
	return module.NewInstruction(op, operand)
}

// Opcodes returns the opcode names of the list separated by spaces.
func Opcodes(list *module.InstructionList) string {
	var names []string
	for ins := list.Front(); ins != nil; ins = ins.Next() {
		names = append(names, ins.Opcode.Name)
	}
	return strings.Join(names, " ")
}
