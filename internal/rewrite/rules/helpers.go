// Package rules contains the rewrite rule variants and the default rule set.
package rules

import (
	"strings"

	"github.com/retroenv/retrogolib/set"
	"github.com/yinxiangshi/modrewrite/internal/instruction"
	"github.com/yinxiangshi/modrewrite/internal/module"
	"github.com/yinxiangshi/modrewrite/internal/rewrite"
)

// accessorCall returns a call of the property accessor that replaces the field
// access instruction. Loads call the getter, stores call the setter. Address
// loads and static mismatches can not be expressed as a call.
func accessorCall(ctx *rewrite.Context, ins *module.Instruction, property *module.PropertyDefinition) (*module.Instruction, bool) {
	var accessor *module.MethodDefinition
	switch ins.Opcode {
	case instruction.Ldfld, instruction.Ldsfld:
		accessor = property.Getter
	case instruction.Stfld, instruction.Stsfld:
		accessor = property.Setter
	default:
		return nil, false
	}
	if accessor == nil || accessor.Static != ins.Opcode.IsStaticField() {
		return nil, false
	}

	op := instruction.Callvirt
	if accessor.Static {
		op = instruction.Call
	}
	return module.NewInstruction(op, ctx.Module.ImportMethod(accessor.Reference())), true
}

// loadConstant returns the instruction that pushes the default value of an
// optional parameter. Only null, bool, int32, int64, float32, float64 and
// string constants are supported.
func loadConstant(param *module.ParameterDefinition) (*module.Instruction, bool) {
	c := param.Default
	if c == nil {
		return nil, false
	}

	switch c.Kind {
	case module.ConstantNull:
		if param.ParameterType.IsValueType {
			return nil, false
		}
		return module.NewInstruction(instruction.Ldnull, nil), true

	case module.ConstantBool:
		v, ok := c.Value.(bool)
		if !ok {
			return nil, false
		}
		if v {
			return module.NewInstruction(instruction.LdcI41, nil), true
		}
		return module.NewInstruction(instruction.LdcI40, nil), true

	case module.ConstantInt32:
		v, ok := c.Value.(int32)
		return module.NewInstruction(instruction.LdcI4, v), ok

	case module.ConstantInt64:
		v, ok := c.Value.(int64)
		return module.NewInstruction(instruction.LdcI8, v), ok

	case module.ConstantFloat32:
		v, ok := c.Value.(float32)
		return module.NewInstruction(instruction.LdcR4, v), ok

	case module.ConstantFloat64:
		v, ok := c.Value.(float64)
		return module.NewInstruction(instruction.LdcR8, v), ok

	case module.ConstantString:
		v, ok := c.Value.(string)
		return module.NewInstruction(instruction.Ldstr, v), ok

	default:
		return nil, false
	}
}

// isLoadArg returns whether the instruction loads the argument with the given index.
func isLoadArg(ins *module.Instruction, index uint16) bool {
	if ins == nil {
		return false
	}
	switch index {
	case 0:
		if ins.Opcode == instruction.Ldarg0 {
			return true
		}
	case 1:
		if ins.Opcode == instruction.Ldarg1 {
			return true
		}
	case 2:
		if ins.Opcode == instruction.Ldarg2 {
			return true
		}
	case 3:
		if ins.Opcode == instruction.Ldarg3 {
			return true
		}
	}
	if ins.Opcode == instruction.LdargS {
		v, ok := ins.Operand.(uint16)
		return ok && v == index
	}
	return false
}

// splitFullName splits a top level type full name into namespace and name.
func splitFullName(fullName string) (string, string) {
	for i := len(fullName) - 1; i >= 0; i-- {
		if fullName[i] == '.' {
			return fullName[:i], fullName[i+1:]
		}
	}
	return "", fullName
}

// typeCriteria identifies a type reference together with its assembly.
func typeCriteria(ref *module.TypeReference) string {
	return "[" + ref.ScopeName() + "]" + ref.FullName()
}

// sortedCriteria joins the names of the set in a stable order.
func sortedCriteria(names set.Set[string]) string {
	return strings.Join(set.Sorted(names), ",")
}
