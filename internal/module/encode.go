package module

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/yinxiangshi/modrewrite/internal/instruction"
)

// Magic is the file signature of an encoded module.
const Magic = "MRMD"

// FormatVersion is the container format version written by Encode.
const FormatVersion = 1

// type reference presence and kind tags.
const (
	refNil byte = iota
	refPresent
)

// token operand tags.
const (
	tokenType byte = iota + 1
	tokenField
	tokenMethod
)

// definition flags.
const (
	flagPublic byte = 1 << iota
	flagStatic
	flagVirtual
	flagAccessor
	flagValueType
	flagOptional
)

// Encode writes the module to w in the module container format.
func (m *Module) Encode(w io.Writer) error {
	e := &encoder{}

	e.buf.WriteString(Magic)
	e.uvarint(FormatVersion)

	e.string(m.Name)
	e.assembly(&m.Assembly)
	e.buf.WriteByte(byte(m.Attributes))
	e.string(m.EntryType)

	e.uvarint(uint64(len(m.AssemblyReferences)))
	for _, ref := range m.AssemblyReferences {
		e.assembly(ref)
	}

	e.uvarint(uint64(len(m.Types)))
	for _, typ := range m.Types {
		if err := e.typeDefinition(typ); err != nil {
			return fmt.Errorf("type %s: %w", typ.FullName(), err)
		}
	}

	if _, err := w.Write(e.buf.Bytes()); err != nil {
		return fmt.Errorf("writing module: %w", err)
	}
	return nil
}

// Bytes returns the encoded module.
func (m *Module) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	buf     bytes.Buffer
	scratch [binary.MaxVarintLen64]byte
}

func (e *encoder) uvarint(v uint64) {
	n := binary.PutUvarint(e.scratch[:], v)
	e.buf.Write(e.scratch[:n])
}

func (e *encoder) varint(v int64) {
	n := binary.PutVarint(e.scratch[:], v)
	e.buf.Write(e.scratch[:n])
}

func (e *encoder) string(s string) {
	e.uvarint(uint64(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) bool(b bool) {
	if b {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *encoder) assembly(a *AssemblyName) {
	e.string(a.Name)
	e.uvarint(uint64(a.Version.Major))
	e.uvarint(uint64(a.Version.Minor))
	e.uvarint(uint64(a.Version.Build))
	e.uvarint(uint64(a.Version.Revision))
}

func (e *encoder) typeRef(t *TypeReference) {
	if t == nil {
		e.buf.WriteByte(refNil)
		return
	}
	e.buf.WriteByte(refPresent)
	e.buf.WriteByte(byte(t.Kind))

	switch t.Kind {
	case TypeGenericInstance:
		e.typeRef(t.ElementType)
		e.typeRefs(t.GenericArguments)
	case TypeGenericParameter:
		e.string(t.Name)
		e.uvarint(uint64(t.Position))
		e.typeRefs(t.Constraints)
	case TypeArray, TypeByRef:
		e.typeRef(t.ElementType)
	default:
		e.bool(t.Scope != nil)
		if t.Scope != nil {
			e.assembly(t.Scope)
		}
		e.string(t.Namespace)
		e.string(t.Name)
		e.typeRef(t.DeclaringType)
		e.bool(t.IsValueType)
		e.genericParameters(t.GenericParameters)
	}
}

func (e *encoder) typeRefs(types []*TypeReference) {
	e.uvarint(uint64(len(types)))
	for _, typ := range types {
		e.typeRef(typ)
	}
}

func (e *encoder) genericParameters(params []*GenericParameter) {
	e.uvarint(uint64(len(params)))
	for _, param := range params {
		e.string(param.Name)
		e.typeRefs(param.Constraints)
	}
}

func (e *encoder) fieldRef(f *FieldReference) {
	e.typeRef(f.DeclaringType)
	e.string(f.Name)
	e.typeRef(f.FieldType)
}

func (e *encoder) methodRef(m *MethodReference) {
	e.typeRef(m.DeclaringType)
	e.string(m.Name)
	e.typeRef(m.ReturnType)
	e.typeRefs(m.Parameters)
	e.bool(m.HasThis)
	e.uvarint(uint64(m.GenericParameterCount))
	e.typeRefs(m.GenericArguments)
}

func (e *encoder) typeDefinition(t *TypeDefinition) error {
	e.string(t.Namespace)
	e.string(t.Name)
	var flags byte
	if t.Public {
		flags |= flagPublic
	}
	if t.IsValueType {
		flags |= flagValueType
	}
	e.buf.WriteByte(flags)
	e.typeRef(t.BaseType)
	e.typeRefs(t.Interfaces)
	e.genericParameters(t.GenericParameters)

	e.uvarint(uint64(len(t.Fields)))
	for _, field := range t.Fields {
		e.string(field.Name)
		e.typeRef(field.FieldType)
		flags = 0
		if field.Public {
			flags |= flagPublic
		}
		if field.Static {
			flags |= flagStatic
		}
		e.buf.WriteByte(flags)
	}

	e.uvarint(uint64(len(t.Methods)))
	for _, method := range t.Methods {
		if err := e.methodDefinition(method); err != nil {
			return fmt.Errorf("method %s: %w", method.Name, err)
		}
	}

	e.uvarint(uint64(len(t.Properties)))
	for _, property := range t.Properties {
		e.string(property.Name)
		e.typeRef(property.PropertyType)
		e.varint(int64(methodIndex(t.Methods, property.Getter)))
		e.varint(int64(methodIndex(t.Methods, property.Setter)))
	}

	e.uvarint(uint64(len(t.NestedTypes)))
	for _, nested := range t.NestedTypes {
		if err := e.typeDefinition(nested); err != nil {
			return fmt.Errorf("nested type %s: %w", nested.Name, err)
		}
	}
	return nil
}

func methodIndex(methods []*MethodDefinition, method *MethodDefinition) int {
	if method == nil {
		return -1
	}
	for i, m := range methods {
		if m == method {
			return i
		}
	}
	return -1
}

func (e *encoder) methodDefinition(m *MethodDefinition) error {
	e.string(m.Name)
	e.typeRef(m.ReturnType)
	var flags byte
	if m.Public {
		flags |= flagPublic
	}
	if m.Static {
		flags |= flagStatic
	}
	if m.Virtual {
		flags |= flagVirtual
	}
	if m.IsAccessor {
		flags |= flagAccessor
	}
	e.buf.WriteByte(flags)
	e.genericParameters(m.GenericParameters)

	e.uvarint(uint64(len(m.Parameters)))
	for _, param := range m.Parameters {
		e.string(param.Name)
		e.typeRef(param.ParameterType)
		flags = 0
		if param.Optional {
			flags |= flagOptional
		}
		e.buf.WriteByte(flags)
		if err := e.constant(param.Default); err != nil {
			return fmt.Errorf("parameter %s: %w", param.Name, err)
		}
	}

	e.bool(m.HasBody())
	if !m.HasBody() {
		return nil
	}
	e.uvarint(uint64(m.Body.MaxStack))
	e.typeRefs(m.Body.Variables)
	return e.instructions(m.Body.Instructions)
}

func (e *encoder) constant(c *Constant) error {
	if c == nil {
		e.buf.WriteByte(refNil)
		return nil
	}
	e.buf.WriteByte(refPresent)
	e.buf.WriteByte(byte(c.Kind))

	switch c.Kind {
	case ConstantNull:
	case ConstantBool:
		v, ok := c.Value.(bool)
		if !ok {
			return fmt.Errorf("invalid bool constant %v", c.Value)
		}
		e.bool(v)
	case ConstantInt32:
		v, ok := c.Value.(int32)
		if !ok {
			return fmt.Errorf("invalid int32 constant %v", c.Value)
		}
		e.varint(int64(v))
	case ConstantInt64:
		v, ok := c.Value.(int64)
		if !ok {
			return fmt.Errorf("invalid int64 constant %v", c.Value)
		}
		e.varint(v)
	case ConstantFloat32:
		v, ok := c.Value.(float32)
		if !ok {
			return fmt.Errorf("invalid float32 constant %v", c.Value)
		}
		e.uvarint(uint64(math.Float32bits(v)))
	case ConstantFloat64:
		v, ok := c.Value.(float64)
		if !ok {
			return fmt.Errorf("invalid float64 constant %v", c.Value)
		}
		e.uvarint(math.Float64bits(v))
	case ConstantString, ConstantOther:
		v, ok := c.Value.(string)
		if !ok {
			return fmt.Errorf("invalid string constant %v", c.Value)
		}
		e.string(v)
	default:
		return fmt.Errorf("unsupported constant kind %d", c.Kind)
	}
	return nil
}

func (e *encoder) instructions(list *InstructionList) error {
	instructions := list.Slice()
	index := make(map[*Instruction]int, len(instructions))
	for i, ins := range instructions {
		index[ins] = i
	}

	e.uvarint(uint64(len(instructions)))
	for i, ins := range instructions {
		if err := e.instruction(ins, index); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", i, ins.Opcode.Name, err)
		}
	}
	return nil
}

func (e *encoder) instruction(ins *Instruction, index map[*Instruction]int) error {
	e.uvarint(uint64(ins.Opcode.Code))

	switch ins.Opcode.Operand {
	case instruction.InlineNone:
		return nil

	case instruction.ShortInlineI, instruction.InlineI:
		v, ok := ins.Operand.(int32)
		if !ok {
			return fmt.Errorf("invalid int32 operand %T", ins.Operand)
		}
		e.varint(int64(v))

	case instruction.InlineI8:
		v, ok := ins.Operand.(int64)
		if !ok {
			return fmt.Errorf("invalid int64 operand %T", ins.Operand)
		}
		e.varint(v)

	case instruction.ShortInlineR:
		v, ok := ins.Operand.(float32)
		if !ok {
			return fmt.Errorf("invalid float32 operand %T", ins.Operand)
		}
		e.uvarint(uint64(math.Float32bits(v)))

	case instruction.InlineR:
		v, ok := ins.Operand.(float64)
		if !ok {
			return fmt.Errorf("invalid float64 operand %T", ins.Operand)
		}
		e.uvarint(math.Float64bits(v))

	case instruction.InlineString:
		v, ok := ins.Operand.(string)
		if !ok {
			return fmt.Errorf("invalid string operand %T", ins.Operand)
		}
		e.string(v)

	case instruction.ShortInlineVar, instruction.InlineVar:
		v, ok := ins.Operand.(uint16)
		if !ok {
			return fmt.Errorf("invalid variable operand %T", ins.Operand)
		}
		e.uvarint(uint64(v))

	case instruction.InlineType:
		ref, ok := ins.TypeOperand()
		if !ok {
			return fmt.Errorf("invalid type operand %T", ins.Operand)
		}
		e.typeRef(ref)

	case instruction.InlineField:
		ref, ok := ins.FieldOperand()
		if !ok {
			return fmt.Errorf("invalid field operand %T", ins.Operand)
		}
		e.fieldRef(ref)

	case instruction.InlineMethod:
		ref, ok := ins.MethodOperand()
		if !ok {
			return fmt.Errorf("invalid method operand %T", ins.Operand)
		}
		e.methodRef(ref)

	case instruction.InlineTok:
		return e.token(ins.Operand)

	case instruction.ShortInlineBrTarget, instruction.InlineBrTarget:
		target, ok := ins.Operand.(*Instruction)
		if !ok {
			return fmt.Errorf("invalid branch operand %T", ins.Operand)
		}
		i, ok := index[target]
		if !ok {
			return fmt.Errorf("branch target %s is not part of the method body", target)
		}
		e.uvarint(uint64(i))

	case instruction.InlineSwitch:
		targets, ok := ins.Operand.([]*Instruction)
		if !ok {
			return fmt.Errorf("invalid switch operand %T", ins.Operand)
		}
		e.uvarint(uint64(len(targets)))
		for _, target := range targets {
			i, ok := index[target]
			if !ok {
				return fmt.Errorf("switch target %s is not part of the method body", target)
			}
			e.uvarint(uint64(i))
		}

	default:
		return fmt.Errorf("unsupported operand type %d", ins.Opcode.Operand)
	}
	return nil
}

func (e *encoder) token(operand any) error {
	switch ref := operand.(type) {
	case *TypeReference:
		e.buf.WriteByte(tokenType)
		e.typeRef(ref)
	case *FieldReference:
		e.buf.WriteByte(tokenField)
		e.fieldRef(ref)
	case *MethodReference:
		e.buf.WriteByte(tokenMethod)
		e.methodRef(ref)
	default:
		return fmt.Errorf("invalid token operand %T", operand)
	}
	return nil
}
