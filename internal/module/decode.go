package module

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/yinxiangshi/modrewrite/internal/instruction"
)

// Decoding errors.
var (
	ErrBadMagic           = errors.New("bad magic")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrTruncated          = errors.New("unexpected end of data")
)

// DecodeError reports a malformed module and the byte offset where decoding failed.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses a module from binary data.
// This implements the inverse of Encode.
func Decode(data []byte) (*Module, error) {
	r := &reader{data: data}
	m, err := r.module()
	if err != nil {
		return nil, &DecodeError{Offset: r.pos, Err: err}
	}
	if r.pos != len(r.data) {
		return nil, &DecodeError{Offset: r.pos, Err: fmt.Errorf("%d trailing bytes", len(r.data)-r.pos)}
	}
	return m, nil
}

// maxTypeDepth bounds the nesting of element, declaring and argument types.
const maxTypeDepth = 64

type reader struct {
	data  []byte
	pos   int
	depth int // current type reference nesting
}

type pendingBranch struct {
	ins      *Instruction
	targets  []uint64
	isSwitch bool
}

func (r *reader) module() (*Module, error) {
	if len(r.data) < len(Magic) || string(r.data[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}
	r.pos = len(Magic)

	version, err := r.uvarint()
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w %d", ErrUnsupportedVersion, version)
	}

	m := &Module{}
	if m.Name, err = r.string(); err != nil {
		return nil, fmt.Errorf("module name: %w", err)
	}
	assembly, err := r.assembly()
	if err != nil {
		return nil, fmt.Errorf("assembly name: %w", err)
	}
	m.Assembly = *assembly
	attributes, err := r.byte()
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	m.Attributes = Attributes(attributes)
	if m.EntryType, err = r.string(); err != nil {
		return nil, fmt.Errorf("entry type: %w", err)
	}

	count, err := r.count()
	if err != nil {
		return nil, fmt.Errorf("assembly reference count: %w", err)
	}
	for i := range count {
		ref, err := r.assembly()
		if err != nil {
			return nil, fmt.Errorf("assembly reference %d: %w", i, err)
		}
		m.AssemblyReferences = append(m.AssemblyReferences, ref)
	}

	count, err = r.count()
	if err != nil {
		return nil, fmt.Errorf("type count: %w", err)
	}
	for i := range count {
		typ := &TypeDefinition{Module: m}
		if err := r.typeDefinition(typ); err != nil {
			return nil, fmt.Errorf("type %d: %w", i, err)
		}
		m.Types = append(m.Types, typ)
	}
	return m, nil
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bool() (bool, error) {
	b, err := r.byte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool value %d", b)
	}
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n == 0 {
		return 0, ErrTruncated
	}
	if n < 0 {
		return 0, errors.New("varint overflow")
	}
	r.pos += n
	return v, nil
}

func (r *reader) varint() (int64, error) {
	v, n := binary.Varint(r.data[r.pos:])
	if n == 0 {
		return 0, ErrTruncated
	}
	if n < 0 {
		return 0, errors.New("varint overflow")
	}
	r.pos += n
	return v, nil
}

// count reads a length prefix and bounds it by the remaining data, every
// counted element occupies at least one byte.
func (r *reader) count() (int, error) {
	v, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(len(r.data)-r.pos) {
		return 0, fmt.Errorf("count %d exceeds remaining data", v)
	}
	return int(v), nil
}

func (r *reader) int() (int, error) {
	v, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("value %d out of range", v)
	}
	return int(v), nil
}

func (r *reader) string() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", err
	}
	if n > uint64(len(r.data)-r.pos) {
		return "", ErrTruncated
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) assembly() (*AssemblyName, error) {
	name, err := r.string()
	if err != nil {
		return nil, err
	}
	a := &AssemblyName{Name: name}
	for _, part := range []*int{&a.Version.Major, &a.Version.Minor, &a.Version.Build, &a.Version.Revision} {
		if *part, err = r.int(); err != nil {
			return nil, fmt.Errorf("version: %w", err)
		}
	}
	return a, nil
}

func (r *reader) typeRef() (*TypeReference, error) {
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case refNil:
		return nil, nil
	case refPresent:
	default:
		return nil, fmt.Errorf("invalid reference tag %d", tag)
	}

	if r.depth >= maxTypeDepth {
		return nil, fmt.Errorf("type reference nested deeper than %d", maxTypeDepth)
	}
	r.depth++
	defer func() { r.depth-- }()

	kind, err := r.byte()
	if err != nil {
		return nil, err
	}
	t := &TypeReference{Kind: TypeKind(kind)}

	switch t.Kind {
	case TypeGenericInstance:
		if t.ElementType, err = r.requiredTypeRef(); err != nil {
			return nil, fmt.Errorf("generic element: %w", err)
		}
		if t.GenericArguments, err = r.typeRefs(); err != nil {
			return nil, fmt.Errorf("generic arguments: %w", err)
		}

	case TypeGenericParameter:
		if t.Name, err = r.string(); err != nil {
			return nil, err
		}
		if t.Position, err = r.int(); err != nil {
			return nil, err
		}
		if t.Constraints, err = r.typeRefs(); err != nil {
			return nil, fmt.Errorf("constraints: %w", err)
		}

	case TypeArray, TypeByRef:
		if t.ElementType, err = r.requiredTypeRef(); err != nil {
			return nil, fmt.Errorf("element type: %w", err)
		}

	case TypeNormal:
		hasScope, err := r.bool()
		if err != nil {
			return nil, err
		}
		if hasScope {
			if t.Scope, err = r.assembly(); err != nil {
				return nil, fmt.Errorf("scope: %w", err)
			}
		}
		if t.Namespace, err = r.string(); err != nil {
			return nil, err
		}
		if t.Name, err = r.string(); err != nil {
			return nil, err
		}
		if t.DeclaringType, err = r.typeRef(); err != nil {
			return nil, fmt.Errorf("declaring type: %w", err)
		}
		if t.IsValueType, err = r.bool(); err != nil {
			return nil, err
		}
		if t.GenericParameters, err = r.genericParameters(); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("invalid type kind %d", kind)
	}
	return t, nil
}

func (r *reader) requiredTypeRef() (*TypeReference, error) {
	t, err := r.typeRef()
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("missing type reference")
	}
	return t, nil
}

func (r *reader) typeRefs() ([]*TypeReference, error) {
	count, err := r.count()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	types := make([]*TypeReference, count)
	for i := range types {
		if types[i], err = r.requiredTypeRef(); err != nil {
			return nil, fmt.Errorf("type %d: %w", i, err)
		}
	}
	return types, nil
}

func (r *reader) genericParameters() ([]*GenericParameter, error) {
	count, err := r.count()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	params := make([]*GenericParameter, count)
	for i := range params {
		param := &GenericParameter{}
		if param.Name, err = r.string(); err != nil {
			return nil, fmt.Errorf("generic parameter %d: %w", i, err)
		}
		if param.Constraints, err = r.typeRefs(); err != nil {
			return nil, fmt.Errorf("generic parameter %d constraints: %w", i, err)
		}
		params[i] = param
	}
	return params, nil
}

func (r *reader) fieldRef() (*FieldReference, error) {
	f := &FieldReference{}
	var err error
	if f.DeclaringType, err = r.requiredTypeRef(); err != nil {
		return nil, fmt.Errorf("declaring type: %w", err)
	}
	if f.Name, err = r.string(); err != nil {
		return nil, err
	}
	if f.FieldType, err = r.requiredTypeRef(); err != nil {
		return nil, fmt.Errorf("field type: %w", err)
	}
	return f, nil
}

func (r *reader) methodRef() (*MethodReference, error) {
	m := &MethodReference{}
	var err error
	if m.DeclaringType, err = r.requiredTypeRef(); err != nil {
		return nil, fmt.Errorf("declaring type: %w", err)
	}
	if m.Name, err = r.string(); err != nil {
		return nil, err
	}
	if m.ReturnType, err = r.requiredTypeRef(); err != nil {
		return nil, fmt.Errorf("return type: %w", err)
	}
	if m.Parameters, err = r.typeRefs(); err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	if m.HasThis, err = r.bool(); err != nil {
		return nil, err
	}
	if m.GenericParameterCount, err = r.int(); err != nil {
		return nil, err
	}
	if m.GenericArguments, err = r.typeRefs(); err != nil {
		return nil, fmt.Errorf("generic arguments: %w", err)
	}
	return m, nil
}

func (r *reader) typeDefinition(t *TypeDefinition) error {
	var err error
	if t.Namespace, err = r.string(); err != nil {
		return err
	}
	if t.Name, err = r.string(); err != nil {
		return err
	}
	flags, err := r.byte()
	if err != nil {
		return err
	}
	t.Public = flags&flagPublic != 0
	t.IsValueType = flags&flagValueType != 0
	if t.BaseType, err = r.typeRef(); err != nil {
		return fmt.Errorf("base type: %w", err)
	}
	if t.Interfaces, err = r.typeRefs(); err != nil {
		return fmt.Errorf("interfaces: %w", err)
	}
	if t.GenericParameters, err = r.genericParameters(); err != nil {
		return err
	}

	count, err := r.count()
	if err != nil {
		return fmt.Errorf("field count: %w", err)
	}
	for i := range count {
		field := &FieldDefinition{}
		if field.Name, err = r.string(); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		if field.FieldType, err = r.requiredTypeRef(); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		if flags, err = r.byte(); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		field.Public = flags&flagPublic != 0
		field.Static = flags&flagStatic != 0
		t.AddField(field)
	}

	count, err = r.count()
	if err != nil {
		return fmt.Errorf("method count: %w", err)
	}
	for i := range count {
		method, err := r.methodDefinition()
		if err != nil {
			return fmt.Errorf("method %d: %w", i, err)
		}
		t.AddMethod(method)
	}

	count, err = r.count()
	if err != nil {
		return fmt.Errorf("property count: %w", err)
	}
	for i := range count {
		property, err := r.property(t)
		if err != nil {
			return fmt.Errorf("property %d: %w", i, err)
		}
		t.Properties = append(t.Properties, property)
	}

	count, err = r.count()
	if err != nil {
		return fmt.Errorf("nested type count: %w", err)
	}
	for i := range count {
		nested := &TypeDefinition{DeclaringType: t, Module: t.Module}
		if err := r.typeDefinition(nested); err != nil {
			return fmt.Errorf("nested type %d: %w", i, err)
		}
		t.NestedTypes = append(t.NestedTypes, nested)
	}
	return nil
}

func (r *reader) property(t *TypeDefinition) (*PropertyDefinition, error) {
	p := &PropertyDefinition{DeclaringType: t}
	var err error
	if p.Name, err = r.string(); err != nil {
		return nil, err
	}
	if p.PropertyType, err = r.requiredTypeRef(); err != nil {
		return nil, err
	}
	for _, accessor := range []**MethodDefinition{&p.Getter, &p.Setter} {
		index, err := r.varint()
		if err != nil {
			return nil, err
		}
		if index < 0 {
			continue
		}
		if index >= int64(len(t.Methods)) {
			return nil, fmt.Errorf("accessor index %d out of range", index)
		}
		*accessor = t.Methods[index]
	}
	return p, nil
}

func (r *reader) methodDefinition() (*MethodDefinition, error) {
	m := &MethodDefinition{}
	var err error
	if m.Name, err = r.string(); err != nil {
		return nil, err
	}
	if m.ReturnType, err = r.requiredTypeRef(); err != nil {
		return nil, fmt.Errorf("return type: %w", err)
	}
	flags, err := r.byte()
	if err != nil {
		return nil, err
	}
	m.Public = flags&flagPublic != 0
	m.Static = flags&flagStatic != 0
	m.Virtual = flags&flagVirtual != 0
	m.IsAccessor = flags&flagAccessor != 0
	if m.GenericParameters, err = r.genericParameters(); err != nil {
		return nil, err
	}

	count, err := r.count()
	if err != nil {
		return nil, fmt.Errorf("parameter count: %w", err)
	}
	for i := range count {
		param := &ParameterDefinition{}
		if param.Name, err = r.string(); err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		if param.ParameterType, err = r.requiredTypeRef(); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", param.Name, err)
		}
		if flags, err = r.byte(); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", param.Name, err)
		}
		param.Optional = flags&flagOptional != 0
		if param.Default, err = r.constant(); err != nil {
			return nil, fmt.Errorf("parameter %s default: %w", param.Name, err)
		}
		m.Parameters = append(m.Parameters, param)
	}

	hasBody, err := r.bool()
	if err != nil {
		return nil, err
	}
	if !hasBody {
		return m, nil
	}
	body := &MethodBody{}
	if body.MaxStack, err = r.int(); err != nil {
		return nil, fmt.Errorf("max stack: %w", err)
	}
	if body.Variables, err = r.typeRefs(); err != nil {
		return nil, fmt.Errorf("variables: %w", err)
	}
	if body.Instructions, err = r.instructions(); err != nil {
		return nil, err
	}
	m.Body = body
	return m, nil
}

func (r *reader) constant() (*Constant, error) {
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case refNil:
		return nil, nil
	case refPresent:
	default:
		return nil, fmt.Errorf("invalid constant tag %d", tag)
	}

	kind, err := r.byte()
	if err != nil {
		return nil, err
	}
	c := &Constant{Kind: ConstantKind(kind)}

	switch c.Kind {
	case ConstantNull:
	case ConstantBool:
		c.Value, err = r.bool()
	case ConstantInt32:
		var v int64
		if v, err = r.varint(); err == nil && (v < math.MinInt32 || v > math.MaxInt32) {
			err = fmt.Errorf("int32 constant %d out of range", v)
		}
		c.Value = int32(v)
	case ConstantInt64:
		c.Value, err = r.varint()
	case ConstantFloat32:
		var v uint64
		if v, err = r.uvarint(); err == nil && v > math.MaxUint32 {
			err = fmt.Errorf("float32 constant bits %#x out of range", v)
		}
		c.Value = math.Float32frombits(uint32(v))
	case ConstantFloat64:
		var v uint64
		v, err = r.uvarint()
		c.Value = math.Float64frombits(v)
	case ConstantString, ConstantOther:
		c.Value, err = r.string()
	default:
		return nil, fmt.Errorf("invalid constant kind %d", kind)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *reader) instructions() (*InstructionList, error) {
	count, err := r.count()
	if err != nil {
		return nil, fmt.Errorf("instruction count: %w", err)
	}

	instructions := make([]*Instruction, count)
	var branches []pendingBranch
	for i := range instructions {
		ins, branch, err := r.instruction()
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		instructions[i] = ins
		if branch != nil {
			branches = append(branches, *branch)
		}
	}

	for _, branch := range branches {
		targets := make([]*Instruction, len(branch.targets))
		for i, index := range branch.targets {
			if index >= uint64(len(instructions)) {
				return nil, fmt.Errorf("branch target %d out of range", index)
			}
			targets[i] = instructions[index]
		}
		if branch.isSwitch {
			branch.ins.Operand = targets
		} else {
			branch.ins.Operand = targets[0]
		}
	}

	return NewInstructionList(instructions...), nil
}

func (r *reader) instruction() (*Instruction, *pendingBranch, error) {
	code, err := r.uvarint()
	if err != nil {
		return nil, nil, err
	}
	op, ok := instruction.Opcodes[uint16(code)]
	if !ok || code > math.MaxUint16 {
		return nil, nil, fmt.Errorf("unsupported opcode 0x%04X", code)
	}
	ins := &Instruction{Opcode: op}

	switch op.Operand {
	case instruction.InlineNone:

	case instruction.ShortInlineI, instruction.InlineI:
		v, err := r.varint()
		if err != nil {
			return nil, nil, err
		}
		ins.Operand = int32(v)

	case instruction.InlineI8:
		if ins.Operand, err = r.varint(); err != nil {
			return nil, nil, err
		}

	case instruction.ShortInlineR:
		v, err := r.uvarint()
		if err != nil {
			return nil, nil, err
		}
		ins.Operand = math.Float32frombits(uint32(v))

	case instruction.InlineR:
		v, err := r.uvarint()
		if err != nil {
			return nil, nil, err
		}
		ins.Operand = math.Float64frombits(v)

	case instruction.InlineString:
		if ins.Operand, err = r.string(); err != nil {
			return nil, nil, err
		}

	case instruction.ShortInlineVar, instruction.InlineVar:
		v, err := r.uvarint()
		if err != nil {
			return nil, nil, err
		}
		if v > math.MaxUint16 {
			return nil, nil, fmt.Errorf("variable index %d out of range", v)
		}
		ins.Operand = uint16(v)

	case instruction.InlineType:
		ref, err := r.requiredTypeRef()
		if err != nil {
			return nil, nil, err
		}
		ins.Operand = ref

	case instruction.InlineField:
		ref, err := r.fieldRef()
		if err != nil {
			return nil, nil, err
		}
		ins.Operand = ref

	case instruction.InlineMethod:
		ref, err := r.methodRef()
		if err != nil {
			return nil, nil, err
		}
		ins.Operand = ref

	case instruction.InlineTok:
		if ins.Operand, err = r.token(); err != nil {
			return nil, nil, err
		}

	case instruction.ShortInlineBrTarget, instruction.InlineBrTarget:
		target, err := r.uvarint()
		if err != nil {
			return nil, nil, err
		}
		return ins, &pendingBranch{ins: ins, targets: []uint64{target}}, nil

	case instruction.InlineSwitch:
		count, err := r.count()
		if err != nil {
			return nil, nil, err
		}
		targets := make([]uint64, count)
		for i := range targets {
			if targets[i], err = r.uvarint(); err != nil {
				return nil, nil, err
			}
		}
		return ins, &pendingBranch{ins: ins, targets: targets, isSwitch: true}, nil
	}

	return ins, nil, nil
}

func (r *reader) token() (any, error) {
	tag, err := r.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tokenType:
		return r.requiredTypeRef()
	case tokenField:
		return r.fieldRef()
	case tokenMethod:
		return r.methodRef()
	default:
		return nil, fmt.Errorf("invalid token tag %d", tag)
	}
}
